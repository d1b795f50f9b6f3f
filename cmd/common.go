package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vendorsync/internal/api"
	"vendorsync/internal/config"
	"vendorsync/internal/dataservice"
	"vendorsync/internal/events"
	"vendorsync/internal/ledger"
	"vendorsync/internal/metrics"
	"vendorsync/internal/normalize"
	"vendorsync/internal/reconcile"
)

// app holds everything a dashboard command needs.
type app struct {
	cfg     *config.Config
	client  *api.Client
	ledger  *ledger.Ledger
	svc     *dataservice.Service
	bus     *events.Bus
	metrics *metrics.Metrics
	closers []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// commandContext reads --timeout and builds the command context. A zero or
// negative timeout means a day, which is how serve runs.
func commandContext(cmd *cobra.Command, log zerolog.Logger) (context.Context, context.CancelFunc) {
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	if timeoutSecs <= 0 {
		timeoutSecs = 24 * 60 * 60
	}
	return createContextWithTimeout(timeoutSecs, log)
}

func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newAPIClient(cfg *config.Config, observer api.Observer) (*api.Client, error) {
	client, err := api.NewClient(api.Config{
		BaseURL:    cfg.APIBaseURL,
		Token:      api.StaticToken(cfg.APIToken),
		Timeout:    cfg.APITimeout,
		MaxRetries: cfg.APIMaxRetries,
		RateLimit:  cfg.APIRateLimit,
		Observer:   observer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// openSpendStore picks the ledger backend from configuration. noPersist
// forces the in-memory store.
func openSpendStore(ctx context.Context, cfg *config.Config, noPersist bool, log zerolog.Logger) (ledger.Store, io.Closer, error) {
	backend := cfg.SpendStore
	if noPersist {
		backend = config.SpendStoreMemory
	}

	switch backend {
	case config.SpendStoreMemory:
		log.Debug().Msg("Using in-memory spend store")
		return ledger.NewMemoryStore(), nil, nil
	case config.SpendStoreRedis:
		store, err := ledger.NewRedisStore(ctx, ledger.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Debug().Str("addr", cfg.RedisAddr).Msg("Using Redis spend store")
		return store, store, nil
	default:
		store, err := ledger.NewFileStore(cfg.SpendStorePath)
		if err != nil {
			return nil, nil, err
		}
		log.Debug().Str("path", store.Path()).Msg("Using file spend store")
		return store, nil, nil
	}
}

// buildApp wires config, API client, spend ledger and data service. The
// service is not initialised; callers decide when to load.
func buildApp(ctx context.Context, cmd *cobra.Command, log zerolog.Logger) (*app, error) {
	cfg, err := loadConfig(log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, bus: events.NewBus(), metrics: metrics.New()}
	a.metrics.Subscribe(a.bus)

	a.client, err = newAPIClient(cfg, a.metrics)
	if err != nil {
		return nil, err
	}

	noPersist, _ := cmd.Flags().GetBool("no-persist")
	store, closer, err := openSpendStore(ctx, cfg, noPersist, log)
	if err != nil {
		return nil, handleAPIError(err, log)
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.ledger, err = ledger.New(ctx, store)
	if err != nil {
		a.Close()
		return nil, handleAPIError(err, log)
	}

	a.svc = dataservice.New(a.client, a.ledger,
		dataservice.WithBus(a.bus),
		dataservice.WithHydrateLimit(cfg.HydrateLimit))
	return a, nil
}

// loadApp builds the app and loads the dashboard data.
func loadApp(cmd *cobra.Command, log zerolog.Logger) (*app, context.Context, context.CancelFunc, error) {
	ctx, cancel := commandContext(cmd, log)

	a, err := buildApp(ctx, cmd, log)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	if err := a.svc.Init(ctx); err != nil {
		a.Close()
		cancel()
		return nil, nil, nil, handleAPIError(err, log)
	}
	return a, ctx, cancel, nil
}

// handleAPIError provides user-friendly error messages for API and data
// service failures
func handleAPIError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Operation failed")

	var apiErr *api.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out. Try increasing --timeout or API_TIMEOUT")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("operation was canceled")
	case errors.Is(err, api.ErrUnauthorized):
		return fmt.Errorf("the vendor API rejected the credentials. Check VENDORSYNC_API_TOKEN")
	case errors.Is(err, dataservice.ErrInvoiceNotFound):
		return fmt.Errorf("invoice not found. Run 'vendorsync invoices' to list invoice IDs")
	case errors.Is(err, api.ErrNotFound):
		return fmt.Errorf("the vendor API has no such record: %w", err)
	case errors.Is(err, dataservice.ErrEmptyPatch):
		return fmt.Errorf("nothing to change. Pass at least one field flag")
	case errors.Is(err, api.ErrInvalidInput):
		return fmt.Errorf("invalid input: %w", err)
	case errors.Is(err, api.ErrInvalidResponse):
		return fmt.Errorf("the vendor API returned an unexpected response: %w", err)
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return fmt.Errorf("spend store unavailable. Check SPEND_STORE and REDIS_ADDR, or pass --no-persist: %w", err)
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fmt.Errorf("invalid amount: %w", err)
	case errors.Is(err, reconcile.ErrAborted):
		return fmt.Errorf("upload aborted, nothing was written")
	case errors.Is(err, reconcile.ErrIncompleteDraft):
		return fmt.Errorf("the extracted invoice has no vendor name or invoice number. Nothing was written")
	case errors.As(err, &apiErr):
		if apiErr.Status >= 500 {
			return fmt.Errorf("the vendor API is unavailable (status %d). Try again later", apiErr.Status)
		}
		return fmt.Errorf("vendor API request failed: %w", err)
	case strings.Contains(err.Error(), "connection refused"):
		return fmt.Errorf("cannot reach the vendor API. Check VENDORSYNC_API_BASE: %w", err)
	default:
		return err
	}
}

// writeOutput prints v as JSON when --json is set, otherwise through render.
// --output redirects either form to a file.
func writeOutput(cmd *cobra.Command, v any, render func(w io.Writer) error, log zerolog.Logger) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	outputPath, _ := cmd.Flags().GetString("output")

	var w io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to create output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("Failed to close output file")
			}
		}()
		w = f
	}

	if jsonOutput || render == nil {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else if err := render(w); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if outputPath != "" {
		log.Info().Str("output_file", outputPath).Msg("Results written to file")
	}
	return nil
}

func money(v float64) string {
	return normalize.FormatMoney(v)
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

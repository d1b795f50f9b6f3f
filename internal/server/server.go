// Package server serves the dashboard aggregates as JSON.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vendorsync/internal/logger"
	"vendorsync/internal/metrics"
	"vendorsync/pkg/models"
)

// Dashboard is the data the server exposes. *dataservice.Service implements it.
type Dashboard interface {
	Init(ctx context.Context) error
	Refresh(ctx context.Context) error

	KPIs() (models.KPIs, error)
	Vendors() ([]models.VendorSummary, error)
	RawVendors() ([]models.Vendor, error)
	Alerts() ([]models.Alert, error)
	Renewals() ([]models.Renewal, error)
	CalendarEvents(year, month *int) ([]models.CalendarEvent, error)
	SavingsSeries() (models.SavingsSeries, error)
	MonthlyTotals() (models.MonthlyTotals, error)
	Invoices() ([]models.Invoice, error)
	Payments(tab, query string) ([]models.Invoice, error)
	TotalSpend() (float64, error)

	MarkPaid(ctx context.Context, invoiceID string) (models.Invoice, error)
	MarkUnpaid(ctx context.Context, invoiceID string) (models.Invoice, error)
	EditInvoice(ctx context.Context, invoiceID string, patch models.InvoicePatch) (models.Invoice, error)
	DeleteInvoice(ctx context.Context, invoiceID string) error
}

type Server struct {
	engine  *gin.Engine
	dash    Dashboard
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New builds the router. m may be nil, in which case /metrics is not served.
func New(dash Dashboard, m *metrics.Metrics) *Server {
	s := &Server{
		engine:  gin.New(),
		dash:    dash,
		metrics: m,
		log:     logger.WithComponent("server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.engine
	e.Use(RequestID(), s.requestLogger(), s.recovery())
	if s.metrics != nil {
		e.Use(s.observe())
		e.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	e.GET("/healthz", s.healthz)

	api := e.Group("/api", s.ensureInit())
	api.GET("/kpis", s.kpis)
	api.GET("/vendors", s.vendors)
	api.GET("/vendors/search", s.searchVendors)
	api.GET("/alerts", s.alerts)
	api.GET("/renewals", s.renewals)
	api.GET("/calendar", s.calendar)
	api.GET("/savings", s.savings)
	api.GET("/monthly", s.monthly)
	api.GET("/invoices", s.invoices)
	api.GET("/payments", s.payments)
	api.GET("/total-spend", s.totalSpend)
	api.POST("/invoices/:id/pay", s.markPaid)
	api.POST("/invoices/:id/unpay", s.markUnpaid)
	api.PATCH("/invoices/:id", s.editInvoice)
	api.DELETE("/invoices/:id", s.deleteInvoice)
	api.POST("/refresh", s.refresh)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("JSON server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info().Msg("Shutting down JSON server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

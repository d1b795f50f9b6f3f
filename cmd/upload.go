package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"vendorsync/internal/config"
	"vendorsync/internal/extract"
	"vendorsync/internal/logger"
	"vendorsync/internal/reconcile"
	"vendorsync/pkg/models"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Extract an invoice from a scan and add it to the vendor API",
	Long: `Extract vendor and invoice details from a PDF or image, match them against
the existing vendors and invoices, and write the result.

  - an unknown vendor is created together with a new invoice
  - a known vendor gets a new invoice
  - an invoice number that already exists for the vendor is updated,
    after confirmation (skip the prompt with --yes)

Extractors:
  remote      post the file to the API's upload endpoint (default)
  documentai  call a Google Document AI invoice processor directly

Payment terms the extractor misses are parsed from the terms text. When
OPENAI_API_KEY is set, ChatGPT fills in whatever the parser could not.

Required environment variables for --extractor documentai:
  GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID and
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS`,
	Example: `  # Extract, review and confirm interactively
  vendorsync upload invoice.pdf

  # Show what would be written without touching the API
  vendorsync upload invoice.pdf --dry-run --json

  # Use Document AI and overwrite without asking
  vendorsync upload scan.png --extractor documentai --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

// UploadOutput is the JSON shape of the upload command.
type UploadOutput struct {
	FileName string            `json:"file_name"`
	Draft    models.Draft      `json:"draft"`
	Warnings []string          `json:"warnings,omitempty"`
	Plan     reconcile.Plan    `json:"plan"`
	Result   *reconcile.Result `json:"result,omitempty"`
	DryRun   bool              `json:"dry_run,omitempty"`
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().BoolP("yes", "y", false, "Overwrite an existing invoice without asking")
	uploadCmd.Flags().String("extractor", "", "Extractor: remote or documentai (default from EXTRACTOR)")
	uploadCmd.Flags().Bool("dry-run", false, "Extract and plan only, write nothing")
}

func runUpload(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("upload")

	assumeYes, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	extractorName, _ := cmd.Flags().GetString("extractor")
	path := args[0]

	log.Info().
		Str("file", path).
		Bool("yes", assumeYes).
		Bool("dry_run", dryRun).
		Msg("Starting invoice upload")

	fileInfo, err := validateUploadFile(path, log)
	if err != nil {
		return err
	}

	a, ctx, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if extractorName == "" {
		extractorName = a.cfg.Extractor
	}
	pipeline, closeExtractor, err := createPipeline(ctx, a, extractorName, log)
	if err != nil {
		return err
	}
	defer closeExtractor()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close file")
		}
	}()

	res, err := pipeline.Run(ctx, filepath.Base(path), file)
	if err != nil {
		return handleExtractError(err, log)
	}
	for _, w := range res.Warnings {
		log.Warn().Str("file", path).Msg(w)
	}

	vendors, err := a.svc.RawVendors()
	if err != nil {
		return handleAPIError(err, log)
	}
	invoices, err := a.svc.Invoices()
	if err != nil {
		return handleAPIError(err, log)
	}

	plan, err := reconcile.Resolve(res.Draft, vendors, invoices)
	if err != nil {
		return handleAPIError(err, log)
	}

	out := UploadOutput{
		FileName: fileInfo.Name(),
		Draft:    res.Draft,
		Warnings: res.Warnings,
		Plan:     plan,
		DryRun:   dryRun,
	}

	if !dryRun {
		var confirmer reconcile.Confirmer = reconcile.PromptConfirmer{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}
		if assumeYes {
			confirmer = reconcile.AlwaysConfirm
		}
		result, err := reconcile.Apply(ctx, plan, a.client, confirmer)
		if err != nil {
			return handleAPIError(err, log)
		}
		out.Result = &result

		if err := a.svc.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("Upload written but dashboard refresh failed")
		}
	}

	return writeOutput(cmd, out, func(w io.Writer) error {
		return renderUpload(w, out)
	}, log)
}

// validateUploadFile checks the file exists, is non-empty, within the size
// limit and of a supported type
func validateUploadFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("File not found")
			return nil, fmt.Errorf("file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing file")
			return nil, fmt.Errorf("permission denied accessing file: %s", path)
		}
		return nil, fmt.Errorf("error accessing file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("file is empty: %s", path)
	}
	if fileInfo.Size() > extract.MaxDocumentSizeBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", extract.MaxDocumentSizeBytes).
			Msg("File exceeds maximum size limit")
		return nil, fmt.Errorf("file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), extract.MaxDocumentSizeBytes)
	}
	if _, err := extract.MimeTypeFor(path); err != nil {
		return nil, fmt.Errorf("unsupported file type %q. Use PDF, PNG, JPEG, TIFF, GIF or WEBP", filepath.Ext(path))
	}
	return fileInfo, nil
}

// createPipeline builds the extractor named by name plus the optional
// ChatGPT terms completer. The returned func releases the extractor.
func createPipeline(ctx context.Context, a *app, name string, log zerolog.Logger) (*extract.Pipeline, func(), error) {
	var (
		extractor extract.Extractor
		closeFn   = func() {}
	)

	switch strings.ToLower(name) {
	case config.ExtractorDocumentAI:
		docAI, err := extract.NewDocumentAIExtractor(ctx, extract.DocumentAIConfigFrom(a.cfg))
		if err != nil {
			return nil, nil, handleExtractError(err, log)
		}
		extractor = docAI
		closeFn = func() {
			if err := docAI.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Document AI client")
			}
		}
	case config.ExtractorRemote, "":
		extractor = extract.NewRemoteExtractor(a.client)
	default:
		return nil, nil, fmt.Errorf("unknown extractor %q. Use remote or documentai", name)
	}

	var completer extract.TermsCompleter
	if a.cfg.OpenAIAPIKey != "" {
		c, err := extract.NewChatGPTTermsCompleter(a.cfg.OpenAIAPIKey, extract.DefaultCompletionConfig(a.cfg.OpenAIModel))
		if err != nil {
			closeFn()
			return nil, nil, handleExtractError(err, log)
		}
		completer = c
		log.Debug().Str("model", a.cfg.OpenAIModel).Msg("ChatGPT terms completion enabled")
	}

	log.Debug().Str("extractor", name).Msg("Extraction pipeline ready")
	return extract.NewPipeline(extractor, completer), closeFn, nil
}

const credentialsHelp = "1. Set GOOGLE_APPLICATION_CREDENTIALS to your service account JSON file path\n" +
	"2. Or set GOOGLE_CREDENTIALS with inline JSON\n" +
	"3. Ensure the service account has the 'Document AI API User' role"

// handleExtractError provides user-friendly error messages for extraction failures
func handleExtractError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Extraction failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled), errors.Is(err, extract.ErrContextCanceled):
		return fmt.Errorf("extraction was canceled")
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return fmt.Errorf("unsupported file format. Use PDF, PNG, JPEG, TIFF, GIF or WEBP")
	case errors.Is(err, extract.ErrDocumentTooLarge):
		return fmt.Errorf("file is too large (maximum 20MB). Try compressing or splitting it")
	case errors.Is(err, extract.ErrInvalidConfiguration):
		return fmt.Errorf("extractor is not configured. For Document AI set GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID: %w", err)
	case errors.Is(err, extract.ErrInvalidCredentials):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials:\n\n%s\n\nOriginal error: %v", credentialsHelp, err)
	case errors.Is(err, extract.ErrProcessorNotFound):
		return fmt.Errorf("Document AI processor not found. Check DOCUMENT_AI_PROCESSOR_ID and GOOGLE_CLOUD_LOCATION")
	case errors.Is(err, extract.ErrQuotaExceeded):
		return fmt.Errorf("Document AI quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, extract.ErrInvalidDocument):
		return fmt.Errorf("the upload endpoint returned no usable document: %w", err)
	default:
		return handleAPIError(err, log)
	}
}

func renderUpload(w io.Writer, out UploadOutput) error {
	d := out.Draft
	fmt.Fprintf(w, "=== %s ===\n", out.FileName)
	fmt.Fprintf(w, "Vendor:   %s", d.Vendor.Name)
	if d.Vendor.Email != "" {
		fmt.Fprintf(w, " <%s>", d.Vendor.Email)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Invoice:  %s  total %s  due %s\n",
		d.Invoice.InvoiceNumber, money(d.Invoice.TotalAmount), dateOrDash(d.Invoice.DueDate))
	if d.Invoice.PaymentTerms != "" {
		fmt.Fprintf(w, "Terms:    %s\n", d.Invoice.PaymentTerms)
	}
	for _, warning := range out.Warnings {
		fmt.Fprintf(w, "Warning:  %s\n", warning)
	}
	fmt.Fprintf(w, "Plan:     vendor %s, invoice %s\n", out.Plan.VendorAction, out.Plan.InvoiceAction)

	if out.Result == nil {
		_, err := fmt.Fprintln(w, "Dry run, nothing written.")
		return err
	}
	_, err := fmt.Fprintf(w, "Written:  vendor %s, invoice %s\n", out.Result.VendorID, out.Result.InvoiceID)
	return err
}

package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"vendorsync/internal/config"
	"vendorsync/internal/logger"
)

const (
	// MaxDocumentSizeBytes is the maximum document size for processing (20MB)
	MaxDocumentSizeBytes = 20 * 1024 * 1024

	defaultProcessTimeout = 60 * time.Second
)

// DocumentAIConfig identifies the invoice processor to call.
type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	CredentialsFile  string
	CredentialsJSON  string
	Timeout          time.Duration
}

// DocumentAIConfigFrom picks the Document AI settings out of cfg.
func DocumentAIConfigFrom(cfg *config.Config) DocumentAIConfig {
	return DocumentAIConfig{
		ProjectID:        cfg.GoogleCloudProject,
		Location:         cfg.GoogleCloudLocation,
		ProcessorID:      cfg.DocumentAIProcessorID,
		ProcessorVersion: cfg.DocumentAIProcessorVersion,
		CredentialsFile:  cfg.GoogleCredentialsFile,
		CredentialsJSON:  cfg.GoogleCredentialsJSON,
		Timeout:          defaultProcessTimeout,
	}
}

// processorName is the full resource name of the processor (or version).
func (c DocumentAIConfig) processorName() string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
	if c.ProcessorVersion != "" {
		name += "/processorVersions/" + c.ProcessorVersion
	}
	return name
}

// DocumentAIExtractor calls a Google Document AI invoice processor.
type DocumentAIExtractor struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIExtractor connects to the processor's regional endpoint.
func NewDocumentAIExtractor(ctx context.Context, cfg DocumentAIConfig) (*DocumentAIExtractor, error) {
	const op = "NewDocumentAIExtractor"

	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, WrapExtractionError(op, ErrInvalidConfiguration, "project and processor ID are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProcessTimeout
	}

	var clientOptions []option.ClientOption
	if cfg.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	switch {
	case cfg.CredentialsJSON != "":
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		clientOptions = append(clientOptions, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, WrapExtractionError(op, ErrInvalidCredentials,
			fmt.Sprintf("failed to create Document AI client for location %s: %v", cfg.Location, err))
	}
	return NewDocumentAIExtractorWithClient(cfg, client), nil
}

// NewDocumentAIExtractorWithClient uses an existing client.
func NewDocumentAIExtractorWithClient(cfg DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProcessTimeout
	}
	return &DocumentAIExtractor{
		client: client,
		config: cfg,
		log:    logger.WithComponent("document-ai"),
	}
}

// Extract sends the file to the processor and maps its entities.
func (e *DocumentAIExtractor) Extract(ctx context.Context, filename string, r io.Reader) (*Document, error) {
	const op = "DocumentAIExtract"

	mimeType, err := MimeTypeFor(filename)
	if err != nil {
		return nil, &ExtractionError{Op: op, Err: err, Filename: filename}
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxDocumentSizeBytes+1))
	if err != nil {
		return nil, &ExtractionError{Op: op, Err: err, Filename: filename}
	}
	if n > MaxDocumentSizeBytes {
		return nil, &ExtractionError{Op: op, Err: ErrDocumentTooLarge, Filename: filename}
	}

	processCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	resp, err := e.client.ProcessDocument(processCtx, &documentaipb.ProcessRequest{
		Name: e.config.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  buf.Bytes(),
				MimeType: mimeType,
			},
		},
	})
	if err != nil {
		return nil, e.handleProcessingError(op, err)
	}
	if resp.GetDocument() == nil {
		return nil, WrapExtractionError(op, ErrProcessingFailed, "no document in response")
	}

	doc := DocumentFromProto(resp.GetDocument())
	e.log.Info().
		Str("file", filename).
		Int("entities", len(resp.GetDocument().GetEntities())).
		Str("invoice_number", doc.InvoiceDetails.InvoiceNumber.Text).
		Msg("Document AI extraction completed")
	return doc, nil
}

// Close closes the underlying Document AI client.
func (e *DocumentAIExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *DocumentAIExtractor) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"), strings.Contains(errStr, "PermissionDenied"):
		return WrapExtractionError(op, ErrInvalidCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "QUOTA_EXCEEDED"), strings.Contains(errStr, "ResourceExhausted"):
		return WrapExtractionError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "NOT_FOUND"), strings.Contains(errStr, "NotFound"):
		return WrapExtractionError(op, ErrProcessorNotFound, fmt.Sprintf("processor not found: %s", e.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT"), strings.Contains(errStr, "InvalidArgument"):
		return WrapExtractionError(op, ErrUnsupportedFormat, "document format not supported or corrupted")
	case strings.Contains(errStr, "DeadlineExceeded"), strings.Contains(errStr, "context deadline exceeded"):
		return WrapExtractionError(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled"), strings.Contains(errStr, "context canceled"):
		return WrapExtractionError(op, ErrContextCanceled, "processing was canceled")
	default:
		return WrapExtractionError(op, ErrProcessingFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// MimeTypeFor maps a file name to a MIME type the processor accepts.
func MimeTypeFor(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf", nil
	case ".png":
		return "image/png", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".tif", ".tiff":
		return "image/tiff", nil
	case ".gif":
		return "image/gif", nil
	case ".webp":
		return "image/webp", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
}

// DocumentFromProto maps invoice processor entities onto a Document. The
// supplier becomes BillTo because the supplier is the vendor being paid.
func DocumentFromProto(pb *documentaipb.Document) *Document {
	doc := &Document{RawText: pb.GetText()}
	details := &doc.InvoiceDetails
	fin := &details.FinancialData

	for _, entity := range pb.GetEntities() {
		switch entity.GetType() {
		case "invoice_id", "invoice_number":
			details.InvoiceNumber = textField(entity)
		case "supplier_name", "vendor_name":
			doc.BillTo.CompanyName = textField(entity)
		case "supplier_address", "remit_to_address":
			if doc.BillTo.Address.Text == "" {
				doc.BillTo.Address = textField(entity)
			}
		case "supplier_email":
			doc.BillTo.Contact.Email = textField(entity)
		case "supplier_phone":
			doc.BillTo.Contact.Phone = textField(entity)
		case "invoice_date":
			details.InvoiceDate = dateField(entity)
		case "due_date":
			details.DueDate = dateField(entity)
		case "net_amount", "subtotal_amount":
			fin.Subtotal = moneyField(entity)
		case "total_tax_amount", "vat_amount":
			fin.Tax = moneyField(entity)
		case "total_amount", "gross_amount":
			fin.TotalAmount = moneyField(entity)
		case "payment_terms":
			fin.PaymentTerms.TermsText = strings.TrimSpace(entity.GetMentionText())
		case "line_item":
			fin.LineItems = append(fin.LineItems, lineItem(entity))
		}
	}
	return doc
}

func textField(entity *documentaipb.Document_Entity) Field {
	return Field{Text: strings.TrimSpace(entity.GetMentionText())}
}

// dateField prefers the normalized date and renders it as YYYY-MM-DD.
func dateField(entity *documentaipb.Document_Entity) Field {
	if d := entity.GetNormalizedValue().GetDateValue(); d != nil && d.GetYear() > 0 {
		return Field{Text: fmt.Sprintf("%04d-%02d-%02d", d.GetYear(), d.GetMonth(), d.GetDay())}
	}
	return textField(entity)
}

func moneyField(entity *documentaipb.Document_Entity) Field {
	f := textField(entity)
	if m := entity.GetNormalizedValue().GetMoneyValue(); m != nil {
		v := float64(m.GetUnits()) + float64(m.GetNanos())/1e9
		f.NumericValue = &v
	}
	return f
}

func lineItem(entity *documentaipb.Document_Entity) LineItem {
	var item LineItem
	for _, prop := range entity.GetProperties() {
		switch prop.GetType() {
		case "line_item/description":
			item.Description = textField(prop)
		case "line_item/amount":
			item.Amount = moneyField(prop)
		case "line_item/quantity":
			if q, err := strconv.ParseFloat(strings.TrimSpace(prop.GetMentionText()), 64); err == nil {
				item.Quantity = &q
			}
		}
	}
	return item
}

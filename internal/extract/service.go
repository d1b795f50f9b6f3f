// Package extract turns an uploaded invoice file into a vendor/invoice draft.
//
// Two extractors are available:
//   - RemoteExtractor posts the file to the API's upload endpoint, which runs
//     OCR server-side and returns the document structure.
//   - DocumentAIExtractor calls a Google Document AI invoice processor
//     directly and maps its entities onto the same structure.
//
// Payment terms the extractor did not resolve are filled by TermsParser and,
// when an OpenAI key is configured, by ChatGPTTermsCompleter.
package extract

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"vendorsync/internal/logger"
	"vendorsync/pkg/models"
)

// Extractor reads a document from an uploaded file.
type Extractor interface {
	Extract(ctx context.Context, filename string, r io.Reader) (*Document, error)
}

// Result is a draft ready for reconciliation plus anything worth showing
// the user before it is written.
type Result struct {
	Document *Document    `json:"document"`
	Draft    models.Draft `json:"draft"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Pipeline runs an extractor and completes the draft.
type Pipeline struct {
	extractor Extractor
	parser    *TermsParser
	completer TermsCompleter
	log       zerolog.Logger
}

// NewPipeline builds a pipeline. completer may be nil.
func NewPipeline(extractor Extractor, completer TermsCompleter) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		parser:    NewTermsParser(),
		completer: completer,
		log:       logger.WithComponent("extract"),
	}
}

// Run extracts filename and returns the completed draft with validation warnings.
func (p *Pipeline) Run(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	const op = "Run"

	doc, err := p.extractor.Extract(ctx, filename, r)
	if err != nil {
		return nil, WrapExtractionError(op, err, filename)
	}

	draft := doc.Draft()
	draft = p.completeTerms(ctx, doc, draft)

	res := &Result{Document: doc, Draft: draft, Warnings: ValidateDraft(draft)}

	p.log.Info().
		Str("file", filename).
		Str("vendor", draft.Vendor.Name).
		Str("invoice_number", draft.Invoice.InvoiceNumber).
		Float64("total", draft.Invoice.TotalAmount).
		Int("warnings", len(res.Warnings)).
		Msg("Document extracted")
	return res, nil
}

// completeTerms fills discount, late fee and a missing due date from the
// terms text. The deterministic parser runs first; the completer only runs
// when the parser found nothing.
func (p *Pipeline) completeTerms(ctx context.Context, doc *Document, draft models.Draft) models.Draft {
	source := doc.TermsText()
	if source == "" {
		source = doc.RawText
	}
	if source == "" {
		return draft
	}

	terms := p.parser.Parse(source)
	if terms.IsEmpty() && p.completer != nil {
		completed, err := p.completer.CompleteTerms(ctx, source)
		if err != nil {
			p.log.Warn().Err(err).Msg("Terms completion failed, continuing without it")
		} else {
			terms = completed
		}
	}
	return terms.ApplyTo(draft)
}

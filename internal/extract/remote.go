package extract

import (
	"context"
	"encoding/json"
	"io"
)

// Uploader posts a document to the API's OCR endpoint.
type Uploader interface {
	UploadInvoice(ctx context.Context, filename string, r io.Reader) (json.RawMessage, error)
}

// RemoteExtractor delegates OCR to the API server.
type RemoteExtractor struct {
	uploader Uploader
}

func NewRemoteExtractor(u Uploader) *RemoteExtractor {
	return &RemoteExtractor{uploader: u}
}

func (e *RemoteExtractor) Extract(ctx context.Context, filename string, r io.Reader) (*Document, error) {
	const op = "RemoteExtract"

	raw, err := e.uploader.UploadInvoice(ctx, filename, r)
	if err != nil {
		return nil, &ExtractionError{Op: op, Err: err, Filename: filename}
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

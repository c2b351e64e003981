package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"taxfolio/internal/docparse"
	"taxfolio/internal/tax"
	"taxfolio/internal/util"
	"taxfolio/pkg/ai"
	"taxfolio/pkg/domain"
	"taxfolio/pkg/storage"
)

const (
	processConcurrent = 4
	downloadURLTTL    = 15 * time.Minute
)

// DocumentUpload is one file received from a multipart upload.
type DocumentUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentResult is the per-file outcome of a document batch. A batch
// succeeds file by file; one unreadable file does not fail the rest.
type DocumentResult struct {
	FileName string              `json:"fileName"`
	FileType string              `json:"fileType"`
	Document *domain.TaxDocument `json:"extractedData,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// extractedDocument mirrors the JSON shape the model returns for one
// document.
type extractedDocument struct {
	DocumentType  string            `json:"documentType"`
	Issuer        string            `json:"issuer"`
	TaxYear       string            `json:"taxYear"`
	FinancialData map[string]string `json:"financialData"`
}

func decodeExtractedDocument(response string) (extractedDocument, error) {
	var extracted extractedDocument
	if err := ai.DecodeJSON(response, &extracted); err != nil {
		return extractedDocument{}, err
	}
	return extracted, nil
}

// ProcessDocuments runs extraction over a batch of uploaded tax documents.
// Each file is parsed, sent to the model, archived in object storage, and
// recorded. Results come back in upload order.
func (a *App) ProcessDocuments(ctx context.Context, user domain.User, uploads []DocumentUpload) ([]DocumentResult, error) {
	if a.generator == nil {
		return nil, ErrNotConfigured
	}
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	results := make([]DocumentResult, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(processConcurrent)
	for i, upload := range uploads {
		i, upload := i, upload
		g.Go(func() error {
			result := DocumentResult{FileName: upload.Filename, FileType: upload.ContentType}
			doc, err := a.processDocument(gctx, user, upload)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Document = &doc
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *App) processDocument(ctx context.Context, user domain.User, upload DocumentUpload) (domain.TaxDocument, error) {
	content, err := uploadText(upload)
	if err != nil {
		return domain.TaxDocument{}, err
	}
	response, err := a.generator.GenerateText(ctx, tax.DocumentSystemPrompt,
		tax.DocumentPrompt(upload.Filename, upload.ContentType, content))
	if err != nil {
		return domain.TaxDocument{}, fmt.Errorf("extract document: %w", err)
	}
	extracted, err := decodeExtractedDocument(response)
	if err != nil {
		return domain.TaxDocument{}, err
	}
	doc := domain.TaxDocument{
		ID:            util.NewID(),
		UserID:        user.ID,
		DocumentType:  extracted.DocumentType,
		Issuer:        extracted.Issuer,
		TaxYear:       extracted.TaxYear,
		FinancialData: extracted.FinancialData,
		SourceName:    upload.Filename,
		CreatedAt:     a.now().UTC(),
	}
	key := storage.DocumentKey(user.ID, doc.ID, upload.Filename)
	if err := a.objects.Put(ctx, key, bytes.NewReader(upload.Data), int64(len(upload.Data)), upload.ContentType); err != nil {
		return domain.TaxDocument{}, fmt.Errorf("archive original: %w", err)
	}
	doc.StorageKey = key
	if err := a.store.SaveTaxDocument(doc); err != nil {
		return domain.TaxDocument{}, fmt.Errorf("save tax document: %w", err)
	}
	return doc, nil
}

// uploadText turns an upload into model-readable text based on its type.
func uploadText(upload DocumentUpload) (string, error) {
	switch uploadKind(upload) {
	case "pdf":
		return docparse.ExtractPDFText(upload.Data)
	case "csv", "text":
		return strings.TrimSpace(string(upload.Data)), nil
	case "html":
		return docparse.ExtractHTMLText(string(upload.Data))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, upload.Filename)
	}
}

func uploadKind(upload DocumentUpload) string {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	contentType := strings.ToLower(upload.ContentType)
	switch {
	case ext == ".pdf" || strings.Contains(contentType, "application/pdf"):
		return "pdf"
	case ext == ".csv" || strings.Contains(contentType, "text/csv"):
		return "csv"
	case ext == ".html" || ext == ".htm" || strings.Contains(contentType, "text/html"):
		return "html"
	case ext == ".txt" || strings.Contains(contentType, "text/plain"):
		return "text"
	default:
		return ""
	}
}

// ListTaxDocuments returns the user's extracted documents, newest first.
func (a *App) ListTaxDocuments(user domain.User) ([]domain.TaxDocument, error) {
	return a.store.ListTaxDocuments(user.ID)
}

// DocumentDownloadURL returns a time-limited URL for the archived original
// of one of the user's documents.
func (a *App) DocumentDownloadURL(ctx context.Context, user domain.User, documentID string) (string, error) {
	if strings.TrimSpace(documentID) == "" {
		return "", fmt.Errorf("%w: id", ErrMissingParameter)
	}
	doc, err := a.store.GetTaxDocument(user.ID, documentID)
	if err != nil {
		return "", err
	}
	if doc.StorageKey == "" {
		return "", ErrDocumentNotArchived
	}
	url, err := a.objects.PresignGet(ctx, doc.StorageKey, downloadURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}

// DeleteTaxDocument removes an extracted document together with its
// archived original.
func (a *App) DeleteTaxDocument(ctx context.Context, user domain.User, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("%w: id", ErrMissingParameter)
	}
	doc, err := a.store.GetTaxDocument(user.ID, documentID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteTaxDocument(user.ID, documentID); err != nil {
		return err
	}
	if doc.StorageKey != "" {
		if err := a.objects.Delete(ctx, doc.StorageKey); err != nil {
			return fmt.Errorf("delete archived original: %w", err)
		}
	}
	return nil
}

package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docuchat/internal/core/domain"
	"github.com/kirillkom/docuchat/internal/core/ports"
)

// Dispatcher picks the extractor by mime type, falling back to the filename
// extension when the client sent a generic type.
type Dispatcher struct {
	plain ports.TextExtractor
	pdf   ports.TextExtractor
	excel ports.TextExtractor
}

func NewDispatcher(plain, pdf, excel ports.TextExtractor) *Dispatcher {
	return &Dispatcher{plain: plain, pdf: pdf, excel: excel}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) ([]domain.PageText, error) {
	switch pick(doc.MimeType, doc.Filename) {
	case "pdf":
		return d.pdf.Extract(ctx, doc)
	case "excel":
		return d.excel.Extract(ctx, doc)
	default:
		return d.plain.Extract(ctx, doc)
	}
}

func pick(mimeType, filename string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/vnd.ms-excel":
		return "excel"
	case "text/plain", "text/markdown", "text/csv":
		return "plain"
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".xlsx", ".xlsm":
		return "excel"
	default:
		return "plain"
	}
}

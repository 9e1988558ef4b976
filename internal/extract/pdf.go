package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"origtext/internal/util"
)

func PDF(ctx context.Context, path string) (Result, error) {
	_ = ctx
	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	attrs := map[string]any{"pageCount": r.NumPage()}
	reader, err := r.GetPlainText()
	if err != nil {
		return Result{Attributes: attrs}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return Result{Attributes: attrs}, fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(buf.String())
	return Result{Text: text, Attributes: attrs}, nil
}

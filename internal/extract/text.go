package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"origtext/internal/util"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText reads a text file as UTF-8, UTF-16 with a BOM, or GB18030.
func PlainText(ctx context.Context, path string) (Result, error) {
	_ = ctx
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read text file: %w", err)
	}
	text, err := decodeText(b)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: util.SanitizeText(text)}, nil
}

func decodeText(b []byte) (string, error) {
	switch {
	case bytes.HasPrefix(b, utf8BOM):
		return string(b[len(utf8BOM):]), nil
	case bytes.HasPrefix(b, []byte{0xFF, 0xFE}), bytes.HasPrefix(b, []byte{0xFE, 0xFF}):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("decode utf-16 text: %w", err)
		}
		return string(out), nil
	case utf8.Valid(b):
		return string(b), nil
	default:
		out, err := simplifiedchinese.GB18030.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("decode gb18030 text: %w", err)
		}
		return string(out), nil
	}
}

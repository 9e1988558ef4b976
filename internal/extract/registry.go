package extract

import (
	"context"
	"strings"
	"sync"
)

// Result is the text pulled out of a file plus any format attributes seen on the way.
type Result struct {
	Text       string
	Attributes map[string]any
}

type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

type ExtractorFunc func(ctx context.Context, path string) (Result, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) (Result, error) {
	return f(ctx, path)
}

// Format describes what the pipeline can do with one file extension.
// Convertible formats are rendered to PDF; NativePDF files already are one.
type Format struct {
	Extractor   Extractor
	Convertible bool
	NativePDF   bool
}

type Registry struct {
	mu      sync.RWMutex
	formats map[string]Format
}

func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]Format)}
}

// Default registers every built-in format.
func Default() *Registry {
	r := NewRegistry()
	r.Register(".txt", Format{Extractor: ExtractorFunc(PlainText)})
	r.Register(".doc", Format{Extractor: ExtractorFunc(WordBinary), Convertible: true})
	r.Register(".docx", Format{Extractor: ExtractorFunc(WordXML), Convertible: true})
	r.Register(".ppt", Format{Extractor: ExtractorFunc(PowerPointBinary), Convertible: true})
	r.Register(".pptx", Format{Extractor: ExtractorFunc(PowerPointXML), Convertible: true})
	r.Register(".xls", Format{Extractor: ExtractorFunc(ExcelBinary), Convertible: true})
	r.Register(".xlsx", Format{Extractor: ExtractorFunc(Workbook), Convertible: true})
	r.Register(".xlsm", Format{Extractor: ExtractorFunc(Workbook)})
	r.Register(".pdf", Format{Extractor: ExtractorFunc(PDF), NativePDF: true})
	return r
}

func normalizeExt(nameOrExt string) string {
	s := strings.ToLower(strings.TrimSpace(nameOrExt))
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i:]
	}
	if s == "" {
		return ""
	}
	return "." + s
}

func (r *Registry) Register(ext string, f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[normalizeExt(ext)] = f
}

// Lookup accepts a file name or a bare extension.
func (r *Registry) Lookup(nameOrExt string) (Format, bool) {
	ext := normalizeExt(nameOrExt)
	if ext == "" || ext == "." {
		return Format{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[ext]
	return f, ok
}

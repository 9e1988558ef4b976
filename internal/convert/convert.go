package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Converter renders an office document to PDF inside outDir and returns the
// path of the rendition.
type Converter interface {
	ToPDF(ctx context.Context, srcPath, outDir string) (string, error)
}

var ErrTimeout = errors.New("conversion timed out")

// Soffice drives a headless LibreOffice. Every call uses a private profile
// under outDir so conversions can run side by side.
type Soffice struct {
	Bin     string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewSoffice(bin string, timeout time.Duration, log *slog.Logger) *Soffice {
	if bin == "" {
		bin = "soffice"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Soffice{Bin: bin, Timeout: timeout, Logger: log}
}

func (s *Soffice) ToPDF(ctx context.Context, srcPath, outDir string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	profile := filepath.Join(outDir, ".lo-profile")
	cmd := exec.CommandContext(runCtx, s.Bin,
		"-env:UserInstallation=file://"+filepath.ToSlash(profile),
		"--headless", "--norestore", "--nolockcheck",
		"--convert-to", "pdf",
		"--outdir", outDir,
		srcPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	start := time.Now()
	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s", ErrTimeout, s.Timeout)
	}
	if err != nil {
		return "", fmt.Errorf("soffice convert %s: %w: %s", filepath.Base(srcPath), err, strings.TrimSpace(stderr.String()))
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	out := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("soffice produced no pdf for %s: %w", filepath.Base(srcPath), err)
	}
	s.Logger.Debug("converted to pdf", "file", filepath.Base(srcPath), "elapsed", time.Since(start).String())
	return out, nil
}

// Optimize rewrites a PDF through pdfcpu with relaxed validation.
func Optimize(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(inPath, outPath, cfg); err != nil {
		return fmt.Errorf("optimize pdf: %w", err)
	}
	return nil
}

func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return n, nil
}

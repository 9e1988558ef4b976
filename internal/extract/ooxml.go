package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"origtext/internal/util"
)

// WordXML extracts paragraphs from word/document.xml.
func WordXML(ctx context.Context, path string) (Result, error) {
	_ = ctx
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Result{}, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	part := findPart(&zr.Reader, "word/document.xml")
	if part == nil {
		return Result{}, fmt.Errorf("docx: missing word/document.xml")
	}
	var b strings.Builder
	if err := collectRuns(part, "t", &b); err != nil {
		return Result{}, fmt.Errorf("docx: %w", err)
	}
	text := util.SanitizeText(b.String())
	return Result{Text: text}, nil
}

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// PowerPointXML extracts slide text in slide order.
func PowerPointXML(ctx context.Context, path string) (Result, error) {
	_ = ctx
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Result{}, fmt.Errorf("open pptx: %w", err)
	}
	defer zr.Close()

	type slide struct {
		n int
		f *zip.File
	}
	slides := make([]slide, 0)
	for _, f := range zr.File {
		m := slidePart.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, f: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		if err := collectRuns(s.f, "t", &b); err != nil {
			return Result{}, fmt.Errorf("pptx slide %d: %w", s.n, err)
		}
		b.WriteString("\n")
	}
	attrs := map[string]any{"slideCount": len(slides)}
	text := util.SanitizeText(b.String())
	return Result{Text: text, Attributes: attrs}, nil
}

func findPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// collectRuns appends the character data of every <textTag> element, with
// paragraph ends as newlines and tab/break elements as whitespace.
func collectRuns(f *zip.File, textTag string, b *strings.Builder) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case textTag:
				inText = true
			case "tab":
				b.WriteString("\t")
			case "br", "cr":
				b.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textTag:
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
}

package extract

import (
	"context"
	"fmt"
	"strings"

	"origtext/internal/util"
)

const (
	pptRecordHeader   = 8
	pptContainer      = 0x0F
	pptTextCharsAtom  = 0x0FA0
	pptTextBytesAtom  = 0x0FA8
	pptSlideContainer = 0x03EE
	pptNotes          = 0x03F0
	pptMainMaster     = 0x03F8
)

// PowerPointBinary collects slide TextCharsAtom and TextBytesAtom records from
// a PowerPoint 97-2003 presentation.
func PowerPointBinary(ctx context.Context, path string) (Result, error) {
	_ = ctx
	streams, err := readStreams(path, "PowerPoint Document")
	if err != nil {
		return Result{}, err
	}
	data := streams["PowerPoint Document"]
	if len(data) == 0 {
		return Result{}, fmt.Errorf("ppt: missing PowerPoint Document stream")
	}

	text, slides := pptText(data)
	return Result{Text: text, Attributes: map[string]any{"slideCount": slides}}, nil
}

// pptText walks the record tree of a PowerPoint Document stream. Master and
// notes containers are skipped with all their children.
func pptText(data []byte) (string, int) {
	var b strings.Builder
	slides := 0
	pos := 0
	for pos+pptRecordHeader <= len(data) {
		verInst, _ := u16(data, pos)
		recType, _ := u16(data, pos+2)
		recLen, _ := u32(data, pos+4)
		body := pos + pptRecordHeader
		end := body + int(recLen)

		if verInst&0x000F == pptContainer {
			switch recType {
			case pptMainMaster, pptNotes:
				if end > len(data) || end < body {
					return util.SanitizeText(b.String()), slides
				}
				pos = end
			case pptSlideContainer:
				slides++
				pos = body
			default:
				pos = body
			}
			continue
		}
		if end > len(data) || end < body {
			break
		}
		switch recType {
		case pptTextCharsAtom:
			b.WriteString(decodeUTF16LE(data[body:end]))
			b.WriteString("\n")
		case pptTextBytesAtom:
			b.WriteString(decodeCP1252(data[body:end]))
			b.WriteString("\n")
		}
		pos = end
	}
	return util.SanitizeText(strings.ReplaceAll(b.String(), "\r", "\n")), slides
}

package extract

import (
	"context"
	"fmt"
	"strings"

	"origtext/internal/util"
)

const (
	wordIdent       = 0xA5EC
	fibFlagsOffset  = 0x000A
	fibWhichTable   = 0x0200
	fibFcClx        = 0x01A2
	fibLcbClx       = 0x01A6
	pcdCompressed   = 0x40000000
	clxPrcMarker    = 0x01
	clxPcdtMarker   = 0x02
	pcdSize         = 8
	pcdFcOffset     = 2
	wordFieldBegin  = 0x13
	wordFieldSep    = 0x14
	wordFieldEnd    = 0x15
	wordCellMark    = 0x07
	wordPageBreak   = 0x0C
	wordLineBreak   = 0x0B
	wordParagraphCR = 0x0D
)

// WordBinary extracts the main text of a Word 97-2003 document by walking the
// piece table in the table stream.
func WordBinary(ctx context.Context, path string) (Result, error) {
	_ = ctx
	streams, err := readStreams(path, "WordDocument", "0Table", "1Table")
	if err != nil {
		return Result{}, err
	}
	word := streams["WordDocument"]
	if len(word) == 0 {
		return Result{}, fmt.Errorf("doc: missing WordDocument stream")
	}
	raw, err := wordPieces(word, streams)
	if err != nil {
		return Result{}, fmt.Errorf("doc: %w", err)
	}
	text := util.SanitizeText(cleanWordText(raw))
	return Result{Text: text}, nil
}

func wordPieces(word []byte, streams map[string][]byte) (string, error) {
	ident, err := u16(word, 0)
	if err != nil || ident != wordIdent {
		return "", fmt.Errorf("not a word binary document")
	}
	flags, err := u16(word, fibFlagsOffset)
	if err != nil {
		return "", err
	}
	tableName := "0Table"
	if flags&fibWhichTable != 0 {
		tableName = "1Table"
	}
	table := streams[tableName]
	if len(table) == 0 {
		return "", fmt.Errorf("missing %s stream", tableName)
	}
	fcClx, err := u32(word, fibFcClx)
	if err != nil {
		return "", err
	}
	lcbClx, err := u32(word, fibLcbClx)
	if err != nil {
		return "", err
	}
	end := int(fcClx) + int(lcbClx)
	if lcbClx == 0 || end > len(table) {
		return "", fmt.Errorf("clx out of range")
	}

	pos := int(fcClx)
	for pos < end && table[pos] == clxPrcMarker {
		cb, err := u16(table, pos+1)
		if err != nil {
			return "", err
		}
		pos += 3 + int(cb)
	}
	if pos >= end || table[pos] != clxPcdtMarker {
		return "", fmt.Errorf("piece table not found")
	}
	lcb, err := u32(table, pos+1)
	if err != nil {
		return "", err
	}
	plc := pos + 5
	if lcb < 4 || plc+int(lcb) > len(table) {
		return "", fmt.Errorf("piece table out of range")
	}
	n := (int(lcb) - 4) / (4 + pcdSize)
	pcdBase := plc + 4*(n+1)

	var b strings.Builder
	for i := 0; i < n; i++ {
		cpStart, err := u32(table, plc+4*i)
		if err != nil {
			return "", err
		}
		cpEnd, err := u32(table, plc+4*(i+1))
		if err != nil {
			return "", err
		}
		if cpEnd <= cpStart {
			continue
		}
		fc, err := u32(table, pcdBase+pcdSize*i+pcdFcOffset)
		if err != nil {
			return "", err
		}
		count := int(cpEnd - cpStart)
		if fc&pcdCompressed != 0 {
			off := int((fc &^ pcdCompressed) / 2)
			if off+count > len(word) {
				return "", fmt.Errorf("piece %d out of range", i)
			}
			b.WriteString(decodeCP1252(word[off : off+count]))
		} else {
			off := int(fc)
			if off+2*count > len(word) {
				return "", fmt.Errorf("piece %d out of range", i)
			}
			b.WriteString(decodeUTF16LE(word[off : off+2*count]))
		}
	}
	return b.String(), nil
}

// cleanWordText maps Word control characters to plain whitespace and keeps
// only the displayed result of fields.
func cleanWordText(s string) string {
	var b strings.Builder
	depth := 0
	inInstr := make([]bool, 0, 4)
	for _, r := range s {
		switch r {
		case wordFieldBegin:
			depth++
			inInstr = append(inInstr, true)
			continue
		case wordFieldSep:
			if depth > 0 {
				inInstr[depth-1] = false
			}
			continue
		case wordFieldEnd:
			if depth > 0 {
				depth--
				inInstr = inInstr[:depth]
			}
			continue
		}
		if depth > 0 && inInstr[depth-1] {
			continue
		}
		switch r {
		case wordParagraphCR, wordLineBreak, wordPageBreak:
			b.WriteRune('\n')
		case wordCellMark:
			b.WriteRune('\t')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

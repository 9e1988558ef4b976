package extract

import (
	"context"
	"fmt"
	"strings"

	"origtext/internal/util"
)

const (
	biffSST        = 0x00FC
	biffContinue   = 0x003C
	biffBoundSheet = 0x0085
	biffEOF        = 0x000A

	sstHighByte = 0x01
	sstExtended = 0x04
	sstRichText = 0x08
)

// ExcelBinary extracts the shared string table of a BIFF8 workbook.
func ExcelBinary(ctx context.Context, path string) (Result, error) {
	_ = ctx
	streams, err := readStreams(path, "Workbook", "Book")
	if err != nil {
		return Result{}, err
	}
	data := streams["Workbook"]
	if len(data) == 0 {
		if len(streams["Book"]) > 0 {
			return Result{}, fmt.Errorf("xls: BIFF5 workbooks are not supported")
		}
		return Result{}, fmt.Errorf("xls: missing Workbook stream")
	}

	text, sheets, err := xlsText(data)
	attrs := map[string]any{"sheetCount": sheets}
	if err != nil {
		return Result{Attributes: attrs}, fmt.Errorf("xls: %w", err)
	}
	return Result{Text: text, Attributes: attrs}, nil
}

// xlsText walks the BIFF8 records of a Workbook stream, counting sheets and
// decoding the shared string table with its CONTINUE records.
func xlsText(data []byte) (string, int, error) {
	sheets := 0
	var segs [][]byte
	inSST := false
	pos := 0
	for pos+4 <= len(data) {
		recType, _ := u16(data, pos)
		recLen, _ := u16(data, pos+2)
		body := pos + 4
		end := body + int(recLen)
		if end > len(data) {
			break
		}
		switch {
		case recType == biffBoundSheet:
			sheets++
			inSST = false
		case recType == biffSST:
			segs = append(segs, data[body:end])
			inSST = true
		case recType == biffContinue && inSST:
			segs = append(segs, data[body:end])
		default:
			inSST = false
		}
		pos = end
	}
	if len(segs) == 0 {
		return "", sheets, nil
	}
	strs, err := parseSST(segs)
	if err != nil {
		return "", sheets, err
	}
	return util.SanitizeText(strings.Join(strs, "\n")), sheets, nil
}

// sstReader reads across SST and CONTINUE record boundaries.
type sstReader struct {
	segs [][]byte
	seg  int
	pos  int
}

func (r *sstReader) atSegEnd() bool {
	return r.pos >= len(r.segs[r.seg])
}

func (r *sstReader) nextSeg() bool {
	if r.seg+1 >= len(r.segs) {
		return false
	}
	r.seg++
	r.pos = 0
	return true
}

func (r *sstReader) readByte() (byte, error) {
	for r.atSegEnd() {
		if !r.nextSeg() {
			return 0, errTruncated
		}
	}
	c := r.segs[r.seg][r.pos]
	r.pos++
	return c, nil
}

func (r *sstReader) u16() (uint16, error) {
	lo, err := r.readByte()
	if err != nil {
		return 0, err
	}
	hi, err := r.readByte()
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func (r *sstReader) u32() (uint32, error) {
	lo, err := r.u16()
	if err != nil {
		return 0, err
	}
	hi, err := r.u16()
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

func (r *sstReader) skip(n int) error {
	for n > 0 {
		if r.atSegEnd() && !r.nextSeg() {
			return errTruncated
		}
		avail := len(r.segs[r.seg]) - r.pos
		if avail > n {
			avail = n
		}
		r.pos += avail
		n -= avail
	}
	return nil
}

// chars reads count characters. A string continued in a new record restarts
// with an option byte that selects the character width for the remainder.
func (r *sstReader) chars(count int, high bool) (string, error) {
	var b strings.Builder
	for count > 0 {
		if r.atSegEnd() {
			if !r.nextSeg() {
				return "", errTruncated
			}
			flag, err := r.readByte()
			if err != nil {
				return "", err
			}
			high = flag&sstHighByte != 0
		}
		width := 1
		if high {
			width = 2
		}
		seg := r.segs[r.seg]
		take := (len(seg) - r.pos) / width
		if take == 0 {
			return "", errTruncated
		}
		if take > count {
			take = count
		}
		chunk := seg[r.pos : r.pos+take*width]
		if high {
			b.WriteString(decodeUTF16LE(chunk))
		} else {
			b.WriteString(decodeCP1252(chunk))
		}
		r.pos += take * width
		count -= take
	}
	return b.String(), nil
}

func parseSST(segs [][]byte) ([]string, error) {
	r := &sstReader{segs: segs}
	if _, err := r.u32(); err != nil {
		return nil, err
	}
	unique, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, unique)
	for i := uint32(0); i < unique; i++ {
		cch, err := r.u16()
		if err != nil {
			return out, nil
		}
		flags, err := r.readByte()
		if err != nil {
			return out, nil
		}
		runs := 0
		ext := 0
		if flags&sstRichText != 0 {
			v, err := r.u16()
			if err != nil {
				return out, nil
			}
			runs = int(v)
		}
		if flags&sstExtended != 0 {
			v, err := r.u32()
			if err != nil {
				return out, nil
			}
			ext = int(v)
		}
		s, err := r.chars(int(cch), flags&sstHighByte != 0)
		if err != nil {
			return out, nil
		}
		out = append(out, s)
		if err := r.skip(4*runs + ext); err != nil {
			return out, nil
		}
	}
	return out, nil
}

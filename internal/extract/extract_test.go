package extract

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestRegistryLookup(t *testing.T) {
	r := Default()

	f, ok := r.Lookup("Report.DOCX")
	require.True(t, ok)
	require.True(t, f.Convertible)

	f, ok = r.Lookup("scan.pdf")
	require.True(t, ok)
	require.True(t, f.NativePDF)
	require.False(t, f.Convertible)

	f, ok = r.Lookup("macro.xlsm")
	require.True(t, ok)
	require.False(t, f.Convertible)

	_, ok = r.Lookup("archive.7z")
	require.False(t, ok)
	_, ok = r.Lookup("noextension")
	require.False(t, ok)
}

func TestRegistryRegisterCustom(t *testing.T) {
	r := NewRegistry()
	r.Register("md", Format{Extractor: ExtractorFunc(PlainText)})
	_, ok := r.Lookup("readme.MD")
	require.True(t, ok)
}

func TestPlainTextUTF8AndGB18030(t *testing.T) {
	dir := t.TempDir()

	utf8Path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(utf8Path, []byte("\xEF\xBB\xBFhello archive\n"), 0o644))
	res, err := PlainText(context.Background(), utf8Path)
	require.NoError(t, err)
	require.Equal(t, "hello archive", res.Text)

	gb, err := simplifiedchinese.GB18030.NewEncoder().String("档案原文")
	require.NoError(t, err)
	gbPath := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(gbPath, []byte(gb), 0o644))
	res, err = PlainText(context.Background(), gbPath)
	require.NoError(t, err)
	require.Equal(t, "档案原文", res.Text)
}

func TestPlainTextWhitespaceOnlyIsEmptySuccess(t *testing.T) {
	p := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(p, []byte("  \n\x00"), 0o644))
	res, err := PlainText(context.Background(), p)
	require.NoError(t, err)
	require.Empty(t, res.Text)
}

func writeZip(t *testing.T, path string, parts map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestWordXML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "doc.docx")
	writeZip(t, p, map[string]string{
		"word/document.xml": `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>First</w:t></w:r><w:r><w:tab/><w:t>para</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t></w:r></w:p>
</w:body></w:document>`,
	})
	res, err := WordXML(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, "First\tpara\nSecond", res.Text)
}

func TestPowerPointXMLSlideOrder(t *testing.T) {
	p := filepath.Join(t.TempDir(), "deck.pptx")
	slide := func(s string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><a:p><a:r><a:t>` + s + `</a:t></a:r></a:p></p:cSld></p:sld>`
	}
	writeZip(t, p, map[string]string{
		"ppt/slides/slide10.xml": slide("ten"),
		"ppt/slides/slide2.xml":  slide("two"),
		"ppt/slides/slide1.xml":  slide("one"),
	})
	res, err := PowerPointXML(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, "one\n\ntwo\n\nten", res.Text)
	require.Equal(t, 3, res.Attributes["slideCount"])
}

func TestWorkbook(t *testing.T) {
	p := filepath.Join(t.TempDir(), "book.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "ledger"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "1950"))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Other", "A2", "fonds"))
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	res, err := Workbook(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, "ledger\t1950\nfonds", res.Text)
	require.Equal(t, 2, res.Attributes["sheetCount"])
}

func TestWordPiecesCompressed(t *testing.T) {
	const textOffset = 0x400
	word := make([]byte, textOffset+16)
	binary.LittleEndian.PutUint16(word[0:], wordIdent)
	binary.LittleEndian.PutUint16(word[fibFlagsOffset:], fibWhichTable)
	copy(word[textOffset:], "Hello\rWorld")

	clx := make([]byte, 0, 32)
	clx = append(clx, clxPcdtMarker)
	clx = binary.LittleEndian.AppendUint32(clx, 16)
	clx = binary.LittleEndian.AppendUint32(clx, 0)
	clx = binary.LittleEndian.AppendUint32(clx, 11)
	clx = binary.LittleEndian.AppendUint16(clx, 0)
	clx = binary.LittleEndian.AppendUint32(clx, uint32(textOffset*2)|pcdCompressed)
	clx = binary.LittleEndian.AppendUint16(clx, 0)

	binary.LittleEndian.PutUint32(word[fibFcClx:], 0)
	binary.LittleEndian.PutUint32(word[fibLcbClx:], uint32(len(clx)))

	raw, err := wordPieces(word, map[string][]byte{"1Table": clx})
	require.NoError(t, err)
	require.Equal(t, "Hello\nWorld", cleanWordText(raw))
}

func TestCleanWordTextKeepsFieldResult(t *testing.T) {
	in := "See \x13 HYPERLINK \"x\" \x14page 4\x15 now\x07cell"
	require.Equal(t, "See page 4 now\tcell", cleanWordText(in))
}

func TestParseSSTAcrossContinue(t *testing.T) {
	first := []byte{
		2, 0, 0, 0, // total
		2, 0, 0, 0, // unique
		3, 0, 0, 'a', 'b', 'c',
		4, 0, 0, 'd', 'e',
	}
	// continuation switches the remaining characters to UTF-16
	second := []byte{0x01, 'f', 0, 'g', 0}
	strs, err := parseSST([][]byte{first, second})
	require.NoError(t, err)
	require.Equal(t, []string{"abc", "defg"}, strs)
}

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = binary.LittleEndian.AppendUint16(out, uint16(r))
	}
	return out
}

func pptRecord(verInst, recType uint16, body []byte) []byte {
	out := binary.LittleEndian.AppendUint16(nil, verInst)
	out = binary.LittleEndian.AppendUint16(out, recType)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...)
}

func pptContainerRecord(recType uint16, children ...[]byte) []byte {
	var body []byte
	for _, c := range children {
		body = append(body, c...)
	}
	return pptRecord(pptContainer, recType, body)
}

func TestPPTTextSkipsMastersAndNotes(t *testing.T) {
	const documentContainer = 0x03E8
	stream := pptContainerRecord(documentContainer,
		pptContainerRecord(pptMainMaster,
			pptRecord(0, pptTextCharsAtom, utf16le("Click to edit Master title style")),
		),
		pptContainerRecord(pptSlideContainer,
			pptRecord(0, pptTextCharsAtom, utf16le("Fonds 12 inventory")),
		),
		pptContainerRecord(pptNotes,
			pptRecord(0, pptTextBytesAtom, []byte("speaker notes")),
		),
		pptContainerRecord(pptSlideContainer,
			pptRecord(0, pptTextBytesAtom, []byte("Second\rslide")),
		),
	)

	text, slides := pptText(stream)
	require.Equal(t, "Fonds 12 inventory\nSecond\nslide", text)
	require.Equal(t, 2, slides)
}

func TestPPTTextTruncatedStream(t *testing.T) {
	stream := pptContainerRecord(pptSlideContainer,
		pptRecord(0, pptTextBytesAtom, []byte("kept")),
	)
	stream = append(stream, pptRecord(0, pptTextBytesAtom, []byte("cut off"))[:10]...)

	text, slides := pptText(stream)
	require.Equal(t, "kept", text)
	require.Equal(t, 1, slides)
}

func biffRecord(recType uint16, body []byte) []byte {
	out := binary.LittleEndian.AppendUint16(nil, recType)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(body)))
	return append(out, body...)
}

func TestXLSTextWalksSSTAndContinue(t *testing.T) {
	sst := []byte{
		2, 0, 0, 0,
		2, 0, 0, 0,
		6, 0, 0, 'l', 'e', 'd', 'g', 'e', 'r',
		5, 0, 0, 'f', 'o',
	}
	stream := append([]byte{}, biffRecord(biffBoundSheet, []byte{0, 0, 0, 0, 0, 0, 1, 0, 'A'})...)
	stream = append(stream, biffRecord(biffBoundSheet, []byte{0, 0, 0, 0, 0, 0, 1, 0, 'B'})...)
	stream = append(stream, biffRecord(biffSST, sst)...)
	stream = append(stream, biffRecord(biffContinue, []byte{0x00, 'n', 'd', 's'})...)
	stream = append(stream, biffRecord(biffEOF, nil)...)
	// a CONTINUE outside the string table is not text
	stream = append(stream, biffRecord(biffContinue, []byte{0x00, 'x', 'x'})...)

	text, sheets, err := xlsText(stream)
	require.NoError(t, err)
	require.Equal(t, "ledger\nfonds", text)
	require.Equal(t, 2, sheets)
}

func TestXLSTextWithoutStringTable(t *testing.T) {
	stream := biffRecord(biffBoundSheet, []byte{0, 0, 0, 0, 0, 0, 1, 0, 'A'})
	text, sheets, err := xlsText(stream)
	require.NoError(t, err)
	require.Empty(t, text)
	require.Equal(t, 1, sheets)
}

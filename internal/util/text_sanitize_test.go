package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"binary word residue", "Minutes\x00\x00 of\x07 meeting\x01\n\tagenda", "Minutes of meeting\n\tagenda"},
		{"breaks and bom", "\ufeffline one\rline two\n\n\n\nline three  \n", "line one\nline two\n\nline three"},
		{"form feed between slides", "slide 1\fslide 2", "slide 1\nslide 2"},
		{"invalid utf8", "ok\xff\xfe done", "ok done"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SanitizeText(tc.in))
		})
	}
}

func TestSafeBase(t *testing.T) {
	require.Equal(t, "report.docx", SafeBase("../../report.docx"))
	require.Equal(t, "scan.pdf", SafeBase(`C:\Users\me\scan.pdf`))
	require.Equal(t, "file", SafeBase(".."))
	require.Equal(t, "file", SafeBase(""))
	require.Equal(t, ".pdf", LowerExt("A.PDF"))
}

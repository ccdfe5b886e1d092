package tracker

import (
	"bytes"
	"mime"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
)

const pdfMimeType = "application/pdf"

// isPDF reports whether the declared content type is a PDF. Parameters such
// as charset are ignored.
func isPDF(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.EqualFold(strings.TrimSpace(contentType), pdfMimeType)
	}
	return mt == pdfMimeType
}

// pageCount returns the number of pages in data, or 0 when the file cannot
// be parsed. The parser panics on some malformed input.
func pageCount(data []byte) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return r.NumPage()
}

// baseName strips any directory part a browser or client left in the
// uploaded file name.
func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	switch name {
	case "", ".", "/", "..":
		return "document.pdf"
	}
	return name
}

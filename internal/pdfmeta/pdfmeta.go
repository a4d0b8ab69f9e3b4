// Package pdfmeta reads the little we need from an uploaded paper before it
// is handed to the pipeline.
package pdfmeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"paperreel/internal/util"

	"github.com/ledongthuc/pdf"
)

var ErrNotPDF = errors.New("not a readable PDF")

// HasHeader reports whether b starts with the %PDF- magic. Encrypted or
// unusual files can carry it and still fail Inspect.
func HasHeader(b []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(b, " \t\r\n"), []byte("%PDF-"))
}

type Meta struct {
	PageCount   int    `json:"page_count"`
	Title       string `json:"title,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// Inspect validates r as a PDF and returns its page count, info-dictionary
// title and sha256 fingerprint.
func Inspect(r io.ReaderAt, size int64) (meta Meta, err error) {
	defer func() {
		// The parser panics on some malformed inputs.
		if p := recover(); p != nil {
			meta = Meta{}
			err = fmt.Errorf("%w: %v", ErrNotPDF, p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	meta.PageCount = reader.NumPage()
	if meta.PageCount <= 0 {
		return Meta{}, fmt.Errorf("%w: no pages", ErrNotPDF)
	}
	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		meta.Title = util.SanitizeText(strings.TrimSpace(info.Key("Title").Text()))
	}

	fp, err := util.SHA256HexFromReader(io.NewSectionReader(r, 0, size))
	if err != nil {
		return Meta{}, fmt.Errorf("fingerprint pdf: %w", err)
	}
	meta.Fingerprint = fp
	return meta, nil
}

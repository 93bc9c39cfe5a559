// Package document loads diet-plan documents and extracts their text.
package document

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/plano-ai/plano/internal/domain"
)

// MaxSize is the largest document Load accepts.
const MaxSize = 20 << 20

const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
)

var extMIME = map[string]string{
	".pdf":  MIMEPDF,
	".jpg":  MIMEJPEG,
	".jpeg": MIMEJPEG,
	".png":  MIMEPNG,
	".webp": MIMEWebP,
}

// Load reads a plan document from disk.
func Load(path string) (domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > MaxSize {
		return domain.Document{}, fmt.Errorf("%w: %s is larger than %d bytes", domain.ErrUnsupportedDocument, path, MaxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return New(filepath.Base(path), data)
}

// New wraps in-memory bytes as a document, detecting the MIME type.
func New(name string, data []byte) (domain.Document, error) {
	mime := DetectMIME(name, data)
	if !Supported(mime) {
		return domain.Document{}, fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedDocument, name, mime)
	}
	return domain.Document{Name: name, MIMEType: mime, Data: data}, nil
}

// DetectMIME sniffs the content first and falls back to the extension.
func DetectMIME(name string, data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return MIMEPDF
	}
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if Supported(sniffed) {
		return sniffed
	}
	if m, ok := extMIME[strings.ToLower(filepath.Ext(name))]; ok {
		return m
	}
	return sniffed
}

// Supported reports whether a plan can be interpreted from this MIME type.
func Supported(mime string) bool {
	switch mime {
	case MIMEPDF, MIMEJPEG, MIMEPNG, MIMEWebP:
		return true
	}
	return false
}

// IsImage reports whether the document is a photo or scan.
func IsImage(doc domain.Document) bool {
	return strings.HasPrefix(doc.MIMEType, "image/")
}

// ─── PDF Text ───────────────────────────────────────────────────────────────

func open(doc domain.Document) (*pdf.Reader, error) {
	if doc.MIMEType != MIMEPDF {
		return nil, fmt.Errorf("%w: %s is not a PDF", domain.ErrUnsupportedDocument, doc.Name)
	}
	r, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrUnsupportedDocument, doc.Name, err)
	}
	return r, nil
}

// PageCount returns the number of pages of a PDF document.
func PageCount(doc domain.Document) (int, error) {
	r, err := open(doc)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// ExtractText returns the plain text of every page, one entry per page.
// Pages without content yield "".
func ExtractText(doc domain.Document) (pages []string, err error) {
	r, err := open(doc)
	if err != nil {
		return nil, err
	}
	// The pdf package panics on some malformed streams.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("%w: read %s: %v", domain.ErrUnsupportedDocument, doc.Name, rec)
		}
	}()

	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d of %s: %v", domain.ErrUnsupportedDocument, i, doc.Name, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// Text joins ExtractText's pages with page markers.
func Text(doc domain.Document) (string, error) {
	pages, err := ExtractText(doc)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, p := range pages {
		if p == "" {
			continue
		}
		fmt.Fprintf(&b, "--- página %d ---\n%s\n", i+1, p)
	}
	return b.String(), nil
}

// Package encoding turns source documents into UTF-8 text and recognizes
// binary files that must not be processed as documents.
package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

const (
	sniffLen = 512
	checkLen = 1024
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrDecode is returned when content cannot be converted to UTF-8.
var ErrDecode = errors.New("cannot decode source text")

var textMIMEPrefixes = []string{"text/", "application/json", "application/xml", "application/javascript", "image/svg+xml"}

// Handler decodes document bytes.
type Handler interface {
	// Decode returns content as UTF-8 along with the name of the source
	// encoding. Valid UTF-8 input is returned unchanged apart from a leading
	// byte order mark.
	Decode(content []byte) (text []byte, encoding string, err error)
	// IsBinary reports whether content looks like binary data.
	IsBinary(content []byte) bool
}

// CharsetHandler implements Handler with golang.org/x/net/html/charset.
type CharsetHandler struct {
	fallback string
}

// NewCharsetHandler returns a handler that uses fallback (an IANA or WHATWG
// label such as "windows-1252") for non-UTF-8 input without a BOM.
func NewCharsetHandler(fallback string) *CharsetHandler {
	return &CharsetHandler{fallback: strings.TrimSpace(fallback)}
}

// ValidFallback reports whether label names a known encoding.
func ValidFallback(label string) bool {
	if strings.TrimSpace(label) == "" {
		return true
	}
	e, _ := charset.Lookup(label)
	return e != nil
}

func (h *CharsetHandler) Decode(content []byte) ([]byte, string, error) {
	if utf8.Valid(content) {
		return bytes.TrimPrefix(content, utf8BOM), "utf-8", nil
	}
	enc, name, certain := charset.DetermineEncoding(content, "text/plain")
	if !certain && h.fallback != "" {
		if fb, fbName := charset.Lookup(h.fallback); fb != nil {
			enc, name = fb, fbName
		}
	}
	if enc == nil {
		return nil, name, fmt.Errorf("%w: no decoder for %q", ErrDecode, name)
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(content), enc.NewDecoder()))
	if err != nil {
		return nil, name, fmt.Errorf("%w: from %s: %w", ErrDecode, name, err)
	}
	if !utf8.Valid(out) {
		return nil, name, fmt.Errorf("%w: from %s: result is not valid UTF-8", ErrDecode, name)
	}
	return bytes.TrimPrefix(out, utf8BOM), name, nil
}

// IsBinary sniffs the MIME type of the first bytes and looks for NUL bytes.
// UTF-16 text with a byte order mark is not binary.
func (h *CharsetHandler) IsBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	if bytes.HasPrefix(content, []byte{0xFF, 0xFE}) || bytes.HasPrefix(content, []byte{0xFE, 0xFF}) {
		return false
	}
	sniff := content
	if len(sniff) > sniffLen {
		sniff = sniff[:sniffLen]
	}
	if !isTextMIME(http.DetectContentType(sniff)) {
		return true
	}
	check := content
	if len(check) > checkLen {
		check = check[:checkLen]
	}
	return bytes.IndexByte(check, 0) >= 0
}

func isTextMIME(contentType string) bool {
	mimeType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if mimeType == "application/octet-stream" || strings.HasSuffix(mimeType, "+xml") || strings.HasSuffix(mimeType, "+json") {
		return true
	}
	for _, p := range textMIMEPrefixes {
		if strings.HasPrefix(mimeType, p) {
			return true
		}
	}
	return false
}

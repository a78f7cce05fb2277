package tabular

import (
	"bytes"
	"errors"
	"os"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultLegacyEncoding is tried when a file is not valid UTF-8.
const DefaultLegacyEncoding = "latin1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decoder turns raw file bytes into UTF-8 text, falling back to a legacy
// encoding only when the bytes are not valid UTF-8.
type Decoder struct {
	Legacy string
}

// NewDecoder returns a Decoder using the named legacy encoding
// (WHATWG label, e.g. "latin1", "windows-1252", "shift_jis").
func NewDecoder(legacy string) *Decoder {
	if legacy == "" {
		legacy = DefaultLegacyEncoding
	}
	return &Decoder{Legacy: legacy}
}

// Decode returns data as UTF-8 and the name of the encoding that worked.
func (d *Decoder) Decode(data []byte) ([]byte, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, "utf-8", nil
	}

	enc, err := htmlindex.Get(d.Legacy)
	if err != nil {
		return nil, "", eris.Wrapf(ErrUnreadable, "tabular: unsupported legacy encoding %q", d.Legacy)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", eris.Wrapf(ErrUnreadable, "tabular: decode as %s: %v", d.Legacy, err)
	}
	return out, d.Legacy, nil
}

// ReadFile reads and decodes a text file. A missing file is reported with an
// error satisfying errors.Is(err, os.ErrNotExist).
func (d *Decoder) ReadFile(path string) ([]byte, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", eris.Wrapf(err, "tabular: open %s", path)
		}
		return nil, "", eris.Wrapf(ErrUnreadable, "tabular: read %s: %v", path, err)
	}
	return d.Decode(raw)
}

// Package charset adapts mahonia encoders and decoders to byte slices.
package charset

import (
	"fmt"
	"sync"

	"github.com/axgle/mahonia"
)

// Codec converts between UTF-8 strings and a legacy single or multi byte
// charset. It is safe for concurrent use.
type Codec struct {
	name string

	mu  sync.Mutex
	enc mahonia.Encoder
	dec mahonia.Decoder
}

// Lookup returns a codec for the named charset, e.g. "utf-8", "gbk", "cp1252".
func Lookup(name string) (*Codec, error) {
	enc := mahonia.NewEncoder(name)
	dec := mahonia.NewDecoder(name)
	if enc == nil || dec == nil {
		return nil, fmt.Errorf("charset: unsupported encoding %q", name)
	}
	return &Codec{name: name, enc: enc, dec: dec}, nil
}

// Name returns the charset name the codec was looked up with.
func (c *Codec) Name() string { return c.name }

// Encode converts s into the charset. Runes that cannot be represented are
// replaced by the charset's substitution byte.
func (c *Codec) Encode(s string) []byte {
	if s == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return []byte(c.enc.ConvertString(s))
}

// Decode converts p from the charset into a UTF-8 string.
func (c *Codec) Decode(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dec.ConvertString(string(p))
}

// Package godbf reads and writes dBase III table files (.dbf) together with
// their memo files (.dbt).
//
// A table is a fixed-width row store: a 32 byte preamble, one 32 byte
// descriptor per column, a 0x0D terminator, then rows prefixed by a deletion
// flag and finally a 0x1A end marker. Values cross the API as a Row of Value
// cells; see Value for the mapping of native column types.
package godbf

import (
	"log/slog"

	"github.com/Ulysses-Xu/godbf/dbt"
	"github.com/Ulysses-Xu/godbf/internal/charset"
)

const (
	SPACE = 0x20
	EOF   = 0x1A
	NUL   = 0x00

	// headerTerminator ends the field descriptor list.
	headerTerminator = 0x0D
	// deletedFlag marks a logically deleted row.
	deletedFlag = '*'
	// unknownByte is the logical null marker.
	unknownByte = '?'

	trueByte  = 'T'
	falseByte = 'F'
)

// Table signatures.
const (
	SignatureDBase3         byte = 0x03
	SignatureWithMemo       byte = 0x80
	SignatureDBase3WithMemo      = SignatureDBase3 | SignatureWithMemo
)

// Align selects how Char values shorter than their column are padded.
type Align uint8

const (
	AlignLeft Align = iota
	AlignRight
)

// Options configure readers and writers. A nil *Options is valid and selects
// all defaults.
type Options struct {
	// Encoding names the charset used for Char and Memo text.
	// Default: "utf-8".
	Encoding string

	// BlockSize is the memo file allocation unit.
	// Default: 512.
	BlockSize int

	// NullSymbol is written into null Numeric and Float columns and read
	// back as null.
	// Default: '?'.
	NullSymbol byte

	// TextAlign positions Char values inside their column.
	// Default: AlignLeft.
	TextAlign Align

	// TextPad fills the unused bytes of Char columns.
	// Default: ' '.
	TextPad byte

	// CacheSize is the number of memo values cached per memo store.
	// Default: 128.
	CacheSize int

	// Logger receives debug and warning events.
	// Default: slog.Default().
	Logger *slog.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Encoding == "" {
		oo.Encoding = "utf-8"
	}
	if oo.BlockSize < 1 {
		oo.BlockSize = dbt.DefaultBlockSize
	}
	if oo.NullSymbol == 0 {
		oo.NullSymbol = unknownByte
	}
	if oo.TextPad == 0 {
		oo.TextPad = SPACE
	}
	if oo.CacheSize < 1 {
		oo.CacheSize = 128
	}
	if oo.Logger == nil {
		oo.Logger = slog.Default()
	}
	return &oo
}

func (o *Options) memoOptions() *dbt.Options {
	return &dbt.Options{
		BlockSize: o.BlockSize,
		Encoding:  o.Encoding,
		CacheSize: o.CacheSize,
		Logger:    o.Logger,
	}
}

// base holds the state shared by Reader and Writer.
type base struct {
	o *Options
	m marshaller
}

func newBase(o *Options) (base, error) {
	o = o.norm()
	cs, err := charset.Lookup(o.Encoding)
	if err != nil {
		return base{}, err
	}
	return base{
		o: o,
		m: marshaller{
			cs:         cs,
			nullSymbol: o.NullSymbol,
			align:      o.TextAlign,
			pad:        o.TextPad,
			log:        o.Logger,
		},
	}, nil
}

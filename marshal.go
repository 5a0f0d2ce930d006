package godbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Ulysses-Xu/godbf/dbt"
	"github.com/Ulysses-Xu/godbf/internal/charset"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// marshaller converts between column bytes and values.
type marshaller struct {
	cs         *charset.Codec
	nullSymbol byte
	align      Align
	pad        byte
	log        *slog.Logger
}

// decode converts the bytes of column f. store may be nil when the table
// has no memo file.
func (m *marshaller) decode(f *Field, p []byte, store *dbt.Store) (Value, error) {
	switch f.Type() {
	case TypeChar:
		return Text(strings.TrimRight(m.cs.Decode(p), " ")), nil
	case TypeDate:
		return decodeDate(p), nil
	case TypeNumeric, TypeFloat:
		return m.decodeNumber(f, p)
	case TypeLogical:
		return decodeLogical(p), nil
	case TypeMemo:
		if store == nil {
			return nil, &BlobError{Err: ErrNoMemoStore}
		}
		s := strings.TrimSpace(string(p))
		if s == "" {
			return nil, nil
		}
		block, err := strconv.ParseInt(s, 10, 64)
		if err != nil || block < 0 {
			return nil, nil
		}
		return resolvedMemo(store, block), nil
	case TypeBinary, TypeDouble:
		if len(p) == 0 {
			return nil, nil
		}
		if len(p) == 8 {
			return Float(math.Float64frombits(binary.LittleEndian.Uint64(p))), nil
		}
	case TypeLong, TypeAutoincrement:
		if len(p) == 0 {
			return nil, nil
		}
		if len(p) == 4 {
			return Int(int32(binary.LittleEndian.Uint32(p))), nil
		}
	}
	return Bytes(bytes.Clone(p)), nil
}

func decodeDate(p []byte) Value {
	if len(p) != 8 {
		return nil
	}
	year, err1 := strconv.Atoi(string(p[0:4]))
	month, err2 := strconv.Atoi(string(p[4:6]))
	day, err3 := strconv.Atoi(string(p[6:8]))
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	d := NewDate(year, time.Month(month), day)
	if y, mo, dd := d.t.Date(); y != year || int(mo) != month || dd != day {
		return nil
	}
	return d
}

func decodeLogical(p []byte) Value {
	if len(p) == 0 {
		return nil
	}
	switch p[0] {
	case 'Y', 'y', 'T', 't':
		return Bool(true)
	case unknownByte:
		return nil
	}
	return Bool(false)
}

func (m *marshaller) decodeNumber(f *Field, p []byte) (Value, error) {
	s := strings.TrimSpace(string(p))
	if s == "" || strings.Trim(s, string(m.nullSymbol)) == "" || strings.Trim(s, "?") == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &FormatError{Type: f.Type(), Text: s, Err: err}
	}
	return Decimal{d: d}, nil
}

// encode appends the bytes of column f holding v to dst. Memo values are
// persisted to store first.
func (m *marshaller) encode(dst []byte, f *Field, v Value, store *dbt.Store) ([]byte, error) {
	n := f.Length()
	switch f.Type() {
	case TypeChar:
		var s string
		if v != nil {
			s = v.String()
		}
		return append(dst, m.textPadding(m.cs.Encode(s), n, m.align, m.pad)...), nil

	case TypeDate:
		d, ok := v.(Date)
		if !ok {
			return append(dst, bytes.Repeat([]byte{SPACE}, n)...), nil
		}
		if y := d.t.Year(); y < 0 || y > 9999 {
			return nil, &FormatError{Type: f.Type(), Text: d.String(), Err: errors.New("year out of range 0-9999")}
		}
		return append(dst, d.t.Format("20060102")...), nil

	case TypeNumeric, TypeFloat:
		var d decimal.Decimal
		switch x := v.(type) {
		case Decimal:
			d = x.d
		case Int:
			d = decimal.NewFromInt(int64(x))
		case Float:
			if err := checkFinite(float64(x)); err != nil {
				return nil, &FormatError{Type: f.Type(), Text: x.String(), Err: err}
			}
			d = decimal.NewFromFloat(float64(x))
		default:
			return append(dst, m.textPadding([]byte{m.nullSymbol}, n, AlignRight, SPACE)...), nil
		}
		p, err := formatNumber(d, n, f.Decimals())
		if err != nil {
			return nil, &FormatError{Type: f.Type(), Text: d.String(), Err: err}
		}
		return append(dst, p...), nil

	case TypeLogical:
		b, ok := v.(Bool)
		switch {
		case !ok:
			return append(dst, unknownByte), nil
		case bool(b):
			return append(dst, trueByte), nil
		}
		return append(dst, falseByte), nil

	case TypeMemo:
		var memo *Memo
		switch x := v.(type) {
		case *Memo:
			memo = x
		case Text:
			memo = NewMemo(string(x))
		}
		if memo == nil {
			return append(dst, bytes.Repeat([]byte{SPACE}, n)...), nil
		}
		if store == nil {
			return nil, &BlobError{Err: ErrNoMemoStore}
		}
		pending := memo.Pending()
		block, err := memo.persist(store)
		if err != nil {
			return nil, err
		}
		if pending {
			m.log.Debug("dbf: stored memo", "token", memo.Token(), "block", block)
		}
		p, err := formatNumber(decimal.NewFromInt(block), n, 0)
		if err != nil {
			return nil, &BlobError{Block: block, Err: err}
		}
		return append(dst, p...), nil

	case TypeBinary, TypeDouble:
		if n == 8 {
			var bits uint64
			switch x := v.(type) {
			case Float:
				bits = math.Float64bits(float64(x))
			case Decimal:
				bits = math.Float64bits(x.d.InexactFloat64())
			case Int:
				bits = math.Float64bits(float64(x))
			default:
				return append(dst, make([]byte, n)...), nil
			}
			return binary.LittleEndian.AppendUint64(dst, bits), nil
		}

	case TypeLong, TypeAutoincrement:
		if n == 4 {
			x, ok := v.(Int)
			if !ok {
				return append(dst, make([]byte, n)...), nil
			}
			return binary.LittleEndian.AppendUint32(dst, uint32(int32(x))), nil
		}
	}

	raw, _ := v.(Bytes)
	return append(dst, m.textPadding(raw, n, AlignLeft, NUL)...), nil
}

// textPadding fits p into length bytes: longer input is truncated, shorter
// input is padded with padding on the side opposite to align.
func (m *marshaller) textPadding(p []byte, length int, align Align, padding byte) []byte {
	if len(p) >= length {
		return p[:length]
	}
	out := bytes.Repeat([]byte{padding}, length)
	switch align {
	case AlignRight:
		copy(out[length-len(p):], p)
	default:
		copy(out, p)
	}
	return out
}

// formatNumber renders d with a fixed count of decimals, at least one whole
// digit and half-away-from-zero rounding, right aligned in a field of width
// length.
func formatNumber(d decimal.Decimal, length, decimals int) ([]byte, error) {
	s := d.StringFixed(int32(decimals))
	if len(s) > length {
		return nil, fmt.Errorf("%d characters exceed field width %d", len(s), length)
	}
	out := bytes.Repeat([]byte{SPACE}, length)
	copy(out[length-len(s):], s)
	return out, nil
}

func checkFinite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.Errorf("%v is not a finite number", f)
	}
	return nil
}

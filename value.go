package godbf

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Value is one cell of a Row. The concrete types are Text, Date, Decimal,
// Bool, Int, Float, Bytes and *Memo; a nil Value is null.
//
// Column types decode as follows:
//
//	Char                 Text
//	Date                 Date
//	Numeric, Float       Decimal
//	Logical              Bool
//	Memo                 *Memo
//	Long, Autoincrement  Int
//	Binary, Double       Float (8 byte columns)
//	others               Bytes
type Value interface {
	isValue()
	String() string
}

// Row holds the values of one record, aligned with the reader's selected
// fields or the writer's schema.
type Row []Value

// Text is a Char value.
type Text string

// Date is a calendar date; the time of day is always midnight UTC.
type Date struct {
	t time.Time
}

// Decimal is a Numeric or Float value.
type Decimal struct {
	d decimal.Decimal
}

// Bool is a Logical value.
type Bool bool

// Int is a Long or Autoincrement value.
type Int int32

// Float is a Binary or Double value.
type Float float64

// Bytes is the raw content of a column without a dedicated decoding.
type Bytes []byte

// NewDate returns the Date for the given day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Time returns the date as midnight UTC.
func (v Date) Time() time.Time { return v.t }

// Equal reports whether both dates name the same day.
func (v Date) Equal(o Date) bool { return v.t.Equal(o.t) }

// NewDecimal wraps d.
func NewDecimal(d decimal.Decimal) Decimal { return Decimal{d: d} }

// DecimalFromInt returns the Decimal for n.
func DecimalFromInt(n int64) Decimal { return Decimal{d: decimal.NewFromInt(n)} }

// DecimalFromFloat returns the Decimal for f, which must be finite.
func DecimalFromFloat(f float64) (Decimal, error) {
	if err := checkFinite(f); err != nil {
		return Decimal{}, err
	}
	return Decimal{d: decimal.NewFromFloat(f)}, nil
}

// ParseDecimal parses s as a locale independent decimal number.
func ParseDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{d: d}, nil
}

// Decimal returns the wrapped number.
func (v Decimal) Decimal() decimal.Decimal { return v.d }

// Equal reports whether both values are numerically equal.
func (v Decimal) Equal(o Decimal) bool { return v.d.Equal(o.d) }

func (Text) isValue()    {}
func (Date) isValue()    {}
func (Decimal) isValue() {}
func (Bool) isValue()    {}
func (Int) isValue()     {}
func (Float) isValue()   {}
func (Bytes) isValue()   {}
func (*Memo) isValue()   {}

func (v Text) String() string    { return string(v) }
func (v Date) String() string    { return v.t.Format("2006-01-02") }
func (v Decimal) String() string { return v.d.String() }
func (v Bool) String() string    { return strconv.FormatBool(bool(v)) }
func (v Int) String() string     { return strconv.FormatInt(int64(v), 10) }
func (v Float) String() string   { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Bytes) String() string   { return strconv.Quote(string(v)) }

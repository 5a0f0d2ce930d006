package godbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// NativeType is the on-disk type tag of a column.
type NativeType byte

const (
	TypeAutoincrement NativeType = '+'
	TypeTimestamp     NativeType = '@'
	TypeBinary        NativeType = 'B'
	TypeChar          NativeType = 'C'
	TypeDate          NativeType = 'D'
	TypeFloat         NativeType = 'F'
	TypeOle           NativeType = 'G'
	TypeLong          NativeType = 'I'
	TypeLogical       NativeType = 'L'
	TypeMemo          NativeType = 'M'
	TypeNumeric       NativeType = 'N'
	TypeDouble        NativeType = 'O'
)

func (t NativeType) String() string {
	switch t {
	case TypeAutoincrement:
		return "Autoincrement"
	case TypeTimestamp:
		return "Timestamp"
	case TypeBinary:
		return "Binary"
	case TypeChar:
		return "Char"
	case TypeDate:
		return "Date"
	case TypeFloat:
		return "Float"
	case TypeOle:
		return "Ole"
	case TypeLong:
		return "Long"
	case TypeLogical:
		return "Logical"
	case TypeMemo:
		return "Memo"
	case TypeNumeric:
		return "Numeric"
	case TypeDouble:
		return "Double"
	}
	return fmt.Sprintf("NativeType(%#02x)", byte(t))
}

// fixedLength reports the implied length of types whose width is fixed by
// the format.
func (t NativeType) fixedLength() (int, bool) {
	switch t {
	case TypeDate:
		return 8, true
	case TypeMemo:
		return 10, true
	case TypeLogical:
		return 1, true
	}
	return 0, false
}

// Field is a column definition. Use NewField or one of the typed
// constructors; the zero value is not a valid column.
type Field struct {
	d fieldDescriptor
}

// NewField returns a column definition. length is ignored for Date, Memo
// and Logical columns.
func NewField(name string, typ NativeType, length, decimals int) (*Field, error) {
	f := new(Field)
	if err := f.SetName(name); err != nil {
		return nil, err
	}
	f.SetType(typ)
	if _, fixed := typ.fixedLength(); !fixed {
		if err := f.SetLength(length); err != nil {
			return nil, err
		}
	}
	if decimals != 0 {
		if err := f.SetDecimals(decimals); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// CharField returns a Char column of the given width. Widths above 255 are
// stored with the extended length encoding.
func CharField(name string, length int) (*Field, error) {
	return NewField(name, TypeChar, length, 0)
}

// NumericField returns a Numeric column.
func NumericField(name string, length, decimals int) (*Field, error) {
	return NewField(name, TypeNumeric, length, decimals)
}

// FloatField returns a Float column.
func FloatField(name string, length, decimals int) (*Field, error) {
	return NewField(name, TypeFloat, length, decimals)
}

// DateField returns a Date column.
func DateField(name string) (*Field, error) { return NewField(name, TypeDate, 0, 0) }

// LogicalField returns a Logical column.
func LogicalField(name string) (*Field, error) { return NewField(name, TypeLogical, 0, 0) }

// MemoField returns a Memo column.
func MemoField(name string) (*Field, error) { return NewField(name, TypeMemo, 0, 0) }

// Name returns the column name.
func (f *Field) Name() string {
	n := bytes.IndexByte(f.d.Name[:], NUL)
	if n < 0 {
		n = len(f.d.Name)
	}
	return strings.TrimSpace(string(f.d.Name[:n]))
}

// SetName sets the column name: 1 to 10 ASCII characters.
func (f *Field) SetName(name string) error {
	if len(name) == 0 || len(name) > 10 {
		return &SchemaError{Msg: fmt.Sprintf("field name %q should be of length 1-10", name)}
	}
	for i := 0; i < len(name); i++ {
		if name[i] == NUL || name[i] > 0x7F {
			return &SchemaError{Msg: fmt.Sprintf("field name %q should be ASCII", name)}
		}
	}
	f.d.Name = [11]byte{}
	copy(f.d.Name[:], name)
	return nil
}

// Type returns the native type tag.
func (f *Field) Type() NativeType { return NativeType(f.d.Type) }

// SetType sets the native type. Date, Memo and Logical columns get their
// fixed length.
func (f *Field) SetType(t NativeType) {
	if n, ok := t.fixedLength(); ok {
		f.d.Length = byte(n)
		f.d.Decimal = 0
	}
	f.d.Type = byte(t)
}

// Length returns the column width in bytes.
func (f *Field) Length() int {
	if f.Type() == TypeChar {
		return int(f.d.Length) + int(f.d.Decimal)*256
	}
	return int(f.d.Length)
}

// SetLength sets the column width. Char columns accept up to 65535 bytes;
// other types up to 255. The width of Date, Memo and Logical columns cannot
// be changed.
func (f *Field) SetLength(n int) error {
	if n <= 0 {
		return &SchemaError{Msg: fmt.Sprintf("field %s: length should be a positive number", f.Name())}
	}
	if _, fixed := f.Type().fixedLength(); fixed {
		return &SchemaError{Msg: fmt.Sprintf("field %s: cannot set length on %s field", f.Name(), f.Type())}
	}
	if f.Type() == TypeChar {
		if n > 0xFFFF {
			return &SchemaError{Msg: fmt.Sprintf("field %s: length %d out of range", f.Name(), n)}
		}
		f.d.Length = byte(n % 256)
		f.d.Decimal = byte(n / 256)
		return nil
	}
	if n > 0xFF {
		return &SchemaError{Msg: fmt.Sprintf("field %s: length %d out of range", f.Name(), n)}
	}
	f.d.Length = byte(n)
	return nil
}

// Decimals returns the count of digits after the decimal point. It is zero
// for Char columns, whose decimal byte holds the high bits of the length.
func (f *Field) Decimals() int {
	if f.Type() == TypeChar {
		return 0
	}
	return int(f.d.Decimal)
}

// SetDecimals sets the count of digits after the decimal point. It must not
// exceed the length.
func (f *Field) SetDecimals(n int) error {
	if n < 0 {
		return &SchemaError{Msg: fmt.Sprintf("field %s: decimal count should be a positive number", f.Name())}
	}
	if f.Type() == TypeChar {
		return &SchemaError{Msg: fmt.Sprintf("field %s: cannot set decimals on Char field", f.Name())}
	}
	if n > int(f.d.Length) {
		return &SchemaError{Msg: fmt.Sprintf("field %s: decimal count %d exceeds length %d", f.Name(), n, f.d.Length)}
	}
	f.d.Decimal = byte(n)
	return nil
}

func (f *Field) String() string {
	return fmt.Sprintf("Field: %s, Type: %s, Length: %d", f.Name(), f.Type(), f.Length())
}

// readField reads one descriptor. It returns nil, nil when the header
// terminator is found.
func readField(r io.Reader) (*Field, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, err
	}
	if first[0] == headerTerminator {
		return nil, nil
	}

	var raw [descriptorSize]byte
	raw[0] = first[0]
	if _, err := io.ReadFull(r, raw[1:]); err != nil {
		return nil, err
	}

	f := new(Field)
	if err := binary.Read(bytes.NewReader(raw[:]), binary.LittleEndian, &f.d); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Field) write(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, &f.d)
}

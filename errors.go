package godbf

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrFieldsSet is returned when a writer's schema is set twice.
	ErrFieldsSet = &SchemaError{Msg: "fields have already been set"}
	// ErrNoFields is returned for an empty schema, or when rows are added
	// before the schema.
	ErrNoFields = &SchemaError{Msg: "should have at least one field"}
	// ErrWrongMode is returned when a buffered writer receives WriteRecord or
	// an appending writer receives AddRecord or Flush.
	ErrWrongMode = &SchemaError{Msg: "record entry point does not match writer mode"}
	// ErrLanguageDriverSet is returned when the language driver is set twice.
	ErrLanguageDriverSet = &SchemaError{Msg: "language driver has already been set"}
	// ErrNoMemoStore is returned when a memo column is read or written
	// without a memo store.
	ErrNoMemoStore = errors.New("dbf: memo store not set")
	// ErrClosed is returned by operations on a closed reader or writer.
	ErrClosed = errors.New("dbf: closed")
)

// SchemaError reports an invalid column definition or schema operation.
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string { return "dbf: " + e.Msg }

// FormatError reports column text that cannot be parsed or a value that
// cannot be formatted into its column.
type FormatError struct {
	Type NativeType
	Text string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dbf: bad %s value %q: %v", e.Type, e.Text, e.Err)
	}
	return fmt.Sprintf("dbf: bad %s value %q", e.Type, e.Text)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IOError wraps a failure of the underlying stream.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "dbf: " + e.Op + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

// BlobError reports a memo value that cannot be stored or resolved.
type BlobError struct {
	Block int64
	Err   error
}

func (e *BlobError) Error() string {
	if e.Block > 0 {
		return fmt.Sprintf("dbf: memo block %d: %v", e.Block, e.Err)
	}
	return "dbf: memo: " + e.Err.Error()
}

func (e *BlobError) Unwrap() error { return e.Err }

// RowError locates a failure at a row and column. Row is the zero based
// position of the row in the table (reader) or in submission order
// (writer); Column is -1 when the whole row is at fault.
type RowError struct {
	Row    int
	Column int
	Field  string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column < 0 {
		return fmt.Sprintf("dbf: row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("dbf: row %d, field %d(%s): %v", e.Row, e.Column, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

func ioErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}

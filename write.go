package godbf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ulysses-Xu/godbf/dbt"
)

type writerMode uint8

const (
	bufferedMode writerMode = iota
	appendMode
)

// Writer encodes rows into a table. A buffered writer, from NewWriter,
// queues rows added with AddRecord until Flush. An appending writer, from
// NewAppender, Create or OpenAppend, writes each row passed to WriteRecord
// immediately and finalises the header on Close.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	base

	mode      writerMode
	header    *Header
	fieldsSet bool
	sigSet    bool

	memo     *dbt.Store
	memoPath string
	memoNew  bool

	f         io.WriteSeeker
	records   []Row
	count     int
	submitted int

	buf     []byte
	closers []io.Closer
	closed  bool
}

// NewWriter returns a buffered writer.
func NewWriter(o *Options) (*Writer, error) {
	b, err := newBase(o)
	if err != nil {
		return nil, err
	}
	return &Writer{base: b, mode: bufferedMode, header: newHeader()}, nil
}

// NewAppender returns a writer appending to f. An empty f receives a new
// table once SetFields is called; otherwise the existing header is read and
// rows are appended after the last one. The caller keeps ownership of f.
func NewAppender(f io.ReadWriteSeeker, o *Options) (*Writer, error) {
	b, err := newBase(o)
	if err != nil {
		return nil, err
	}
	w := &Writer{base: b, mode: appendMode, header: newHeader(), f: f}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, ioErr("seek", err)
	}
	if size == 0 {
		return w, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, ioErr("seek", err)
	}
	h, truncated, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, ioErr("read header", err)
	}
	if truncated || len(h.fields) == 0 {
		return nil, &SchemaError{Msg: "existing table has no complete header"}
	}
	w.header, w.fieldsSet, w.sigSet = h, true, true
	w.count = h.NumRecords()

	// new rows overwrite the end marker
	end := w.rowsEnd()
	if end > size {
		return nil, &SchemaError{Msg: fmt.Sprintf("existing table is shorter than its %d records", w.count)}
	}
	if _, err := f.Seek(end, io.SeekStart); err != nil {
		return nil, ioErr("seek", err)
	}
	return w, nil
}

// Create creates or truncates the table file at path. A memo file with the
// same base name and a .dbt extension is created when the schema has Memo
// columns.
func Create(path string, o *Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, ioErr("create", err)
	}
	w, err := NewAppender(f, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closers = append(w.closers, f)
	w.memoPath = memoPathFor(path)
	w.memoNew = true
	return w, nil
}

// OpenAppend opens the table file at path, creating it when missing, and
// appends to it. Its memo file is opened when the table has Memo columns.
func OpenAppend(path string, o *Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, ioErr("open", err)
	}
	w, err := NewAppender(f, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closers = append(w.closers, f)
	if p, ok := findMemoFile(path); ok {
		w.memoPath = p
	} else {
		w.memoPath = memoPathFor(path)
	}
	if w.header.hasMemo() {
		if err := w.openMemo(); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return w, nil
}

func memoPathFor(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".dbt"
}

func (w *Writer) openMemo() error {
	if w.memo != nil || w.memoPath == "" {
		return nil
	}
	flag := os.O_RDWR | os.O_CREATE
	if w.memoNew {
		flag |= os.O_TRUNC
	}
	f, err := os.OpenFile(w.memoPath, flag, 0644)
	if err != nil {
		return ioErr("open memo", err)
	}
	store, err := dbt.New(f, w.o.memoOptions())
	if err != nil {
		_ = f.Close()
		return &BlobError{Err: err}
	}
	w.memo = store
	w.closers = append(w.closers, f)
	return nil
}

// Header returns the table header.
func (w *Writer) Header() *Header { return w.header }

// Fields returns the schema, or nil before SetFields.
func (w *Writer) Fields() []*Field { return w.header.fields }

// SetMemoStore binds the store Memo values are written to. The caller keeps
// ownership of s.
func (w *Writer) SetMemoStore(s *dbt.Store) { w.memo = s }

// SetSignature overrides the version byte. Without it, new tables are
// marked dBase III, with the memo bit set when a Memo column exists.
func (w *Writer) SetSignature(b byte) {
	w.header.raw.Signature = b
	w.sigSet = true
}

// SetLanguageDriver sets the code page marker. It can be set once.
func (w *Writer) SetLanguageDriver(b byte) error {
	if w.header.raw.LanguageDriverID != 0 {
		return ErrLanguageDriverSet
	}
	w.header.raw.LanguageDriverID = b
	return nil
}

// SetFields sets the schema. It can be called once per writer, and not at
// all when appending to an existing table. The fields are copied, so later
// changes to them do not affect the writer.
func (w *Writer) SetFields(fields ...*Field) error {
	if w.closed {
		return ErrClosed
	}
	if w.fieldsSet {
		return ErrFieldsSet
	}
	if len(fields) == 0 {
		return ErrNoFields
	}
	for i, f := range fields {
		if f == nil {
			return &SchemaError{Msg: fmt.Sprintf("field %d is null", i+1)}
		}
	}

	cloned := make([]*Field, len(fields))
	for i, f := range fields {
		c := *f
		cloned[i] = &c
	}
	w.header.fields = cloned
	if n := w.header.recordLength(); n > 0xFFFF {
		w.header.fields = nil
		return &SchemaError{Msg: fmt.Sprintf("record length %d out of range", n)}
	}
	if n := w.header.headerLength(); n > 0xFFFF {
		w.header.fields = nil
		return &SchemaError{Msg: fmt.Sprintf("header length %d out of range, too many fields", n)}
	}
	w.fieldsSet = true
	if !w.sigSet && w.header.hasMemo() {
		w.header.raw.Signature = SignatureDBase3WithMemo
	}

	if w.header.hasMemo() {
		if err := w.openMemo(); err != nil {
			return err
		}
	}
	if w.mode == appendMode {
		if err := w.header.write(w.f); err != nil {
			return ioErr("write header", err)
		}
	}
	return nil
}

// AddRecord validates a row and queues it for Flush. Buffered writers only.
func (w *Writer) AddRecord(values ...Value) error {
	if w.closed {
		return ErrClosed
	}
	if w.mode != bufferedMode {
		return ErrWrongMode
	}
	if err := w.validate(values); err != nil {
		return err
	}
	w.records = append(w.records, append(Row(nil), values...))
	w.submitted++
	return nil
}

// WriteRecord validates a row and appends it to the table. Appending writers
// only.
func (w *Writer) WriteRecord(values ...Value) error {
	if w.closed {
		return ErrClosed
	}
	if w.mode != appendMode {
		return ErrWrongMode
	}
	if err := w.validate(values); err != nil {
		return err
	}

	idx := w.submitted
	w.submitted++
	p, err := w.encodeRow(idx, values)
	if err != nil {
		return err
	}
	if _, err := w.f.Write(p); err != nil {
		return &RowError{Row: idx, Column: -1, Err: ioErr("write record", err)}
	}
	w.count++
	return nil
}

// Flush writes the header, all queued rows and the end marker to out.
// Buffered writers only.
func (w *Writer) Flush(out io.Writer) error {
	if w.closed {
		return ErrClosed
	}
	if w.mode != bufferedMode {
		return ErrWrongMode
	}
	if !w.fieldsSet {
		return ErrNoFields
	}

	bw := bufio.NewWriter(out)
	w.header.raw.NumRecords = uint32(len(w.records))
	if err := w.header.write(bw); err != nil {
		return ioErr("write header", err)
	}
	for i, values := range w.records {
		p, err := w.encodeRow(i, values)
		if err != nil {
			return err
		}
		if _, err := bw.Write(p); err != nil {
			return ioErr("write record", err)
		}
	}
	if err := bw.WriteByte(EOF); err != nil {
		return ioErr("write end marker", err)
	}
	if err := bw.Flush(); err != nil {
		return ioErr("flush", err)
	}
	w.o.Logger.Debug("dbf: flushed table", "records", len(w.records))
	return nil
}

// Close finalises an appending writer: the header is rewritten with the
// final row count and the end marker is written after the last row. Streams
// opened by the writer are released. Repeated calls are no-ops.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var first error
	if w.mode == appendMode && w.fieldsSet {
		first = w.finish()
	}
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i].Close(); err != nil && first == nil {
			first = ioErr("close", err)
		}
	}
	w.closers = nil
	w.o.Logger.Debug("dbf: closed writer", "records", w.count)
	return first
}

func (w *Writer) finish() error {
	w.header.raw.NumRecords = uint32(w.count)
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return ioErr("seek", err)
	}
	if err := w.header.write(w.f); err != nil {
		return ioErr("write header", err)
	}
	if _, err := w.f.Seek(w.rowsEnd(), io.SeekStart); err != nil {
		return ioErr("seek", err)
	}
	if _, err := w.f.Write([]byte{EOF}); err != nil {
		return ioErr("write end marker", err)
	}
	return nil
}

// rowsEnd returns the offset just past the last row.
func (w *Writer) rowsEnd() int64 {
	return int64(w.header.HeaderLength()) + int64(w.count)*int64(w.header.RecordLength())
}

func (w *Writer) validate(values Row) error {
	if !w.fieldsSet {
		return ErrNoFields
	}
	fields := w.header.fields
	if len(values) != len(fields) {
		return &RowError{Row: w.submitted, Column: -1, Err: &SchemaError{
			Msg: fmt.Sprintf("invalid number of fields in row: got %d, want %d", len(values), len(fields)),
		}}
	}
	for i, f := range fields {
		if !compatible(f, values[i]) {
			return &RowError{Row: w.submitted, Column: i, Field: f.Name(), Err: &SchemaError{
				Msg: fmt.Sprintf("invalid value %q for %s field", values[i].String(), f.Type()),
			}}
		}
	}
	return nil
}

// compatible reports whether v may be stored in column f. Null fits every
// column.
func compatible(f *Field, v Value) bool {
	if v == nil {
		return true
	}
	switch f.Type() {
	case TypeChar:
		_, ok := v.(Text)
		return ok
	case TypeDate:
		_, ok := v.(Date)
		return ok
	case TypeNumeric, TypeFloat:
		switch v.(type) {
		case Decimal, Int, Float:
			return true
		}
		return false
	case TypeLogical:
		_, ok := v.(Bool)
		return ok
	case TypeMemo:
		switch v.(type) {
		case *Memo, Text:
			return true
		}
		return false
	case TypeBinary, TypeDouble:
		if f.Length() == 8 {
			switch v.(type) {
			case Float, Decimal, Int:
				return true
			}
			return false
		}
	case TypeLong, TypeAutoincrement:
		if f.Length() == 4 {
			_, ok := v.(Int)
			return ok
		}
	}
	_, ok := v.(Bytes)
	return ok
}

// encodeRow encodes memo columns last, so that a row failing on another
// column leaves nothing behind in the memo store.
func (w *Writer) encodeRow(idx int, values Row) ([]byte, error) {
	buf := append(w.buf[:0], SPACE)
	var memos []int
	for i, f := range w.header.fields {
		if f.Type() == TypeMemo {
			memos = append(memos, len(buf), i)
			buf = append(buf, make([]byte, f.Length())...)
			continue
		}
		next, err := w.m.encode(buf, f, values[i], w.memo)
		if err != nil {
			return nil, &RowError{Row: idx, Column: i, Field: f.Name(), Err: err}
		}
		buf = next
	}
	for j := 0; j < len(memos); j += 2 {
		off, i := memos[j], memos[j+1]
		f := w.header.fields[i]
		p, err := w.m.encode(nil, f, values[i], w.memo)
		if err != nil {
			return nil, &RowError{Row: idx, Column: i, Field: f.Name(), Err: err}
		}
		copy(buf[off:], p)
	}
	w.buf = buf
	return buf, nil
}

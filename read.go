package godbf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Ulysses-Xu/godbf/dbt"
	"github.com/pkg/errors"
)

// Reader decodes the rows of a table one at a time. A Reader is not safe for
// concurrent use; the memos it returns are.
type Reader struct {
	base

	src    io.Reader
	r      *bufio.Reader
	ra     io.ReaderAt
	seeker io.Seeker
	header *Header
	memo   *dbt.Store

	offsets  []int // column offsets inside a row, deletion flag excluded
	width    int   // row width, deletion flag excluded
	selected []int
	spans    []int // selected columns in row order

	buf     []byte
	row     int
	err     error
	closers []io.Closer
	closed  bool
}

// NewReader reads the table header from r and returns a reader positioned at
// the first row. When r implements io.ReaderAt, RecordAt is available.
// The caller keeps ownership of r.
func NewReader(r io.Reader, o *Options) (*Reader, error) {
	b, err := newBase(o)
	if err != nil {
		return nil, err
	}

	rd := &Reader{base: b, src: r, r: bufio.NewReader(r)}
	if ra, ok := r.(io.ReaderAt); ok {
		rd.ra = ra
	}
	if sk, ok := r.(io.Seeker); ok {
		rd.seeker = sk
	}

	h, truncated, err := readHeader(rd.r)
	if err != nil {
		return nil, ioErr("read header", err)
	}
	if truncated {
		rd.o.Logger.Warn("dbf: header ended before its terminator", "fields", len(h.fields))
	}
	// the declared header may be longer than its descriptors
	if skip := h.HeaderLength() - h.headerLength(); skip > 0 && !truncated {
		if _, err := rd.r.Discard(skip); err != nil && err != io.EOF {
			return nil, ioErr("skip header", err)
		}
	}
	rd.header = h

	rd.offsets = make([]int, len(h.fields))
	for i, f := range h.fields {
		rd.offsets[i] = rd.width
		rd.width += f.Length()
	}
	if n := h.RecordLength() - 1; n > rd.width {
		rd.width = n
	}
	rd.buf = make([]byte, rd.width)

	rd.o.Logger.Debug("dbf: opened table",
		"fields", len(h.fields),
		"records", h.NumRecords(),
		"record_length", h.RecordLength())
	return rd, nil
}

// Open opens the table file at path. A memo file next to it, with the same
// base name and a .dbt extension, is opened on the first memo access.
func Open(path string, o *Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr("open", err)
	}
	rd, err := NewReader(f, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	rd.closers = append(rd.closers, f)

	if memoPath, ok := findMemoFile(path); ok {
		store, err := dbt.Lazy(func() (io.ReaderAt, error) {
			mf, err := os.Open(memoPath)
			if err != nil {
				return nil, err
			}
			return mf, nil
		}, rd.o.memoOptions())
		if err != nil {
			_ = rd.Close()
			return nil, err
		}
		rd.memo = store
		rd.closers = append(rd.closers, store)
	}
	return rd, nil
}

// findMemoFile looks for the memo file belonging to the table at path.
func findMemoFile(path string) (string, bool) {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".dbt", ".DBT"} {
		if st, err := os.Stat(stem + ext); err == nil && !st.IsDir() {
			return stem + ext, true
		}
	}
	return "", false
}

// Header returns the table header.
func (r *Reader) Header() *Header { return r.header }

// Fields returns the column definitions in table order.
func (r *Reader) Fields() []*Field { return r.header.fields }

// RecordCount returns the row count declared by the header.
func (r *Reader) RecordCount() int { return r.header.NumRecords() }

// SetMemoStore binds the memo store used to resolve Memo columns. The caller
// keeps ownership of s.
func (r *Reader) SetMemoStore(s *dbt.Store) { r.memo = s }

// Select restricts decoding to the named columns; rows returned afterwards
// hold exactly these values, in this order. Names match case-insensitively.
// Calling Select without names restores all columns.
func (r *Reader) Select(names ...string) error {
	if len(names) == 0 {
		r.selected, r.spans = nil, nil
		return nil
	}

	sel := make([]int, 0, len(names))
	for _, name := range names {
		i := r.fieldIndex(name)
		if i < 0 {
			return &SchemaError{Msg: fmt.Sprintf("unknown field %q", name)}
		}
		sel = append(sel, i)
	}
	r.selected = sel

	r.spans = r.spans[:0]
	for i := range r.header.fields {
		if slices.Contains(sel, i) {
			r.spans = append(r.spans, i)
		}
	}
	return nil
}

// Selected returns the fields rows are decoded into.
func (r *Reader) Selected() []*Field {
	if r.selected == nil {
		return r.header.fields
	}
	fields := make([]*Field, len(r.selected))
	for j, i := range r.selected {
		fields[j] = r.header.fields[i]
	}
	return fields
}

func (r *Reader) fieldIndex(name string) int {
	for i, f := range r.header.fields {
		if strings.EqualFold(f.Name(), name) {
			return i
		}
	}
	return -1
}

// Next returns the next live row. It returns io.EOF at the end marker, at
// the end of the stream and also when the stream ends inside a row: the
// format cannot tell a truncated table from a complete one.
//
// A row that cannot be decoded fails with a *RowError and ends reading.
func (r *Reader) Next() (Row, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.err != nil {
		return nil, r.err
	}

	for {
		flag, err := r.r.ReadByte()
		if err == io.EOF || err == nil && flag == EOF {
			r.err = io.EOF
			return nil, io.EOF
		} else if err != nil {
			r.err = ioErr("read record", err)
			return nil, r.err
		}

		idx := r.row
		if err := r.readRow(flag == deletedFlag); err == io.EOF || err == io.ErrUnexpectedEOF {
			r.o.Logger.Warn("dbf: table ends inside a record", "row", idx)
			r.err = io.EOF
			return nil, io.EOF
		} else if err != nil {
			r.err = ioErr("read record", err)
			return nil, r.err
		}

		r.row++
		if flag == deletedFlag {
			continue
		}

		row, err := r.decode(idx, r.buf)
		if err != nil {
			r.err = err
			return nil, err
		}
		return row, nil
	}
}

// readRow reads the row after its deletion flag into buf. Without a
// projection the whole row is read; otherwise only the selected columns
// are, and the bytes in between are skipped. A deleted row is skipped
// entirely.
func (r *Reader) readRow(skipAll bool) error {
	if skipAll {
		return r.skip(r.width)
	}
	if r.selected == nil {
		_, err := io.ReadFull(r.r, r.buf)
		return err
	}

	pos := 0
	for _, i := range r.spans {
		off, n := r.offsets[i], r.header.fields[i].Length()
		if err := r.skip(off - pos); err != nil {
			return err
		}
		if _, err := io.ReadFull(r.r, r.buf[off:off+n]); err != nil {
			return err
		}
		pos = off + n
	}
	return r.skip(r.width - pos)
}

// skip advances n bytes, seeking the source when the gap is not buffered.
func (r *Reader) skip(n int) error {
	if n <= 0 {
		return nil
	}
	if r.seeker == nil || n <= r.r.Buffered() {
		_, err := r.r.Discard(n)
		return err
	}

	buffered := r.r.Buffered()
	if _, err := r.r.Discard(buffered); err != nil {
		return err
	}
	if _, err := r.seeker.Seek(int64(n-buffered), io.SeekCurrent); err != nil {
		// not seekable after all, e.g. a pipe
		r.seeker = nil
		_, err := r.r.Discard(n - buffered)
		return err
	}
	r.r.Reset(r.src)
	return nil
}

// RecordAt decodes the row at physical position index, deleted rows
// included, without moving the cursor used by Next. It requires the source
// to implement io.ReaderAt.
func (r *Reader) RecordAt(index int) (row Row, deleted bool, err error) {
	if r.closed {
		return nil, false, ErrClosed
	}
	if r.ra == nil {
		return nil, false, errors.New("dbf: source does not support random access")
	}
	if index < 0 || index >= r.header.NumRecords() {
		return nil, false, errors.Errorf("dbf: record %d out of range", index)
	}

	data := make([]byte, r.width+1)
	off := int64(r.header.HeaderLength()) + int64(index)*int64(len(data))
	if _, err := r.ra.ReadAt(data, off); err != nil {
		return nil, false, ioErr("read record", err)
	}
	if data[0] == EOF {
		return nil, false, errors.Errorf("dbf: record %d out of range", index)
	}

	row, err = r.decode(index, data[1:])
	return row, data[0] == deletedFlag, err
}

func (r *Reader) decode(idx int, data []byte) (Row, error) {
	if r.selected == nil {
		row := make(Row, len(r.header.fields))
		for i := range r.header.fields {
			v, err := r.decodeField(idx, i, data)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		return row, nil
	}

	row := make(Row, len(r.selected))
	for j, i := range r.selected {
		v, err := r.decodeField(idx, i, data)
		if err != nil {
			return nil, err
		}
		row[j] = v
	}
	return row, nil
}

func (r *Reader) decodeField(idx, i int, data []byte) (Value, error) {
	f := r.header.fields[i]
	off := r.offsets[i]
	v, err := r.m.decode(f, data[off:off+f.Length()], r.memo)
	if err != nil {
		return nil, &RowError{Row: idx, Column: i, Field: f.Name(), Err: err}
	}
	return v, nil
}

// Close releases the streams opened by Open. Repeated calls are no-ops.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = ioErr("close", err)
		}
	}
	r.closers = nil
	return first
}

package godbf

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"
)

// now is replaced in tests.
var now = time.Now

// Header is the table preamble together with its column definitions.
type Header struct {
	raw    rawHeader
	fields []*Field
}

func newHeader() *Header {
	return &Header{raw: rawHeader{Signature: SignatureDBase3}}
}

// Signature returns the version byte.
func (h *Header) Signature() byte { return h.raw.Signature }

// LastUpdate returns the last modification date.
func (h *Header) LastUpdate() time.Time {
	return time.Date(1900+int(h.raw.LastUpdateYear), time.Month(h.raw.LastUpdateMonth), int(h.raw.LastUpdateDay), 0, 0, 0, 0, time.UTC)
}

// NumRecords returns the row count recorded in the header, deleted rows
// included.
func (h *Header) NumRecords() int { return int(h.raw.NumRecords) }

// HeaderLength returns the byte offset of the first row.
func (h *Header) HeaderLength() int { return int(h.raw.HeaderLength) }

// RecordLength returns the width of a row, deletion flag included.
func (h *Header) RecordLength() int { return int(h.raw.RecordLength) }

// LanguageDriver returns the code page marker.
func (h *Header) LanguageDriver() byte { return h.raw.LanguageDriverID }

// Fields returns the column definitions in table order.
func (h *Header) Fields() []*Field { return h.fields }

func (h *Header) hasMemo() bool {
	for _, f := range h.fields {
		if f.Type() == TypeMemo {
			return true
		}
	}
	return false
}

func (h *Header) headerLength() int {
	return headerSize + descriptorSize*len(h.fields) + 1
}

func (h *Header) recordLength() int {
	n := 1
	for _, f := range h.fields {
		n += f.Length()
	}
	return n
}

// readHeader reads the preamble and the descriptor list. A stream that ends
// before the terminator yields the descriptors read so far; truncated
// reports whether that happened.
func readHeader(r io.Reader) (h *Header, truncated bool, err error) {
	h = new(Header)
	if err := binary.Read(r, binary.LittleEndian, &h.raw); err != nil {
		return nil, false, err
	}
	for {
		f, err := readField(r)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return h, true, nil
		} else if err != nil {
			return nil, false, err
		}
		if f == nil {
			return h, false, nil
		}
		h.fields = append(h.fields, f)
	}
}

// write stamps the current date, recomputes both lengths and writes the
// preamble, the descriptors and the terminator. Reserved bytes are written
// back unchanged.
func (h *Header) write(w io.Writer) error {
	year, month, day := now().Date()
	h.raw.LastUpdateYear = byte(year - 1900)
	h.raw.LastUpdateMonth = byte(month)
	h.raw.LastUpdateDay = byte(day)
	// a longer declared header keeps its length so existing rows stay put
	h.raw.HeaderLength = uint16(max(h.headerLength(), int(h.raw.HeaderLength)))
	h.raw.RecordLength = uint16(h.recordLength())

	buf := bytes.NewBuffer(make([]byte, 0, h.headerLength()))
	if err := binary.Write(buf, binary.LittleEndian, &h.raw); err != nil {
		return err
	}
	for _, f := range h.fields {
		if err := f.write(buf); err != nil {
			return err
		}
	}
	buf.WriteByte(headerTerminator)

	_, err := w.Write(buf.Bytes())
	return err
}

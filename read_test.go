package godbf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeColumns(t *testing.T) []*Field {
	t.Helper()
	var fields []*Field
	for _, name := range []string{"F1", "F2", "F3"} {
		f, err := CharField(name, 4)
		require.NoError(t, err)
		fields = append(fields, f)
	}
	return fields
}

func sampleTable(t *testing.T) []byte {
	t.Helper()
	return flushTable(t, threeColumns(t),
		Row{Text("a1"), Text("a2"), Text("a3")},
		Row{Text("b1"), Text("b2"), Text("b3")},
		Row{Text("c1"), Text("c2"), Text("c3")},
	)
}

// rowOffset returns the offset of the deletion flag of row i.
func rowOffset(data []byte, i int) int {
	hl := int(binary.LittleEndian.Uint16(data[8:10]))
	rl := int(binary.LittleEndian.Uint16(data[10:12]))
	return hl + i*rl
}

func TestReader_Select(t *testing.T) {
	rd, err := NewReader(bytes.NewReader(sampleTable(t)), nil)
	require.NoError(t, err)

	require.NoError(t, rd.Select("f3", "F1"))
	selected := rd.Selected()
	require.Len(t, selected, 2)
	assert.Equal(t, "F3", selected[0].Name())
	assert.Equal(t, "F1", selected[1].Name())

	row, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, Row{Text("a3"), Text("a1")}, row)

	var se *SchemaError
	assert.True(t, errors.As(rd.Select("F9"), &se))

	require.NoError(t, rd.Select())
	row, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, Row{Text("b1"), Text("b2"), Text("b3")}, row)
	assert.Len(t, rd.Selected(), 3)
}

func TestReader_SkipsDeleted(t *testing.T) {
	data := sampleTable(t)
	data[rowOffset(data, 1)] = deletedFlag

	rd, err := NewReader(bytes.NewReader(data), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rd.RecordCount())

	rows := readAll(t, rd)
	require.Len(t, rows, 2)
	assert.Equal(t, Text("a1"), rows[0][0])
	assert.Equal(t, Text("c1"), rows[1][0])

	row, deleted, err := rd.RecordAt(1)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, Text("b2"), row[1])

	row, deleted, err = rd.RecordAt(2)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, Text("c3"), row[2])

	_, _, err = rd.RecordAt(3)
	assert.Error(t, err)
	_, _, err = rd.RecordAt(-1)
	assert.Error(t, err)
}

func TestReader_RecordAtStream(t *testing.T) {
	rd, err := NewReader(iotest.OneByteReader(bytes.NewReader(sampleTable(t))), nil)
	require.NoError(t, err)
	_, _, err = rd.RecordAt(0)
	assert.Error(t, err)

	assert.Len(t, readAll(t, rd), 3)
}

func TestReader_Truncated(t *testing.T) {
	data := sampleTable(t)
	cut := data[:rowOffset(data, 2)+5]

	rd, err := NewReader(bytes.NewReader(cut), nil)
	require.NoError(t, err)
	assert.Len(t, readAll(t, rd), 2)

	// without the end marker
	rd, err = NewReader(bytes.NewReader(data[:len(data)-1]), nil)
	require.NoError(t, err)
	assert.Len(t, readAll(t, rd), 3)
}

func TestReader_ExtraHeaderBytes(t *testing.T) {
	data := sampleTable(t)
	hl := int(binary.LittleEndian.Uint16(data[8:10]))

	padded := append([]byte(nil), data[:hl]...)
	padded = append(padded, make([]byte, 263)...)
	padded = append(padded, data[hl:]...)
	binary.LittleEndian.PutUint16(padded[8:10], uint16(hl+263))

	rd, err := NewReader(bytes.NewReader(padded), nil)
	require.NoError(t, err)
	rows := readAll(t, rd)
	require.Len(t, rows, 3)
	assert.Equal(t, Text("a1"), rows[0][0])

	row, _, err := rd.RecordAt(2)
	require.NoError(t, err)
	assert.Equal(t, Text("c1"), row[0])
}

func TestReader_StickyError(t *testing.T) {
	n, err := NumericField("N", 5, 0)
	require.NoError(t, err)
	data := flushTable(t, []*Field{n}, Row{Int(1)}, Row{Int(2)}, Row{Int(3)})
	copy(data[rowOffset(data, 1)+1:], "  x2 ")

	rd, err := NewReader(bytes.NewReader(data), nil)
	require.NoError(t, err)

	row, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", row[0].String())

	_, err = rd.Next()
	var re *RowError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.Row)
	assert.Equal(t, 0, re.Column)
	assert.Equal(t, "N", re.Field)
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))

	_, again := rd.Next()
	assert.Equal(t, err, again)
}

func TestReader_UnknownFlagIsLive(t *testing.T) {
	data := sampleTable(t)
	data[rowOffset(data, 0)] = '#'

	rd, err := NewReader(bytes.NewReader(data), nil)
	require.NoError(t, err)
	assert.Len(t, readAll(t, rd), 3)
}

func TestReader_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.dbf")
	w, err := Create(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.SetFields(threeColumns(t)...))
	require.NoError(t, w.Close())

	rd, err := Open(path, nil)
	require.NoError(t, err)
	_, err = rd.Next()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, rd.Close())
	require.NoError(t, rd.Close())
	_, err = rd.Next()
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = rd.RecordAt(0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReader_Encoding(t *testing.T) {
	f, err := CharField("NAME", 6)
	require.NoError(t, err)

	w, err := NewWriter(&Options{Encoding: "gbk"})
	require.NoError(t, err)
	require.NoError(t, w.SetFields(f))
	require.NoError(t, w.AddRecord(Text("中文")))
	var buf bytes.Buffer
	require.NoError(t, w.Flush(&buf))

	data := buf.Bytes()
	off := rowOffset(data, 0) + 1
	assert.Equal(t, []byte{0xD6, 0xD0, 0xCE, 0xC4, ' ', ' '}, data[off:off+6])

	rd, err := NewReader(bytes.NewReader(data), &Options{Encoding: "gbk"})
	require.NoError(t, err)
	row, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, Text("中文"), row[0])

	_, err = NewReader(bytes.NewReader(data), &Options{Encoding: "no-such-charset"})
	assert.Error(t, err)
}

// seekCounter counts the seeks made on a table held in memory.
type seekCounter struct {
	*bytes.Reader
	seeks int
}

func (s *seekCounter) Seek(offset int64, whence int) (int64, error) {
	s.seeks++
	return s.Reader.Seek(offset, whence)
}

func TestReader_SelectSkipsColumns(t *testing.T) {
	wide, err := CharField("WIDE", 6000)
	require.NoError(t, err)
	id, err := NumericField("ID", 4, 0)
	require.NoError(t, err)
	tail, err := CharField("TAIL", 5000)
	require.NoError(t, err)
	last, err := CharField("LAST", 2)
	require.NoError(t, err)
	fields := []*Field{wide, id, tail, last}

	data := flushTable(t, fields,
		Row{Text("w1"), Int(1), Text("t1"), Text("l1")},
		Row{Text("w2"), Int(2), Text("t2"), Text("l2")},
		Row{Text("w3"), Int(3), Text("t3"), Text("l3")},
	)
	data[rowOffset(data, 1)] = deletedFlag

	src := &seekCounter{Reader: bytes.NewReader(data)}
	rd, err := NewReader(src, nil)
	require.NoError(t, err)
	require.NoError(t, rd.Select("LAST", "ID"))

	rows := readAll(t, rd)
	require.Len(t, rows, 2)
	assert.Equal(t, Text("l1"), rows[0][0])
	assert.Equal(t, "1", rows[0][1].String())
	assert.Equal(t, Text("l3"), rows[1][0])
	assert.Equal(t, "3", rows[1][1].String())
	assert.NotZero(t, src.seeks)

	// the same projection over a plain stream reads through the gaps
	rd, err = NewReader(iotest.OneByteReader(bytes.NewReader(data)), nil)
	require.NoError(t, err)
	require.NoError(t, rd.Select("LAST", "ID"))
	assert.Equal(t, rows, readAll(t, rd))
}

package godbf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewField(t *testing.T) {
	f, err := NumericField("PRICE", 12, 2)
	require.NoError(t, err)
	assert.Equal(t, "PRICE", f.Name())
	assert.Equal(t, TypeNumeric, f.Type())
	assert.Equal(t, 12, f.Length())
	assert.Equal(t, 2, f.Decimals())

	for typ, want := range map[NativeType]int{TypeDate: 8, TypeMemo: 10, TypeLogical: 1} {
		f, err := NewField("F", typ, 99, 0)
		require.NoError(t, err)
		assert.Equal(t, want, f.Length(), "%s", typ)
	}
}

func TestField_FixedLength(t *testing.T) {
	f, err := DateField("D")
	require.NoError(t, err)

	err = f.SetLength(10)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 8, f.Length())

	f, err = CharField("C", 20)
	require.NoError(t, err)
	f.SetType(TypeLogical)
	assert.Equal(t, 1, f.Length())
}

func TestField_ExtendedCharLength(t *testing.T) {
	f, err := CharField("LONG", 750)
	require.NoError(t, err)
	assert.Equal(t, 750, f.Length())
	assert.Equal(t, 0, f.Decimals())
	assert.Equal(t, byte(750%256), f.d.Length)
	assert.Equal(t, byte(750/256), f.d.Decimal)

	_, err = CharField("HUGE", 70000)
	assert.Error(t, err)
	_, err = NumericField("N", 300, 0)
	assert.Error(t, err)
}

func TestField_Validation(t *testing.T) {
	_, err := CharField("", 10)
	assert.Error(t, err)
	_, err = CharField("ELEVENCHARS", 10)
	assert.Error(t, err)
	_, err = CharField("NAMÉ", 10)
	assert.Error(t, err)
	_, err = CharField("C", 0)
	assert.Error(t, err)
	_, err = NumericField("N", 5, 6)
	assert.Error(t, err)
	_, err = NumericField("N", 5, -1)
	assert.Error(t, err)
	_, err = NewField("C", TypeChar, 10, 2)
	assert.Error(t, err)

	f, err := NumericField("N", 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, f.Decimals())
}

func TestField_ReadWrite(t *testing.T) {
	raw := make([]byte, descriptorSize)
	copy(raw, "AMOUNT")
	raw[11] = 'N'
	copy(raw[12:16], []byte{1, 2, 3, 4})
	raw[16] = 10
	raw[17] = 3
	copy(raw[18:20], []byte{5, 6})
	raw[20] = 7
	copy(raw[21:23], []byte{8, 9})
	raw[23] = 10
	copy(raw[24:31], []byte{11, 12, 13, 14, 15, 16, 17})
	raw[31] = 18

	f, err := readField(bytes.NewReader(raw))
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "AMOUNT", f.Name())
	assert.Equal(t, TypeNumeric, f.Type())
	assert.Equal(t, 10, f.Length())
	assert.Equal(t, 3, f.Decimals())

	var buf bytes.Buffer
	require.NoError(t, f.write(&buf))
	assert.Equal(t, raw, buf.Bytes())
}

func TestField_ReadTerminator(t *testing.T) {
	f, err := readField(bytes.NewReader([]byte{headerTerminator}))
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestNativeType_String(t *testing.T) {
	assert.Equal(t, "Memo", TypeMemo.String())
	assert.Equal(t, "NativeType(0x58)", NativeType('X').String())
}

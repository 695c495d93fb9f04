package rw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteUInt8(7)
	w.WriteUInt16(0xbeef)
	w.WriteInt32(-42)
	w.WriteFloat32s([]float32{1.5, -2.25})
	w.WriteBytes([]byte("abc"))

	r := NewReader(w.GetWriteBytes())
	assert.Equal(t, uint8(7), r.ReadUInt8())
	assert.Equal(t, uint16(0xbeef), r.ReadUInt16())
	assert.Equal(t, int32(-42), r.ReadInt32())
	f := make([]float32, 2)
	r.ReadFloat32s(f)
	assert.Equal(t, []float32{1.5, -2.25}, f)
	assert.Equal(t, []byte("abc"), r.ReadBytes(3))
	require.NoError(t, r.Err())
}

func TestReaderStickyError(t *testing.T) {
	r := NewReader([]byte{1, 2})
	assert.Equal(t, uint32(0), r.ReadUInt32())
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)
	assert.Equal(t, uint8(0), r.ReadUInt8())
	assert.Nil(t, r.ReadBytes(1))
}

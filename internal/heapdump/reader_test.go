package heapdump

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCursor(t *testing.T, data []byte) *cursor {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "cursor")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return newCursor(f)
}

func TestCursor_ReadHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("JAVA PROFILE 1.0.2")
	buf.WriteByte(0)
	binary.Write(&buf, binary.BigEndian, uint32(8))
	ms := time.Now().UnixMilli()
	binary.Write(&buf, binary.BigEndian, uint32(ms>>32))
	binary.Write(&buf, binary.BigEndian, uint32(ms))

	cur := writeTempCursor(t, buf.Bytes())
	hdr, err := cur.readHeader()
	require.NoError(t, err)
	assert.Equal(t, "JAVA PROFILE 1.0.2", hdr.Format)
	assert.Equal(t, 8, hdr.IDSize)
	assert.Equal(t, 8, cur.IDSize())
}

func TestCursor_ReadHeader_RejectsUnsupportedIDSize(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("JAVA PROFILE 1.0.2")
	buf.WriteByte(0)
	binary.Write(&buf, binary.BigEndian, uint32(6))
	binary.Write(&buf, binary.BigEndian, uint32(0))
	binary.Write(&buf, binary.BigEndian, uint32(0))

	cur := writeTempCursor(t, buf.Bytes())
	_, err := cur.readHeader()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedDump)
}

func TestCursor_ReadAddress(t *testing.T) {
	t.Run("4-byte", func(t *testing.T) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, uint32(0x12345678))
		cur := writeTempCursor(t, buf.Bytes())
		cur.SetIDSize(4)
		addr, err := cur.ReadAddress()
		require.NoError(t, err)
		assert.Equal(t, Address(0x12345678), addr)
	})

	t.Run("8-byte", func(t *testing.T) {
		var buf bytes.Buffer
		binary.Write(&buf, binary.BigEndian, uint64(0x123456789ABCDEF0))
		cur := writeTempCursor(t, buf.Bytes())
		cur.SetIDSize(8)
		addr, err := cur.ReadAddress()
		require.NoError(t, err)
		assert.Equal(t, Address(0x123456789ABCDEF0), addr)
	})
}

func TestCursor_SkipAndPosition(t *testing.T) {
	cur := writeTempCursor(t, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, cur.Skip(4))
	assert.Equal(t, int64(4), cur.Position())
	b, err := cur.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(5), b)
}

func TestCursor_ReadNullTerminatedString(t *testing.T) {
	cur := writeTempCursor(t, []byte("hello\x00trailing"))
	s, err := cur.readNullTerminatedString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	assert.Equal(t, int64(6), cur.Position())
}

func TestCursor_ReadRecordHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(TagHeapDump))
	binary.Write(&buf, binary.BigEndian, uint32(42))
	binary.Write(&buf, binary.BigEndian, uint32(100))

	cur := writeTempCursor(t, buf.Bytes())
	rh, err := cur.readRecordHeader()
	require.NoError(t, err)
	assert.Equal(t, TagHeapDump, rh.Tag)
	assert.Equal(t, uint32(42), rh.TimeDelta)
	assert.Equal(t, uint32(100), rh.Length)
}

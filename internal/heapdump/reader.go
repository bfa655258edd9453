package heapdump

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// Address is a raw 64-bit heap address as it appears in the dump. Dumps
// with a 4-byte identifier width are widened into this space on read.
type Address uint64

// ID32 is a dense, zero-based identifier assigned to every address seen in
// the dump (objects and classes share this space; see index_format.go).
type ID32 uint32

// InvalidID32 marks an unresolved reference (a null pointer, or a target
// address never observed during Pass 1).
const InvalidID32 ID32 = 1<<32 - 1

// cursor is a positioned, seekable reader over an HPROF file. Unlike
// core_reader.go's bufio-backed Reader, it wraps *os.File directly so the
// two-pass parser can rewind between passes and the object store can seek
// straight to a payload offset without replaying the whole stream.
type cursor struct {
	f      *os.File
	idSize int
	pos    int64
	buf    [8]byte
}

func newCursor(f *os.File) *cursor {
	return &cursor{f: f}
}

func (c *cursor) SetIDSize(n int) { c.idSize = n }
func (c *cursor) IDSize() int     { return c.idSize }

func (c *cursor) Position() int64 { return c.pos }

func (c *cursor) Seek(offset int64) error {
	off, err := c.f.Seek(offset, io.SeekStart)
	if err != nil {
		return err
	}
	c.pos = off
	return nil
}

func (c *cursor) Length() (int64, error) {
	info, err := c.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (c *cursor) readFull(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(c.f, b); err != nil {
		return nil, err
	}
	c.pos += int64(n)
	return b, nil
}

func (c *cursor) ReadByte() (byte, error) {
	if _, err := io.ReadFull(c.f, c.buf[:1]); err != nil {
		return 0, err
	}
	c.pos++
	return c.buf[0], nil
}

func (c *cursor) ReadUint16() (uint16, error) {
	if _, err := io.ReadFull(c.f, c.buf[:2]); err != nil {
		return 0, err
	}
	c.pos += 2
	return binary.BigEndian.Uint16(c.buf[:2]), nil
}

func (c *cursor) ReadUint32() (uint32, error) {
	if _, err := io.ReadFull(c.f, c.buf[:4]); err != nil {
		return 0, err
	}
	c.pos += 4
	return binary.BigEndian.Uint32(c.buf[:4]), nil
}

func (c *cursor) ReadUint64() (uint64, error) {
	if _, err := io.ReadFull(c.f, c.buf[:8]); err != nil {
		return 0, err
	}
	c.pos += 8
	return binary.BigEndian.Uint64(c.buf[:8]), nil
}

// ReadAddress reads one identifier-width value, widened to Address.
func (c *cursor) ReadAddress() (Address, error) {
	if c.idSize == 4 {
		v, err := c.ReadUint32()
		return Address(v), err
	}
	v, err := c.ReadUint64()
	return Address(v), err
}

func (c *cursor) Skip(n int64) error {
	off, err := c.f.Seek(n, io.SeekCurrent)
	if err != nil {
		return err
	}
	c.pos = off
	return nil
}

// readValue reads one value of basic type t and returns it boxed; used for
// static field values and array elements where the concrete Go type isn't
// needed downstream, only its width and identity as a reference or not.
func (c *cursor) readValue(t BasicType) (interface{}, error) {
	switch t {
	case TypeObject:
		return c.ReadAddress()
	case TypeBoolean:
		b, err := c.ReadByte()
		return b != 0, err
	case TypeByte:
		b, err := c.ReadByte()
		return int8(b), err
	case TypeChar, TypeShort:
		v, err := c.ReadUint16()
		return v, err
	case TypeFloat, TypeInt:
		v, err := c.ReadUint32()
		return v, err
	case TypeDouble, TypeLong:
		v, err := c.ReadUint64()
		return v, err
	default:
		return nil, fmt.Errorf("heapdump: unknown basic type tag 0x%x", t)
	}
}

// readNullTerminatedString reads a NUL-terminated string, consumed byte by
// byte the way core_reader.go does for the format string in the HPROF
// header (the header is the only place HPROF embeds a NUL-terminated
// string; string records carry an explicit length instead).
func (c *cursor) readNullTerminatedString() (string, error) {
	var b []byte
	for {
		ch, err := c.ReadByte()
		if err != nil {
			return "", err
		}
		if ch == 0 {
			break
		}
		b = append(b, ch)
	}
	return string(b), nil
}

// readHeader reads the HPROF file header: format string, identifier size,
// and a millisecond epoch timestamp split across two big-endian uint32s.
func (c *cursor) readHeader() (Header, error) {
	format, err := c.readNullTerminatedString()
	if err != nil {
		return Header{}, fmt.Errorf("heapdump: reading format string: %w", err)
	}
	idSize, err := c.ReadUint32()
	if err != nil {
		return Header{}, fmt.Errorf("heapdump: reading identifier size: %w", err)
	}
	if idSize != 4 && idSize != 8 {
		return Header{}, fmt.Errorf("%w: identifier size %d", ErrUnsupportedDump, idSize)
	}
	hi, err := c.ReadUint32()
	if err != nil {
		return Header{}, fmt.Errorf("heapdump: reading timestamp high word: %w", err)
	}
	lo, err := c.ReadUint32()
	if err != nil {
		return Header{}, fmt.Errorf("heapdump: reading timestamp low word: %w", err)
	}
	ms := int64(hi)<<32 | int64(lo)
	c.SetIDSize(int(idSize))
	return Header{
		Format:    format,
		IDSize:    int(idSize),
		Timestamp: time.UnixMilli(ms).UTC(),
	}, nil
}

// recordHeader is the tag/timeDelta/length triple that precedes every
// top-level HPROF record.
type recordHeader struct {
	Tag       RecordTag
	TimeDelta uint32
	Length    uint32
}

func (c *cursor) readRecordHeader() (recordHeader, error) {
	tag, err := c.ReadByte()
	if err != nil {
		return recordHeader{}, err
	}
	delta, err := c.ReadUint32()
	if err != nil {
		return recordHeader{}, err
	}
	length, err := c.ReadUint32()
	if err != nil {
		return recordHeader{}, err
	}
	return recordHeader{Tag: RecordTag(tag), TimeDelta: delta, Length: length}, nil
}

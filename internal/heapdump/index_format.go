package heapdump

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
)

// Each index file starts with a 20-byte header: magic (u32), version (u32),
// entry count (u64), flags (u32). The magic is distinct per file so opening
// the wrong file, or a stale file from an older engine version, fails fast
// instead of silently misreading entries.
const indexHeaderSize = 20
const indexFormatVersion = 1

const (
	magicObjects   uint32 = 0x484f424a // "HOBJ"
	magicObjectMap uint32 = 0x484f4d50 // "HOMP"
	magicClassMap  uint32 = 0x48434d50 // "HCMP"
	magicGCRoots   uint32 = 0x48475254 // "HGRT"
	magicInbound   uint32 = 0x48494e42 // "HINB"
	magicRetained  uint32 = 0x48524554 // "HRET"
)

// Fixed entry widths, in bytes, for each index file.
const (
	objectEntrySize   = 26 // objectId32 u32, fileOffset u64, dataSize u32, classId32 i32, arrayLength i32, flags u8, elementType u8
	objectMapEntrySize = 12 // id32 u32, address u64
	classMapEntrySize  = 12 // classId32 u32, address u64
	gcRootEntrySize    = 13 // kind u8, objectId32 u32, threadSerial i32, frameNumber i32
	inboundEntrySize   = 4  // count u32, direct-addressed by id32
	retainedEntrySize  = 8  // retainedSize i64, direct-addressed by id32
)

// indexFlags bits stored in the header.
const (
	flagEagerRetained uint32 = 1 << 0
)

// indexWriter appends fixed-width entries to a single index file and
// patches the header at Close. Unlike an mmap-backed array that grows a
// memory-mapped scratch file as it's written, this is a
// plain sequential bufio.Writer: indexes are write-once and then reopened
// read-only, so there's no need to support random-access growth while
// writing.
type indexWriter struct {
	f       *os.File
	w       *bufio.Writer
	magic   uint32
	flags   uint32
	count   uint64
	entrySz int
}

func createIndexWriter(path string, magic uint32, entrySize int) (*indexWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrIndexIOError, path, err)
	}
	if _, err := f.Seek(indexHeaderSize, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: seeking past header in %s: %v", ErrIndexIOError, path, err)
	}
	return &indexWriter{
		f:       f,
		w:       bufio.NewWriterSize(f, 256*1024),
		magic:   magic,
		entrySz: entrySize,
	}, nil
}

func (w *indexWriter) SetFlag(bit uint32) { w.flags |= bit }

func (w *indexWriter) appendRaw(buf []byte) error {
	if len(buf) != w.entrySz {
		return fmt.Errorf("heapdump: index entry size mismatch: got %d want %d", len(buf), w.entrySz)
	}
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexIOError, err)
	}
	w.count++
	return nil
}

// writeAtOffset writes an entry at a specific direct-addressed slot (used by
// the inbound and retained-size indexes, which are pre-sized and updated
// out of append order). It bypasses the buffered writer and count tracking
// used by appendRaw, so the caller must size the file with preallocate
// first.
func (w *indexWriter) writeAtOffset(slot uint64, buf []byte) error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexIOError, err)
	}
	off := int64(indexHeaderSize) + int64(slot)*int64(w.entrySz)
	if _, err := w.f.WriteAt(buf, off); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexIOError, err)
	}
	return nil
}

// preallocate extends the file to hold n direct-addressed slots, zero
// filled, so writeAtOffset can target any slot without growing the file.
func (w *indexWriter) preallocate(n uint64) error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexIOError, err)
	}
	size := int64(indexHeaderSize) + int64(n)*int64(w.entrySz)
	if err := w.f.Truncate(size); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexIOError, err)
	}
	w.count = n
	return nil
}

// Close flushes pending writes and patches in the final header, committing
// the file atomically from a reader's point of view: a reader validating
// the magic will never observe a header written before the body is
// complete, because the header is the very last thing written.
func (w *indexWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("%w: %v", ErrIndexIOError, err)
	}
	var hdr [indexHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], w.magic)
	binary.LittleEndian.PutUint32(hdr[4:8], indexFormatVersion)
	binary.LittleEndian.PutUint64(hdr[8:16], w.count)
	binary.LittleEndian.PutUint32(hdr[16:20], w.flags)
	if _, err := w.f.WriteAt(hdr[:], 0); err != nil {
		w.f.Close()
		return fmt.Errorf("%w: %v", ErrIndexIOError, err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("%w: %v", ErrIndexIOError, err)
	}
	return w.f.Close()
}

// indexReader mmaps a committed index file read-only and validates its
// header against the expected magic. A mismatch (wrong file, truncated
// write, or a format from an older engine version) surfaces as
// ErrStaleIndex so the caller knows to rebuild rather than crash on a
// misparsed entry.
type indexReader struct {
	f       *os.File
	data    []byte
	count   uint64
	flags   uint32
	entrySz int
}

func openIndexReader(path string, wantMagic uint32, entrySize int) (*indexReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIndexIOError, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIndexIOError, path, err)
	}
	size := info.Size()
	if size < indexHeaderSize {
		f.Close()
		return nil, fmt.Errorf("%w: %s is smaller than the index header", ErrStaleIndex, path)
	}
	var data []byte
	if size > indexHeaderSize {
		data, err = syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: mmap %s: %v", ErrIndexIOError, path, err)
		}
	} else {
		// Header-only file (zero entries); nothing to map.
		data = make([]byte, indexHeaderSize)
		if _, err := f.ReadAt(data, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: reading header of %s: %v", ErrIndexIOError, path, err)
		}
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	version := binary.LittleEndian.Uint32(data[4:8])
	if magic != wantMagic || version != indexFormatVersion {
		if len(data) > indexHeaderSize {
			syscall.Munmap(data)
		}
		f.Close()
		return nil, fmt.Errorf("%w: %s has magic 0x%x version %d, expected 0x%x version %d",
			ErrStaleIndex, path, magic, version, wantMagic, indexFormatVersion)
	}
	count := binary.LittleEndian.Uint64(data[8:16])
	flags := binary.LittleEndian.Uint32(data[16:20])
	return &indexReader{f: f, data: data, count: count, flags: flags, entrySz: entrySize}, nil
}

func (r *indexReader) Count() uint64   { return r.count }
func (r *indexReader) HasFlag(bit uint32) bool { return r.flags&bit != 0 }

// entry returns the raw bytes for slot i, which is either the i-th
// appended record (objects/objectmap/classmap/gcroots) or the direct slot
// i (inbound/retained).
func (r *indexReader) entry(i uint64) ([]byte, error) {
	if i >= r.count {
		return nil, fmt.Errorf("heapdump: index slot %d out of range (count %d)", i, r.count)
	}
	start := indexHeaderSize + int(i)*r.entrySz
	return r.data[start : start+r.entrySz], nil
}

func (r *indexReader) Close() error {
	if len(r.data) > indexHeaderSize {
		if err := syscall.Munmap(r.data); err != nil {
			r.f.Close()
			return fmt.Errorf("%w: munmap: %v", ErrIndexIOError, err)
		}
	}
	return r.f.Close()
}

// --- entry encode/decode helpers ---

type objectEntry struct {
	ObjectID32  uint32
	FileOffset  uint64
	DataSize    uint32
	ClassID32   int32
	ArrayLength int32
	Flags       uint8
	ElementType uint8
}

func encodeObjectEntry(e objectEntry) []byte {
	buf := make([]byte, objectEntrySize)
	binary.LittleEndian.PutUint32(buf[0:4], e.ObjectID32)
	binary.LittleEndian.PutUint64(buf[4:12], e.FileOffset)
	binary.LittleEndian.PutUint32(buf[12:16], e.DataSize)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(e.ClassID32))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(e.ArrayLength))
	buf[24] = e.Flags
	buf[25] = e.ElementType
	return buf
}

func decodeObjectEntry(buf []byte) objectEntry {
	return objectEntry{
		ObjectID32:  binary.LittleEndian.Uint32(buf[0:4]),
		FileOffset:  binary.LittleEndian.Uint64(buf[4:12]),
		DataSize:    binary.LittleEndian.Uint32(buf[12:16]),
		ClassID32:   int32(binary.LittleEndian.Uint32(buf[16:20])),
		ArrayLength: int32(binary.LittleEndian.Uint32(buf[20:24])),
		Flags:       buf[24],
		ElementType: buf[25],
	}
}

const (
	objFlagIsClass uint8 = 1 << 0
)

func encodeAddrEntry(id uint32, addr uint64) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	binary.LittleEndian.PutUint64(buf[4:12], addr)
	return buf
}

func decodeAddrEntry(buf []byte) (id uint32, addr uint64) {
	return binary.LittleEndian.Uint32(buf[0:4]), binary.LittleEndian.Uint64(buf[4:12])
}

func encodeGCRootEntry(g GCRoot) []byte {
	buf := make([]byte, gcRootEntrySize)
	buf[0] = byte(g.Kind)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(g.ObjectID32))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(g.ThreadSerial))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(g.FrameIndex))
	return buf
}

func decodeGCRootEntry(buf []byte) GCRoot {
	return GCRoot{
		Kind:         GCRootKind(buf[0]),
		ObjectID32:   ID32(binary.LittleEndian.Uint32(buf[1:5])),
		ThreadSerial: int32(binary.LittleEndian.Uint32(buf[5:9])),
		FrameIndex:   int32(binary.LittleEndian.Uint32(buf[9:13])),
	}
}

func encodeUint32Entry(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func decodeUint32Entry(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

func encodeInt64Entry(v int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeInt64Entry(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}

package heapdumpsvc

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btraceio/heapdump/internal/heapdump"
)

// Minimal inline HPROF builder, grounded the same way as
// internal/analyzer's own copy: internal/heapdump's sample-dump helpers are
// unexported and unreachable from another package's tests.
type miniHprofBuilder struct {
	buf    bytes.Buffer
	nextID uint64
}

func newMiniHprofBuilder() *miniHprofBuilder {
	b := &miniHprofBuilder{nextID: 1}
	b.buf.WriteString("JAVA PROFILE 1.0.2")
	b.buf.WriteByte(0)
	binary.Write(&b.buf, binary.BigEndian, uint32(8))
	binary.Write(&b.buf, binary.BigEndian, uint32(time.Now().UnixMilli()>>32))
	binary.Write(&b.buf, binary.BigEndian, uint32(time.Now().UnixMilli()))
	return b
}

func (b *miniHprofBuilder) id(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

func (b *miniHprofBuilder) internString(s string) uint64 {
	id := b.nextID
	b.nextID++

	var rec bytes.Buffer
	rec.Write(b.id(id))
	rec.WriteString(s)

	b.buf.WriteByte(0x01)
	binary.Write(&b.buf, binary.BigEndian, uint32(0))
	binary.Write(&b.buf, binary.BigEndian, uint32(rec.Len()))
	b.buf.Write(rec.Bytes())
	return id
}

func (b *miniHprofBuilder) loadClass(classAddr uint64, name string) {
	nameID := b.internString(name)
	var rec bytes.Buffer
	binary.Write(&rec, binary.BigEndian, uint32(1))
	rec.Write(b.id(classAddr))
	binary.Write(&rec, binary.BigEndian, uint32(0))
	rec.Write(b.id(nameID))

	b.buf.WriteByte(0x02)
	binary.Write(&b.buf, binary.BigEndian, uint32(0))
	binary.Write(&b.buf, binary.BigEndian, uint32(rec.Len()))
	b.buf.Write(rec.Bytes())
}

func (b *miniHprofBuilder) writeClassDump(cur *bytes.Buffer, addr, super uint64, instanceSize uint32, fieldNames []string) {
	cur.WriteByte(0x20)
	cur.Write(b.id(addr))
	binary.Write(cur, binary.BigEndian, uint32(0))
	cur.Write(b.id(super))
	cur.Write(b.id(0))
	for i := 0; i < 4; i++ {
		cur.Write(b.id(0))
	}
	binary.Write(cur, binary.BigEndian, instanceSize)
	binary.Write(cur, binary.BigEndian, uint16(0))
	binary.Write(cur, binary.BigEndian, uint16(0))
	binary.Write(cur, binary.BigEndian, uint16(len(fieldNames)))
	for _, name := range fieldNames {
		nameID := b.internString(name)
		cur.Write(b.id(nameID))
		cur.WriteByte(2)
	}
}

func (b *miniHprofBuilder) writeInstanceDump(cur *bytes.Buffer, addr, classAddr uint64, fieldVals []uint64) {
	cur.WriteByte(0x21)
	cur.Write(b.id(addr))
	binary.Write(cur, binary.BigEndian, uint32(0))
	cur.Write(b.id(classAddr))
	payload := make([]byte, 0, len(fieldVals)*8)
	for _, v := range fieldVals {
		payload = append(payload, b.id(v)...)
	}
	binary.Write(cur, binary.BigEndian, uint32(len(payload)))
	cur.Write(payload)
}

func (b *miniHprofBuilder) writeRoot(cur *bytes.Buffer, tag byte, addr uint64, trailing []byte) {
	cur.WriteByte(tag)
	cur.Write(b.id(addr))
	cur.Write(trailing)
}

func (b *miniHprofBuilder) heapDumpSegment(sub *bytes.Buffer) {
	b.buf.WriteByte(0x0C)
	binary.Write(&b.buf, binary.BigEndian, uint32(0))
	binary.Write(&b.buf, binary.BigEndian, uint32(sub.Len()))
	b.buf.Write(sub.Bytes())
}

func (b *miniHprofBuilder) writeToFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.hprof")
	require.NoError(t, os.WriteFile(path, b.buf.Bytes(), 0o644))
	return path
}

func buildMiniHeapDump(t *testing.T) string {
	t.Helper()
	b := newMiniHprofBuilder()

	const (
		objectClassAddr    = 0x1000
		leafClassAddr      = 0x1001
		holderClassAddr    = 0x1002
		leafInstanceAddr   = 0x2000
		holderInstanceAddr = 0x2001
	)

	b.loadClass(objectClassAddr, "java.lang.Object")
	b.loadClass(leafClassAddr, "com.example.Leaf")
	b.loadClass(holderClassAddr, "com.example.Holder")

	var sub bytes.Buffer
	b.writeClassDump(&sub, objectClassAddr, 0, 0, nil)
	b.writeClassDump(&sub, leafClassAddr, objectClassAddr, 0, nil)
	b.writeClassDump(&sub, holderClassAddr, objectClassAddr, 8, []string{"leaf"})

	b.writeInstanceDump(&sub, leafInstanceAddr, leafClassAddr, nil)
	b.writeInstanceDump(&sub, holderInstanceAddr, holderClassAddr, []uint64{leafInstanceAddr})
	b.writeRoot(&sub, 0x01, holderInstanceAddr, b.id(0))
	b.writeRoot(&sub, 0x05, objectClassAddr, nil)

	b.heapDumpSegment(&sub)

	return b.writeToFile(t)
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	path := buildMiniHeapDump(t)
	opts := heapdump.DefaultOptions()
	opts.IndexDir = filepath.Join(t.TempDir(), "idx")
	return NewServer(opts, nil, nil), path
}

func TestServer_ObjectByAddress(t *testing.T) {
	srv, path := newTestServer(t)
	ctx := context.Background()

	resp, err := srv.ObjectByAddress(ctx, &ObjectByAddressRequest{DumpPath: path, Address: 0x2001})
	require.NoError(t, err)
	assert.True(t, resp.Found)
	assert.Equal(t, "com.example.Holder", resp.ClassName)

	resp, err = srv.ObjectByAddress(ctx, &ObjectByAddressRequest{DumpPath: path, Address: 0xdead})
	require.NoError(t, err)
	assert.False(t, resp.Found)
}

func TestServer_PathToGcRoot(t *testing.T) {
	srv, path := newTestServer(t)
	ctx := context.Background()

	obj, err := srv.ObjectByAddress(ctx, &ObjectByAddressRequest{DumpPath: path, Address: 0x2000})
	require.NoError(t, err)
	require.True(t, obj.Found)

	pathResp, err := srv.PathToGcRoot(ctx, &PathToGCRootRequest{DumpPath: path, ObjectID: obj.ObjectID})
	require.NoError(t, err)
	assert.True(t, pathResp.Found)
}

func TestServer_RetainedSize(t *testing.T) {
	srv, path := newTestServer(t)
	ctx := context.Background()

	obj, err := srv.ObjectByAddress(ctx, &ObjectByAddressRequest{DumpPath: path, Address: 0x2001})
	require.NoError(t, err)
	require.True(t, obj.Found)

	resp, err := srv.RetainedSize(ctx, &RetainedSizeRequest{DumpPath: path, ObjectID: obj.ObjectID})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resp.RetainedSize, int64(0))
}

func TestServer_Dominators(t *testing.T) {
	srv, path := newTestServer(t)
	ctx := context.Background()

	resp, err := srv.Dominators(ctx, &DominatorsRequest{DumpPath: path})
	require.NoError(t, err)
	assert.True(t, resp.Built)
}

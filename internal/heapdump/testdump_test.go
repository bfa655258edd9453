package heapdump

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
	"time"
)

// hprofBuilder assembles a minimal, valid HPROF byte stream for tests by
// hand-assembling records with encoding/binary rather than shipping
// binary fixture files.
type hprofBuilder struct {
	idSize int
	buf    bytes.Buffer
	strIDs map[string]uint64
	nextID uint64
}

func newHprofBuilder(idSize int) *hprofBuilder {
	b := &hprofBuilder{idSize: idSize, strIDs: map[string]uint64{}, nextID: 1}
	b.buf.WriteString("JAVA PROFILE 1.0.2")
	b.buf.WriteByte(0)
	binary.Write(&b.buf, binary.BigEndian, uint32(idSize))
	binary.Write(&b.buf, binary.BigEndian, uint32(time.Now().UnixMilli()>>32))
	binary.Write(&b.buf, binary.BigEndian, uint32(time.Now().UnixMilli()))
	return b
}

func (b *hprofBuilder) id(v uint64) []byte {
	out := make([]byte, b.idSize)
	if b.idSize == 4 {
		binary.BigEndian.PutUint32(out, uint32(v))
	} else {
		binary.BigEndian.PutUint64(out, v)
	}
	return out
}

// internString emits a TagString record (if not already emitted) and
// returns its string-id address.
func (b *hprofBuilder) internString(s string) uint64 {
	if id, ok := b.strIDs[s]; ok {
		return id
	}
	id := b.nextID
	b.nextID++
	b.strIDs[s] = id

	var rec bytes.Buffer
	rec.Write(b.id(id))
	rec.WriteString(s)

	b.buf.WriteByte(byte(TagString))
	binary.Write(&b.buf, binary.BigEndian, uint32(0))
	binary.Write(&b.buf, binary.BigEndian, uint32(rec.Len()))
	b.buf.Write(rec.Bytes())
	return id
}

func (b *hprofBuilder) loadClass(classAddr uint64, name string) {
	nameID := b.internString(name)
	var rec bytes.Buffer
	binary.Write(&rec, binary.BigEndian, uint32(1)) // serial
	rec.Write(b.id(classAddr))
	binary.Write(&rec, binary.BigEndian, uint32(0)) // stack trace serial
	rec.Write(b.id(nameID))

	b.buf.WriteByte(byte(TagLoadClass))
	binary.Write(&b.buf, binary.BigEndian, uint32(0))
	binary.Write(&b.buf, binary.BigEndian, uint32(rec.Len()))
	b.buf.Write(rec.Bytes())
}

// classSpec describes one CLASS_DUMP sub-record to embed in a heap dump.
type classSpec struct {
	addr         uint64
	super        uint64
	instanceSize uint32
	fields       []fieldSpec // instance fields only, object-typed unless noted
}

type fieldSpec struct {
	name string
	typ  BasicType
}

func (b *hprofBuilder) encodeClassDump(cur *bytes.Buffer, c classSpec) {
	cur.WriteByte(byte(ClassDump))
	cur.Write(b.id(c.addr))
	binary.Write(cur, binary.BigEndian, uint32(0)) // stack trace serial
	cur.Write(b.id(c.super))
	cur.Write(b.id(0)) // loader
	for i := 0; i < 4; i++ {
		cur.Write(b.id(0)) // signers, protDomain, reserved x2
	}
	binary.Write(cur, binary.BigEndian, c.instanceSize)
	binary.Write(cur, binary.BigEndian, uint16(0)) // constant pool size
	binary.Write(cur, binary.BigEndian, uint16(0)) // static field count
	binary.Write(cur, binary.BigEndian, uint16(len(c.fields)))
	for _, f := range c.fields {
		nameID := b.internString(f.name)
		cur.Write(b.id(nameID))
		cur.WriteByte(byte(f.typ))
	}
}

// instanceSpec describes one INSTANCE_DUMP sub-record; fieldVals must be
// in the same order as the owning class's fields, and each value is
// written as an id-width address (0 for null).
type instanceSpec struct {
	addr      uint64
	classAddr uint64
	fieldVals []uint64 // object-typed field values only, in declared order
}

func (b *hprofBuilder) encodeInstanceDump(cur *bytes.Buffer, in instanceSpec) {
	cur.WriteByte(byte(InstanceDump))
	cur.Write(b.id(in.addr))
	binary.Write(cur, binary.BigEndian, uint32(0))
	cur.Write(b.id(in.classAddr))
	payload := make([]byte, 0, len(in.fieldVals)*b.idSize)
	for _, v := range in.fieldVals {
		payload = append(payload, b.id(v)...)
	}
	binary.Write(cur, binary.BigEndian, uint32(len(payload)))
	cur.Write(payload)
}

func (b *hprofBuilder) encodeObjectArrayDump(cur *bytes.Buffer, addr, classAddr uint64, elems []uint64) {
	cur.WriteByte(byte(ObjectArrayDump))
	cur.Write(b.id(addr))
	binary.Write(cur, binary.BigEndian, uint32(0))
	binary.Write(cur, binary.BigEndian, uint32(len(elems)))
	cur.Write(b.id(classAddr))
	for _, e := range elems {
		cur.Write(b.id(e))
	}
}

func (b *hprofBuilder) encodePrimArrayDump(cur *bytes.Buffer, addr uint64, elemType BasicType, n int) {
	cur.WriteByte(byte(PrimArrayDump))
	cur.Write(b.id(addr))
	binary.Write(cur, binary.BigEndian, uint32(0))
	binary.Write(cur, binary.BigEndian, uint32(n))
	cur.WriteByte(byte(elemType))
	w := valueSize(elemType, b.idSize)
	cur.Write(make([]byte, n*w))
}

// encodeRoot writes a root sub-record whose trailing payload (beyond the
// leading id-width object address) is exactly trailing, so callers must
// size it to match rootPayloadShape for the tag in question.
func (b *hprofBuilder) encodeRoot(cur *bytes.Buffer, tag HeapDumpTag, addr uint64, trailing []byte) {
	cur.WriteByte(byte(tag))
	cur.Write(b.id(addr))
	cur.Write(trailing)
}

// encodeRootWithThreadSerial writes a root sub-record shaped like
// ROOT_NATIVE_STACK/ROOT_THREAD_BLOCK: id-width address plus a 4-byte
// thread serial.
func (b *hprofBuilder) encodeRootWithThreadSerial(cur *bytes.Buffer, tag HeapDumpTag, addr uint64, threadSerial uint32) {
	cur.WriteByte(byte(tag))
	cur.Write(b.id(addr))
	binary.Write(cur, binary.BigEndian, threadSerial)
}

// heapDumpSegment wraps an already-assembled sub-record buffer in a
// top-level TagHeapDump record.
func (b *hprofBuilder) heapDumpSegment(sub *bytes.Buffer) {
	b.buf.WriteByte(byte(TagHeapDump))
	binary.Write(&b.buf, binary.BigEndian, uint32(0))
	binary.Write(&b.buf, binary.BigEndian, uint32(sub.Len()))
	b.buf.Write(sub.Bytes())
}

func (b *hprofBuilder) writeToFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := dir + string(os.PathSeparator) + "test.hprof"
	if err := os.WriteFile(path, b.buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing fixture dump: %v", err)
	}
	return path
}

// buildSampleDump assembles a small, self-consistent heap: one root
// class (java.lang.Object), one leaf class (Leaf) with a single int field
// (its instance is dumped with an empty payload), one holder class
// (Holder) referencing a Leaf instance and an object array, an
// unreferenced byte array, plus a JNI global root pointing at the holder
// instance and a sticky-class root on java.lang.Object. Returns
// the file path and the addresses used, so tests can assert on known
// identities.
type sampleDump struct {
	path              string
	objectClassAddr   uint64
	leafClassAddr     uint64
	holderClassAddr   uint64
	leafInstanceAddr  uint64
	holderInstanceAddr uint64
	arrayAddr         uint64
	primArrayAddr     uint64
}

func buildSampleDump(t *testing.T, idSize int) sampleDump {
	t.Helper()
	b := newHprofBuilder(idSize)

	const (
		objectClassAddr    = 0x1000
		leafClassAddr      = 0x1001
		holderClassAddr    = 0x1002
		leafInstanceAddr   = 0x2000
		holderInstanceAddr = 0x2001
		arrayAddr          = 0x2002
		primArrayAddr      = 0x2003
	)

	b.loadClass(objectClassAddr, "java.lang.Object")
	b.loadClass(leafClassAddr, "com.example.Leaf")
	b.loadClass(holderClassAddr, "com.example.Holder")

	var sub bytes.Buffer
	b.encodeClassDump(&sub, classSpec{addr: objectClassAddr, super: 0, instanceSize: 0})
	b.encodeClassDump(&sub, classSpec{addr: leafClassAddr, super: objectClassAddr, instanceSize: 4, fields: []fieldSpec{{"value", TypeInt}}})
	b.encodeClassDump(&sub, classSpec{addr: holderClassAddr, super: objectClassAddr, instanceSize: uint32(idSize * 2), fields: []fieldSpec{
		{"leaf", TypeObject},
		{"items", TypeObject},
	}})

	b.encodeInstanceDump(&sub, instanceSpec{addr: leafInstanceAddr, classAddr: leafClassAddr, fieldVals: nil})
	b.encodeInstanceDump(&sub, instanceSpec{addr: holderInstanceAddr, classAddr: holderClassAddr, fieldVals: []uint64{leafInstanceAddr, arrayAddr}})
	b.encodeObjectArrayDump(&sub, arrayAddr, leafClassAddr, []uint64{leafInstanceAddr, 0})
	b.encodePrimArrayDump(&sub, primArrayAddr, TypeByte, 16)
	b.encodeRoot(&sub, RootJNIGlobal, holderInstanceAddr, b.id(0)) // JNI global ref id
	b.encodeRoot(&sub, RootStickyClass, objectClassAddr, nil)

	b.heapDumpSegment(&sub)

	return sampleDump{
		path:               b.writeToFile(t),
		objectClassAddr:    objectClassAddr,
		leafClassAddr:      leafClassAddr,
		holderClassAddr:    holderClassAddr,
		leafInstanceAddr:   leafInstanceAddr,
		holderInstanceAddr: holderInstanceAddr,
		arrayAddr:          arrayAddr,
		primArrayAddr:      primArrayAddr,
	}
}

package heapdump

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Build_IDSize8(t *testing.T) {
	dump := buildSampleDump(t, 8)
	idxDir := t.TempDir()

	p := newParser(dump.path, idxDir, nil, nil)
	artifacts, err := p.build()
	require.NoError(t, err)

	assert.Equal(t, 8, artifacts.header.IDSize)
	assert.Equal(t, 3, len(artifacts.classes))

	holder, ok := artifacts.classes[Address(dump.holderClassAddr)]
	require.True(t, ok)
	assert.Equal(t, "com.example.Holder", holder.Name)
	require.Len(t, holder.InstanceFields, 2)
	assert.Equal(t, "leaf", holder.InstanceFields[0].Name)
	assert.Equal(t, "items", holder.InstanceFields[1].Name)

	leaf, ok := artifacts.classes[Address(dump.leafClassAddr)]
	require.True(t, ok)
	assert.Equal(t, "com.example.Leaf", leaf.Name)
	assert.Equal(t, Address(dump.objectClassAddr), leaf.Super)

	assert.Equal(t, 2, artifacts.gcRootCount)
}

func TestParser_Build_IDSize4(t *testing.T) {
	dump := buildSampleDump(t, 4)
	idxDir := t.TempDir()

	p := newParser(dump.path, idxDir, nil, nil)
	artifacts, err := p.build()
	require.NoError(t, err)
	assert.Equal(t, 4, artifacts.header.IDSize)
	assert.Equal(t, 3, len(artifacts.classes))
}

func TestParser_UnknownSubTag_IsHardError(t *testing.T) {
	b := newHprofBuilder(8)

	var sub bytes.Buffer
	sub.WriteByte(0x7A) // not a recognised root or object sub-tag
	sub.Write(b.id(1))

	b.buf.WriteByte(byte(TagHeapDump))
	binary.Write(&b.buf, binary.BigEndian, uint32(0))
	binary.Write(&b.buf, binary.BigEndian, uint32(sub.Len()))
	b.buf.Write(sub.Bytes())

	path := b.writeToFile(t)
	p := newParser(path, t.TempDir(), nil, nil)
	_, err := p.build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptDump)
}

func TestRootPayloadShape(t *testing.T) {
	size, hasThread, hasFrame, err := rootPayloadShape(RootJNIGlobal, 8)
	require.NoError(t, err)
	assert.Equal(t, 16, size)
	assert.False(t, hasThread)
	assert.False(t, hasFrame)

	size, hasThread, hasFrame, err = rootPayloadShape(RootJavaFrame, 8)
	require.NoError(t, err)
	assert.Equal(t, 16, size)
	assert.True(t, hasThread)
	assert.True(t, hasFrame)

	size, hasThread, hasFrame, err = rootPayloadShape(RootNativeStack, 4)
	require.NoError(t, err)
	assert.Equal(t, 8, size)
	assert.True(t, hasThread)
	assert.False(t, hasFrame)

	_, _, _, err = rootPayloadShape(HeapDumpTag(0x99), 8)
	assert.ErrorIs(t, err, ErrCorruptDump)
}

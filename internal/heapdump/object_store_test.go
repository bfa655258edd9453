package heapdump

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSampleDump(t *testing.T, idSize int) (*HeapDump, sampleDump) {
	t.Helper()
	dump := buildSampleDump(t, idSize)
	opts := DefaultOptions()
	opts.IndexDir = t.TempDir()
	d, err := Open(context.Background(), dump.path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d, dump
}

func TestObjectStore_ByAddressAndByID32(t *testing.T) {
	d, dump := openSampleDump(t, 8)

	holder, err := d.ObjectByAddress(Address(dump.holderInstanceAddr))
	require.NoError(t, err)
	assert.Equal(t, Address(dump.holderInstanceAddr), holder.Address)
	assert.Equal(t, KindInstance, holder.Kind)
	assert.False(t, holder.IsClassObject)

	again, err := d.ObjectByID32(holder.ID32)
	require.NoError(t, err)
	assert.Equal(t, holder.Address, again.Address)
}

func TestObjectStore_ClassObjectHasZeroSize(t *testing.T) {
	d, dump := openSampleDump(t, 8)

	classObj, err := d.ObjectByAddress(Address(dump.leafClassAddr))
	require.NoError(t, err)
	assert.True(t, classObj.IsClassObject)
	assert.Equal(t, int64(0), classObj.ShallowSize)
	assert.Equal(t, int64(0), classObj.RetainedSize)
}

func TestObjectStore_InstanceReferences(t *testing.T) {
	d, dump := openSampleDump(t, 8)

	holder, err := d.ObjectByAddress(Address(dump.holderInstanceAddr))
	require.NoError(t, err)
	refs, err := d.References(holder)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	byField := map[string]ID32{}
	for _, r := range refs {
		byField[r.FieldName] = r.TargetID32
	}
	leaf, err := d.ObjectByAddress(Address(dump.leafInstanceAddr))
	require.NoError(t, err)
	arr, err := d.ObjectByAddress(Address(dump.arrayAddr))
	require.NoError(t, err)
	assert.Equal(t, leaf.ID32, byField["leaf"])
	assert.Equal(t, arr.ID32, byField["items"])
}

func TestObjectStore_ObjectArrayReferences_SkipsNulls(t *testing.T) {
	d, dump := openSampleDump(t, 8)

	arr, err := d.ObjectByAddress(Address(dump.arrayAddr))
	require.NoError(t, err)
	assert.Equal(t, KindObjectArray, arr.Kind)

	refs, err := d.References(arr)
	require.NoError(t, err)
	require.Len(t, refs, 1, "the null element must be skipped")
	assert.Equal(t, "[0]", refs[0].FieldName)
}

func TestObjectStore_PrimitiveArrayHasNoReferences(t *testing.T) {
	d, dump := openSampleDump(t, 8)

	prim, err := d.ObjectByAddress(Address(dump.primArrayAddr))
	require.NoError(t, err)
	assert.Equal(t, KindPrimitiveArray, prim.Kind)
	assert.Equal(t, int32(16), prim.ArrayLength)

	refs, err := d.References(prim)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestObjectStore_ShallowSize_IDSizeDependent(t *testing.T) {
	d8, dump8 := openSampleDump(t, 8)
	prim8, err := d8.ObjectByAddress(Address(dump8.primArrayAddr))
	require.NoError(t, err)
	// arrayHeaderSize(8) = 20, element width 1 byte * 16
	assert.Equal(t, int64(36), prim8.ShallowSize)

	d4, dump4 := openSampleDump(t, 4)
	prim4, err := d4.ObjectByAddress(Address(dump4.primArrayAddr))
	require.NoError(t, err)
	// arrayHeaderSize(4) = 12, element width 1 byte * 16
	assert.Equal(t, int64(28), prim4.ShallowSize)
}

package heapdump

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathToGCRoot_RootItselfIsSingleStep(t *testing.T) {
	d, dump := openSampleDump(t, 8)
	holder, err := d.ObjectByAddress(Address(dump.holderInstanceAddr))
	require.NoError(t, err)

	path, err := d.PathToGCRoot(context.Background(), holder.ID32)
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, holder.ID32, path[0].ObjectID32)
	assert.Equal(t, "", path[0].FieldName)
}

func TestPathToGCRoot_WalksFieldChain(t *testing.T) {
	d, dump := openSampleDump(t, 8)
	holder, err := d.ObjectByAddress(Address(dump.holderInstanceAddr))
	require.NoError(t, err)
	leaf, err := d.ObjectByAddress(Address(dump.leafInstanceAddr))
	require.NoError(t, err)

	path, err := d.PathToGCRoot(context.Background(), leaf.ID32)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, holder.ID32, path[0].ObjectID32)
	assert.Equal(t, "leaf", path[0].FieldName)
	assert.Equal(t, leaf.ID32, path[1].ObjectID32)
	assert.Equal(t, "", path[1].FieldName)
}

func TestPathToGCRoot_UnreachableReturnsNil(t *testing.T) {
	d, dump := openSampleDump(t, 8)
	prim, err := d.ObjectByAddress(Address(dump.primArrayAddr))
	require.NoError(t, err)

	path, err := d.PathToGCRoot(context.Background(), prim.ID32)
	require.NoError(t, err)
	assert.Nil(t, path)
}

package heapdump

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetainedSize_ApproximateStopsAtSharedObject(t *testing.T) {
	d, dump := openSampleDump(t, 8)

	holder, err := d.ObjectByAddress(Address(dump.holderInstanceAddr))
	require.NoError(t, err)

	size, err := d.RetainedSize(context.Background(), holder.ID32)
	require.NoError(t, err)

	// holder retains itself, the array, and leaf (leaf's own shallow
	// size is still charged once even though its inbound count of 2,
	// via both the array and the holder field, stops the BFS from
	// expanding any further past it).
	arr, err := d.ObjectByAddress(Address(dump.arrayAddr))
	require.NoError(t, err)
	leaf, err := d.ObjectByAddress(Address(dump.leafInstanceAddr))
	require.NoError(t, err)
	assert.Equal(t, holder.ShallowSize+arr.ShallowSize+leaf.ShallowSize, size)
}

func TestRetainedSize_LeafHasNoOutboundExpansion(t *testing.T) {
	d, dump := openSampleDump(t, 8)

	leaf, err := d.ObjectByAddress(Address(dump.leafInstanceAddr))
	require.NoError(t, err)

	size, err := d.RetainedSize(context.Background(), leaf.ID32)
	require.NoError(t, err)
	assert.Equal(t, leaf.ShallowSize, size)
}

func TestRetainedSizeEngine_BuildAll_PersistsForEveryObject(t *testing.T) {
	d, dump := openSampleDump(t, 8)
	require.NoError(t, d.ensureRetainedIndex())

	leaf, err := d.ObjectByAddress(Address(dump.leafInstanceAddr))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, leaf.RetainedSize, int64(0))

	classObj, err := d.ObjectByAddress(Address(dump.leafClassAddr))
	require.NoError(t, err)
	assert.Equal(t, int64(0), classObj.RetainedSize)
}

package heapdump

import (
	"context"
	"testing"

	"github.com/btraceio/heapdump/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_BuildsAndReopensFromExistingIndex(t *testing.T) {
	dump := buildSampleDump(t, 8)
	opts := DefaultOptions()
	opts.IndexDir = t.TempDir()

	d1, err := Open(context.Background(), dump.path, opts)
	require.NoError(t, err)
	roots1 := d1.GCRoots()
	require.NoError(t, d1.Close())

	d2, err := Open(context.Background(), dump.path, opts)
	require.NoError(t, err)
	defer d2.Close()
	roots2 := d2.GCRoots()

	assert.Equal(t, len(roots1), len(roots2))
	assert.Equal(t, 2, len(roots2))

	holder, err := d2.ObjectByAddress(Address(dump.holderInstanceAddr))
	require.NoError(t, err)
	assert.Equal(t, Address(dump.holderInstanceAddr), holder.Address)
}

func TestHeapDump_GCRootsIncludeStickyClass(t *testing.T) {
	d, dump := openSampleDump(t, 8)

	var kinds []GCRootKind
	for _, r := range d.GCRoots() {
		kinds = append(kinds, r.Kind)
	}
	assert.Contains(t, kinds, GCRootKindJNIGlobal)
	assert.Contains(t, kinds, GCRootKindStickyClass)

	classObj, err := d.ObjectByAddress(Address(dump.objectClassAddr))
	require.NoError(t, err)
	assert.True(t, classObj.IsClassObject)
}

func TestHeapDump_EagerRetainedOption(t *testing.T) {
	dump := buildSampleDump(t, 8)
	opts := DefaultOptions()
	opts.IndexDir = t.TempDir()
	opts.EagerRetained = true

	d, err := Open(context.Background(), dump.path, opts)
	require.NoError(t, err)
	defer d.Close()

	holder, err := d.ObjectByAddress(Address(dump.holderInstanceAddr))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, holder.RetainedSize, int64(0))
}

func TestOptionsFromConfig_DefaultsPreserved(t *testing.T) {
	opts := OptionsFromConfig(config.HeapEngineConfig{})
	assert.Equal(t, DefaultOptions().HybridTopN, opts.HybridTopN)
}

func TestOptionsFromConfig_OverridesApplied(t *testing.T) {
	opts := OptionsFromConfig(config.HeapEngineConfig{HybridTopN: 42, LRUCapacity: 7})
	assert.Equal(t, 42, opts.HybridTopN)
	assert.Equal(t, 7, opts.LRUCapacity)
}

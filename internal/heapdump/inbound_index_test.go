package heapdump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundIndexBuilder_CountsOutboundEdges(t *testing.T) {
	d, dump := openSampleDump(t, 8)

	require.NoError(t, d.ensureInboundIndex())

	leaf, err := d.ObjectByAddress(Address(dump.leafInstanceAddr))
	require.NoError(t, err)

	eng := newRetainedSizeEngine(d.store, d.inboundR, nil)
	// leaf is referenced by both the holder's "leaf" field and the
	// array's [0] element, so its inbound count must be 2.
	assert.Equal(t, uint32(2), eng.inboundCount(leaf.ID32))

	holder, err := d.ObjectByAddress(Address(dump.holderInstanceAddr))
	require.NoError(t, err)
	// holder is only reachable via the JNI global root, not via any
	// object edge, so its inbound count from other objects is zero.
	assert.Equal(t, uint32(0), eng.inboundCount(holder.ID32))
}

package heapdump

import (
	"path/filepath"

	"github.com/btraceio/heapdump/pkg/utils"
)

// inboundIndexBuilder runs a single extra pass over the dump: for
// every outbound edge, bump a saturating counter at the referent's
// id32. This is the same CSR edge-count pre-pass a packed adjacency
// layout would use, except here the counts themselves are the
// deliverable, not a prelude to allocation.
type inboundIndexBuilder struct {
	store  *objectStore
	logger utils.Logger
}

func newInboundIndexBuilder(store *objectStore, logger utils.Logger) *inboundIndexBuilder {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &inboundIndexBuilder{store: store, logger: logger}
}

// Build streams every object, accumulates outbound reference counts into
// memory (bounded by the address space size, one uint32 per id32), then
// writes the inbound index. Counting in memory avoids random-access
// writes to the mmaped slot for every single edge; the index file itself
// stays direct-addressed for O(1) reads afterward.
func (b *inboundIndexBuilder) Build(idxDir string, progress func(done, total uint64)) error {
	n := len(b.store.addrByID32)
	counts := make([]uint32, n)

	total := uint64(n)
	var processed uint64
	step := total / 100
	if step == 0 {
		step = 1
	}

	err := b.store.StreamAll(func(obj *HeapObject) error {
		if !obj.IsClassObject {
			refs, err := b.store.References(obj)
			if err != nil {
				return err
			}
			for _, r := range refs {
				i := int(r.TargetID32)
				if i >= 0 && i < len(counts) {
					if counts[i] != 1<<32-1 {
						counts[i]++
					}
				}
			}
		}
		processed++
		if progress != nil && (processed%step == 0 || processed == total) {
			progress(processed, total)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w, err := createIndexWriter(filepath.Join(idxDir, "inbound.idx"), magicInbound, inboundEntrySize)
	if err != nil {
		return err
	}
	if err := w.preallocate(uint64(n)); err != nil {
		w.Close()
		return err
	}
	for i, c := range counts {
		if c == 0 {
			continue // slot already zero from preallocate
		}
		if err := w.writeAtOffset(uint64(i), encodeUint32Entry(c)); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

package heapdump

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/btraceio/heapdump/pkg/utils"
)

// dominatorTree is the result of running Lengauer-Tarjan over a selected
// subgraph: per-node immediate dominator and exact retained size, plus
// the derived child map for O(1) "dominated by this object" queries.
// Node 0 is always the virtual super-root; real objects start at index 1.
type dominatorTree struct {
	nodes        []ID32 // index -> id32; nodes[0] is unused (super-root sentinel)
	nodeIndex    map[ID32]int
	idom         []int32
	children     map[int32][]int32
	retainedSize map[ID32]int64
}

// DominatedBy returns the id32s whose immediate dominator is o.
func (t *dominatorTree) DominatedBy(o ID32) []ID32 {
	idx, ok := t.nodeIndex[o]
	if !ok {
		return nil
	}
	kids := t.children[int32(idx)]
	out := make([]ID32, 0, len(kids))
	for _, k := range kids {
		out = append(out, t.nodes[k])
	}
	return out
}

func (t *dominatorTree) RetainedSize(o ID32) (int64, bool) {
	v, ok := t.retainedSize[o]
	return v, ok
}

// dominatorEngine runs Lengauer-Tarjan over a caller-selected subgraph S
// plus a virtual super-root wired to every GC root landing in S, using
// the standard vertex/semi/idom/link/eval/compress structure, adapted to
// run over the lazily-expanded subgraph this engine builds instead of a
// pre-materialised CSR reference graph.
type dominatorEngine struct {
	store  *objectStore
	logger utils.Logger
}

func newDominatorEngine(store *objectStore, logger utils.Logger) *dominatorEngine {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &dominatorEngine{store: store, logger: logger}
}

// BuildExact runs exact dominators over exactly the subgraph S ∪
// {super-root}, with edges from the super-root to every GC root in S and
// S's own outbound edges restricted to targets also in S.
func (e *dominatorEngine) BuildExact(s map[ID32]struct{}, rootsInS []ID32) (*dominatorTree, error) {
	nodes := make([]ID32, 1, len(s)+1)
	nodeIndex := make(map[ID32]int, len(s)+1)
	for id := range s {
		nodeIndex[id] = len(nodes)
		nodes = append(nodes, id)
	}

	n := len(nodes)
	succ := make([][]int32, n)
	for _, r := range rootsInS {
		if idx, ok := nodeIndex[r]; ok {
			succ[0] = append(succ[0], int32(idx))
		}
	}
	for id, idx := range nodeIndex {
		obj, err := e.store.ByID32(id)
		if err != nil {
			continue
		}
		refs, err := e.store.References(obj)
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			if tgt, ok := nodeIndex[r.TargetID32]; ok {
				succ[idx] = append(succ[idx], int32(tgt))
			}
		}
	}

	idom := runLengauerTarjan(n, succ)

	children := make(map[int32][]int32, n)
	for v := 1; v < n; v++ {
		p := idom[v]
		children[p] = append(children[p], int32(v))
	}

	retained := make(map[ID32]int64, n-1)
	var computeSubtree func(v int32) int64
	computeSubtree = func(v int32) int64 {
		var total int64
		if v != 0 {
			obj, err := e.store.ByID32(nodes[v])
			if err == nil {
				total = obj.ShallowSize
			}
		}
		for _, c := range children[v] {
			total += computeSubtree(c)
		}
		if v != 0 {
			retained[nodes[v]] = total
		}
		return total
	}
	computeSubtree(0)

	return &dominatorTree{
		nodes:        nodes,
		nodeIndex:    nodeIndex,
		idom:         idom,
		children:     children,
		retainedSize: retained,
	}, nil
}

// runLengauerTarjan computes immediate dominators for a graph given as an
// adjacency list rooted at node 0. Uses the simple (non-sophisticated)
// variant with path-compression eval/link, O((V+E) log V).
func runLengauerTarjan(n int, succ [][]int32) []int32 {
	pred := make([][]int32, n)
	for v := 0; v < n; v++ {
		for _, w := range succ[v] {
			pred[w] = append(pred[w], int32(v))
		}
	}

	vertex := make([]int32, 0, n)
	semi := make([]int32, n)
	parent := make([]int32, n)
	ancestor := make([]int32, n)
	label := make([]int32, n)
	idom := make([]int32, n)
	bucket := make([][]int32, n)
	for i := range semi {
		semi[i] = -1
		ancestor[i] = -1
		label[i] = int32(i)
		idom[i] = -1
	}

	var dfn int32
	var dfs func(v int32)
	dfs = func(v int32) {
		semi[v] = dfn
		vertex = append(vertex, v)
		dfn++
		for _, w := range succ[v] {
			if semi[w] == -1 {
				parent[w] = v
				dfs(w)
			}
		}
	}
	dfs(0)

	var compress func(v int32)
	compress = func(v int32) {
		if ancestor[ancestor[v]] != -1 {
			compress(ancestor[v])
			if semi[label[ancestor[v]]] < semi[label[v]] {
				label[v] = label[ancestor[v]]
			}
			ancestor[v] = ancestor[ancestor[v]]
		}
	}
	eval := func(v int32) int32 {
		if ancestor[v] == -1 {
			return v
		}
		compress(v)
		return label[v]
	}
	link := func(v, w int32) {
		ancestor[w] = v
	}

	for i := len(vertex) - 1; i >= 1; i-- {
		w := vertex[i]
		for _, v := range pred[w] {
			if semi[v] == -1 {
				continue // unreachable predecessor
			}
			u := eval(v)
			if semi[u] < semi[w] {
				semi[w] = semi[u]
			}
		}
		semiVertex := vertex[semi[w]]
		bucket[semiVertex] = append(bucket[semiVertex], w)
		link(parent[w], w)
		for _, v := range bucket[parent[w]] {
			u := eval(v)
			if semi[u] < semi[v] {
				idom[v] = u
			} else {
				idom[v] = parent[w]
			}
		}
		bucket[parent[w]] = nil
	}
	for i := 1; i < len(vertex); i++ {
		w := vertex[i]
		if idom[w] != vertex[semi[w]] {
			idom[w] = idom[idom[w]]
		}
	}
	idom[0] = 0
	return idom
}

// leakProneClassPrefixes is the built-in list consulted by hybrid mode's
// interesting-set step. It mirrors the kind of
// substring checks internal/analyzer/java_heap_analyzer.go's
// isPotentialLeakClass performs, generalised to class-name prefixes
// rather than a hand rolled substring switch.
var leakProneClassPrefixes = []string{
	"java.util.HashMap",
	"java.util.concurrent.ConcurrentHashMap",
	"java.util.WeakHashMap",
	"java.util.IdentityHashMap",
	"java.util.ArrayList",
	"java.util.LinkedList",
	"java.lang.ThreadLocal",
	"java.lang.ThreadLocal$ThreadLocalMap",
	"java.lang.ref.WeakReference",
	"java.lang.ref.SoftReference",
	"java.lang.ClassLoader",
}

func isLeakProneClassName(name string) bool {
	for _, p := range leakProneClassPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// HybridOptions configures the interesting-set construction
// §4.7's hybrid mode.
type HybridOptions struct {
	TopN            int
	LeakThresholdMB int
	GlobPatterns    []string
}

// BuildInterestingSet selects the union of (a) the topN objects by
// approximate retained size, (b) instances of a leak-prone class above
// the leak threshold, and (c) instances whose class name matches a
// caller-supplied glob, then expands it by reverse-BFS along inbound
// edges to any reachable GC root.
func (e *dominatorEngine) BuildInterestingSet(opts HybridOptions, approx *indexReader, roots []GCRoot, classByID32 map[int32]*Class) (map[ID32]struct{}, error) {
	type scored struct {
		id   ID32
		size int64
	}
	var topCandidates []scored
	thresholdBytes := int64(opts.LeakThresholdMB) * 1024 * 1024

	interesting := map[ID32]struct{}{}

	err := e.store.StreamAll(func(obj *HeapObject) error {
		if obj.IsClassObject {
			return nil
		}
		var size int64
		if approx != nil {
			if raw, err := approx.entry(uint64(obj.ID32)); err == nil {
				size = decodeInt64Entry(raw)
			}
		}
		topCandidates = append(topCandidates, scored{obj.ID32, size})

		c := classByID32[obj.ClassID32]
		if c == nil {
			return nil
		}
		if size >= thresholdBytes && isLeakProneClassName(c.Name) {
			interesting[obj.ID32] = struct{}{}
		}
		for _, pat := range opts.GlobPatterns {
			if matched, _ := globMatch(pat, c.Name); matched {
				interesting[obj.ID32] = struct{}{}
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(topCandidates, func(i, j int) bool { return topCandidates[i].size > topCandidates[j].size })
	n := opts.TopN
	if n > len(topCandidates) {
		n = len(topCandidates)
	}
	for i := 0; i < n; i++ {
		interesting[topCandidates[i].id] = struct{}{}
	}

	return e.expandToRoots(interesting, roots)
}

// expandToRoots performs reverse-BFS along inbound edges from the
// interesting set until every path reaches a GC root, so the reduced
// subgraph preserves every dominator path. Inbound adjacency is built on
// the fly by scanning all candidate parents' outbound references, per
// there is no persisted inbound-edge list, only
// inbound counts, so this walks the whole object space once per build.
func (e *dominatorEngine) expandToRoots(interesting map[ID32]struct{}, roots []GCRoot) (map[ID32]struct{}, error) {
	rootSet := make(map[ID32]struct{}, len(roots))
	for _, r := range roots {
		rootSet[r.ObjectID32] = struct{}{}
	}

	// Build a reverse-edge map for the whole object space once: for each
	// object, record which interesting-set members it points to. This is
	// the "scan outbound of all candidates" mechanism,
	// applied breadth-first until closure.
	frontier := make(map[ID32]struct{}, len(interesting))
	for id := range interesting {
		frontier[id] = struct{}{}
	}

	for len(frontier) > 0 {
		needsParent := map[ID32]struct{}{}
		for id := range frontier {
			if _, isRoot := rootSet[id]; isRoot {
				continue
			}
			needsParent[id] = struct{}{}
		}
		if len(needsParent) == 0 {
			break
		}
		newParents := map[ID32]struct{}{}
		err := e.store.StreamAll(func(obj *HeapObject) error {
			if obj.IsClassObject {
				return nil
			}
			if _, already := interesting[obj.ID32]; already {
				return nil
			}
			refs, err := e.store.References(obj)
			if err != nil {
				return err
			}
			for _, r := range refs {
				if _, want := needsParent[r.TargetID32]; want {
					newParents[obj.ID32] = struct{}{}
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(newParents) == 0 {
			break // no path to a root for the remaining frontier; stop expanding
		}
		for id := range newParents {
			interesting[id] = struct{}{}
		}
		frontier = newParents
	}
	return interesting, nil
}

// persistExactRetained writes which id32s have an exact retained size
// into the same retained index format, overwriting the approximate
// values for nodes the hybrid/exact pass covered. Called by the façade
// after BuildExact so subsequent retained(o) reads return the exact
// figure without the caller having to know which engine computed it.
func persistExactRetained(idxDir string, tree *dominatorTree) error {
	r, err := openIndexReader(filepath.Join(idxDir, "retained.idx"), magicRetained, retainedEntrySize)
	if err != nil {
		return err
	}
	count := r.Count()
	r.Close()

	w, err := createIndexWriter(filepath.Join(idxDir, "retained.idx")+".tmp", magicRetained, retainedEntrySize)
	if err != nil {
		return err
	}
	if err := w.preallocate(count); err != nil {
		w.Close()
		return err
	}

	src, err := openIndexReader(filepath.Join(idxDir, "retained.idx"), magicRetained, retainedEntrySize)
	if err != nil {
		w.Close()
		return err
	}
	defer src.Close()
	for i := uint64(0); i < count; i++ {
		raw, err := src.entry(i)
		if err != nil {
			w.Close()
			return err
		}
		if err := w.writeAtOffset(i, raw); err != nil {
			w.Close()
			return err
		}
	}
	for id, size := range tree.retainedSize {
		if err := w.writeAtOffset(uint64(id), encodeInt64Entry(size)); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return replaceFile(filepath.Join(idxDir, "retained.idx")+".tmp", filepath.Join(idxDir, "retained.idx"))
}

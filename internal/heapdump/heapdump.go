package heapdump

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btraceio/heapdump/pkg/utils"
)

// Span is the minimal tracing surface the engine depends on, so this
// package never imports go.opentelemetry.io/otel directly — the service
// layer (internal/service/heapdumpsvc) adapts a real otel tracer to this
// interface via pkg/telemetry's configured provider. Any no-op or test
// double works just as well.
type Span interface {
	End()
}

// Tracer starts spans around engine phases. A nil Tracer disables tracing
// entirely.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

type noopSpan struct{}

func (noopSpan) End() {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, Span) { return ctx, noopSpan{} }

// ProgressFunc receives in-band progress notifications during index and
// retained-size builds. It is called synchronously on the calling
// goroutine; this engine's concurrency model has no suspension points.
type ProgressFunc func(phase string, done, total uint64)

// Options configures Open. Zero value is not usable; use DefaultOptions.
type Options struct {
	// IndexDir is where the six index files live. Empty means
	// alongside the dump file, suffixed ".idx".
	IndexDir string

	LRUCapacity     int
	EagerRetained   bool
	HybridTopN      int
	LeakThresholdMB int

	Logger   utils.Logger
	Timer    *utils.Timer
	Tracer   Tracer
	Progress ProgressFunc
}

// DefaultOptions mirrors pkg/config's HeapEngineConfig defaults.
func DefaultOptions() Options {
	return Options{
		LRUCapacity:     100_000,
		EagerRetained:   false,
		HybridTopN:      1000,
		LeakThresholdMB: 1,
		Logger:          &utils.NullLogger{},
		Tracer:          noopTracer{},
	}
}

// HeapDump is the façade over an opened dump: it owns the dump
// file, all index readers/writers, the LRU-backed object store, and
// lazily computes prerequisite indexes on demand.
type HeapDump struct {
	opts Options

	file   *os.File
	header Header
	idxDir string

	classes     map[Address]*Class
	classByID32 map[int32]*Class

	objectsR   *indexReader
	objectMapR *indexReader
	classMapR  *indexReader
	gcRootsR   *indexReader
	inboundR   *indexReader
	retainedR  *indexReader

	roots []GCRoot
	store *objectStore

	dominators *dominatorTree
}

// Open builds or re-opens the on-disk indexes for path and returns a
// ready-to-query HeapDump. Caller must Close it.
func Open(ctx context.Context, path string, opts Options) (*HeapDump, error) {
	if opts.Logger == nil {
		opts.Logger = &utils.NullLogger{}
	}
	if opts.Tracer == nil {
		opts.Tracer = noopTracer{}
	}
	if opts.LRUCapacity <= 0 {
		opts.LRUCapacity = 100_000
	}
	idxDir := opts.IndexDir
	if idxDir == "" {
		idxDir = path + ".idx"
	}
	if err := os.MkdirAll(idxDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating index directory: %v", ErrIndexIOError, err)
	}

	ctx, span := opts.Tracer.Start(ctx, "heapdump.Open")
	defer span.End()

	d := &HeapDump{opts: opts, idxDir: idxDir}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	d.file = f

	if d.indexesExist() {
		if err := d.fastReopen(path); err == nil {
			return d, nil
		}
		opts.Logger.Warn("heapdump: existing index failed validation, rebuilding")
		d.closeReaders()
	}

	if err := d.build(path); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func (d *HeapDump) indexPaths() map[string]string {
	return map[string]string{
		"objects":   filepath.Join(d.idxDir, "objects.idx"),
		"objectmap": filepath.Join(d.idxDir, "objectmap.idx"),
		"classmap":  filepath.Join(d.idxDir, "classmap.idx"),
		"gcroots":   filepath.Join(d.idxDir, "gcroots.idx"),
		"inbound":   filepath.Join(d.idxDir, "inbound.idx"),
		"retained":  filepath.Join(d.idxDir, "retained.idx"),
	}
}

func (d *HeapDump) indexesExist() bool {
	for _, name := range []string{"objects", "objectmap", "classmap", "gcroots"} {
		if _, err := os.Stat(d.indexPaths()[name]); err != nil {
			return false
		}
	}
	return true
}

func (d *HeapDump) fastReopen(path string) error {
	paths := d.indexPaths()
	var err error
	d.objectsR, err = openIndexReader(paths["objects"], magicObjects, objectEntrySize)
	if err != nil {
		return err
	}
	d.objectMapR, err = openIndexReader(paths["objectmap"], magicObjectMap, objectMapEntrySize)
	if err != nil {
		return err
	}
	d.classMapR, err = openIndexReader(paths["classmap"], magicClassMap, classMapEntrySize)
	if err != nil {
		return err
	}
	d.gcRootsR, err = openIndexReader(paths["gcroots"], magicGCRoots, gcRootEntrySize)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(paths["inbound"]); statErr == nil {
		d.inboundR, _ = openIndexReader(paths["inbound"], magicInbound, inboundEntrySize)
	}
	if _, statErr := os.Stat(paths["retained"]); statErr == nil {
		d.retainedR, _ = openIndexReader(paths["retained"], magicRetained, retainedEntrySize)
	}

	p := newParser(path, d.idxDir, d.opts.Logger, d.opts.Timer)
	header, classes, classByID32, err := p.loadClassTable(d.classMapR, d.objectMapR)
	if err != nil {
		return err
	}
	d.header = header
	d.classes = classes
	d.classByID32 = classByID32

	if err := d.loadGCRoots(); err != nil {
		return err
	}
	return d.initStore()
}

func (d *HeapDump) build(path string) error {
	p := newParser(path, d.idxDir, d.opts.Logger, d.opts.Timer)
	artifacts, err := p.build()
	if err != nil {
		return err
	}
	d.header = artifacts.header
	d.classes = artifacts.classes
	d.classByID32 = artifacts.classByID32

	paths := d.indexPaths()
	d.objectsR, err = openIndexReader(paths["objects"], magicObjects, objectEntrySize)
	if err != nil {
		return err
	}
	d.objectMapR, err = openIndexReader(paths["objectmap"], magicObjectMap, objectMapEntrySize)
	if err != nil {
		return err
	}
	d.classMapR, err = openIndexReader(paths["classmap"], magicClassMap, classMapEntrySize)
	if err != nil {
		return err
	}
	d.gcRootsR, err = openIndexReader(paths["gcroots"], magicGCRoots, gcRootEntrySize)
	if err != nil {
		return err
	}
	if err := d.loadGCRoots(); err != nil {
		return err
	}
	if err := d.initStore(); err != nil {
		return err
	}

	if d.opts.EagerRetained {
		if err := d.ensureInboundIndex(); err != nil {
			return err
		}
		if err := d.ensureRetainedIndex(); err != nil {
			return err
		}
	}
	return nil
}

func (d *HeapDump) initStore() error {
	store, err := newObjectStore(d.file, d.header.IDSize, d.objectsR, d.objectMapR, d.classByID32, d.opts.LRUCapacity)
	if err != nil {
		return err
	}
	if d.retainedR != nil {
		store.setRetainedIndex(d.retainedR)
	}
	d.store = store
	return nil
}

func (d *HeapDump) loadGCRoots() error {
	n := d.gcRootsR.Count()
	roots := make([]GCRoot, 0, n)
	for i := uint64(0); i < n; i++ {
		raw, err := d.gcRootsR.entry(i)
		if err != nil {
			return err
		}
		roots = append(roots, decodeGCRootEntry(raw))
	}
	d.roots = roots
	return nil
}

func (d *HeapDump) closeReaders() {
	for _, r := range []*indexReader{d.objectsR, d.objectMapR, d.classMapR, d.gcRootsR, d.inboundR, d.retainedR} {
		if r != nil {
			r.Close()
		}
	}
	d.objectsR, d.objectMapR, d.classMapR, d.gcRootsR, d.inboundR, d.retainedR = nil, nil, nil, nil, nil, nil
}

// Close releases the dump file, all mmapped index regions, and the LRU,
// in reverse order of acquisition, per the scoped-acquisition
// policy.
func (d *HeapDump) Close() error {
	d.closeReaders()
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// IndexDir returns the directory holding this dump's on-disk index, so a
// caller that persisted it (alongside the source path) can reopen the
// same dump later without rebuilding.
func (d *HeapDump) IndexDir() string { return d.idxDir }

// ObjectByAddress resolves a raw heap address to a fully-formed
// HeapObject.
func (d *HeapDump) ObjectByAddress(addr Address) (*HeapObject, error) {
	return d.store.ByAddress(addr)
}

// ObjectByID32 resolves a dense id32 to a fully-formed HeapObject.
func (d *HeapDump) ObjectByID32(id ID32) (*HeapObject, error) {
	return d.store.ByID32(id)
}

// GCRoots returns the persisted GC root set.
func (d *HeapDump) GCRoots() []GCRoot { return d.roots }

// ClassByID32 resolves a class by its dense classId32.
func (d *HeapDump) ClassByID32(id int32) (*Class, bool) {
	c, ok := d.classByID32[id]
	return c, ok
}

func (d *HeapDump) ensureInboundIndex() error {
	if d.inboundR != nil {
		return nil
	}
	b := newInboundIndexBuilder(d.store, d.opts.Logger)
	if err := b.Build(d.idxDir, d.progressFor("inbound")); err != nil {
		return err
	}
	r, err := openIndexReader(filepath.Join(d.idxDir, "inbound.idx"), magicInbound, inboundEntrySize)
	if err != nil {
		return err
	}
	d.inboundR = r
	return nil
}

func (d *HeapDump) ensureRetainedIndex() error {
	if d.retainedR != nil {
		return nil
	}
	if err := d.ensureInboundIndex(); err != nil {
		return err
	}
	eng := newRetainedSizeEngine(d.store, d.inboundR, d.opts.Logger)
	if err := eng.BuildAll(d.idxDir, d.progressFor("retained")); err != nil {
		return err
	}
	r, err := openIndexReader(filepath.Join(d.idxDir, "retained.idx"), magicRetained, retainedEntrySize)
	if err != nil {
		return err
	}
	d.retainedR = r
	d.store.setRetainedIndex(r)
	return nil
}

func (d *HeapDump) progressFor(phase string) func(done, total uint64) {
	if d.opts.Progress == nil {
		return nil
	}
	return func(done, total uint64) { d.opts.Progress(phase, done, total) }
}

// RetainedSize ensures the inbound and retained indexes exist, then
// returns the (possibly approximate) retained size of o, per
// §4.8's "compute prerequisites on demand" contract.
func (d *HeapDump) RetainedSize(ctx context.Context, o ID32) (int64, error) {
	_, span := d.opts.Tracer.Start(ctx, "heapdump.RetainedSize")
	defer span.End()
	if err := d.ensureRetainedIndex(); err != nil {
		return 0, err
	}
	obj, err := d.store.ByID32(o)
	if err != nil {
		return 0, err
	}
	return obj.RetainedSize, nil
}

// BuildDominatorTree runs the exact subgraph dominator algorithm over s,
// persisting exact retained sizes for every member and enabling
// subsequent DominatedBy queries.
func (d *HeapDump) BuildDominatorTree(ctx context.Context, s map[ID32]struct{}) error {
	_, span := d.opts.Tracer.Start(ctx, "heapdump.BuildDominatorTree")
	defer span.End()

	var rootsInS []ID32
	for _, r := range d.roots {
		if _, ok := s[r.ObjectID32]; ok {
			rootsInS = append(rootsInS, r.ObjectID32)
		}
	}
	eng := newDominatorEngine(d.store, d.opts.Logger)
	tree, err := eng.BuildExact(s, rootsInS)
	if err != nil {
		return err
	}
	if err := d.ensureRetainedIndex(); err == nil {
		_ = persistExactRetained(d.idxDir, tree)
	}
	d.dominators = tree
	return nil
}

// BuildHybridDominatorTree constructs the interesting set described in
// the hybrid-mode interesting set and runs exact dominators over it.
func (d *HeapDump) BuildHybridDominatorTree(ctx context.Context, globPatterns []string) error {
	if err := d.ensureRetainedIndex(); err != nil {
		return err
	}
	eng := newDominatorEngine(d.store, d.opts.Logger)
	opts := HybridOptions{
		TopN:            d.opts.HybridTopN,
		LeakThresholdMB: d.opts.LeakThresholdMB,
		GlobPatterns:    globPatterns,
	}
	s, err := eng.BuildInterestingSet(opts, d.retainedR, d.roots, d.classByID32)
	if err != nil {
		return err
	}
	return d.BuildDominatorTree(ctx, s)
}

// DominatedBy returns the id32s immediately dominated by o. Requires a
// prior BuildDominatorTree/BuildHybridDominatorTree call; returns empty
// otherwise.
func (d *HeapDump) DominatedBy(o ID32) []ID32 {
	if d.dominators == nil {
		return nil
	}
	return d.dominators.DominatedBy(o)
}

// ExactRetainedSize returns the retained size computed by the most
// recent dominator-tree build, if any.
func (d *HeapDump) ExactRetainedSize(o ID32) (int64, bool) {
	if d.dominators == nil {
		return 0, false
	}
	return d.dominators.RetainedSize(o)
}

// PathToGCRoot finds the shortest path from any GC root to o. No
// prerequisite computation is required.
func (d *HeapDump) PathToGCRoot(ctx context.Context, o ID32) ([]PathStep, error) {
	_, span := d.opts.Tracer.Start(ctx, "heapdump.PathToGCRoot")
	defer span.End()
	f := newPathFinder(d.store)
	return f.FindPath(d.roots, o)
}

// References returns the outbound edges of o.
func (d *HeapDump) References(o *HeapObject) ([]Reference, error) {
	return d.store.References(o)
}

// StreamAll iterates every object in id32 order without touching the LRU.
func (d *HeapDump) StreamAll(fn func(*HeapObject) error) error {
	return d.store.StreamAll(fn)
}

// Header returns the parsed HPROF header.
func (d *HeapDump) Header() Header { return d.header }

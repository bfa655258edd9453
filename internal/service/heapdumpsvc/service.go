// Package heapdumpsvc exposes internal/heapdump as a gRPC service: one
// unary RPC per query the façade supports (retained size, dominator-tree
// build, path-to-GC-root, object lookup by address). It is the network
// front-end query service, sitting in front
// of the same engine the CLI and the batch analyzer drive directly.
package heapdumpsvc

import (
	"context"
	"fmt"

	"github.com/btraceio/heapdump/internal/catalog"
	"github.com/btraceio/heapdump/internal/heapdump"
	"github.com/btraceio/heapdump/pkg/utils"
)

// Server implements the heap dump query RPCs. It opens (or re-opens, via
// the façade's on-disk index fast path) a dump for the lifetime of each
// call; Catalog, if set, is consulted first to resolve the index directory
// for a dump path so repeat calls against the same dump skip straight to
// the fast-reopen path instead of guessing a default IndexDir.
type Server struct {
	Opts    heapdump.Options
	Catalog catalog.Store
	Logger  utils.Logger
}

// NewServer builds a Server. catalogStore may be nil, in which case every
// call uses opts' default IndexDir resolution.
func NewServer(opts heapdump.Options, catalogStore catalog.Store, logger utils.Logger) *Server {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Server{Opts: opts, Catalog: catalogStore, Logger: logger}
}

func (s *Server) openDump(ctx context.Context, dumpPath string) (*heapdump.HeapDump, error) {
	opts := s.Opts
	if s.Catalog != nil {
		if rec, ok, err := s.Catalog.Lookup(ctx, dumpPath); err == nil && ok && rec.IndexDir != "" {
			opts.IndexDir = rec.IndexDir
		}
	}
	return heapdump.Open(ctx, dumpPath, opts)
}

// RetainedSize returns the retained size of one object, preferring an
// already-computed exact value over the approximate estimate.
func (s *Server) RetainedSize(ctx context.Context, req *RetainedSizeRequest) (*RetainedSizeResponse, error) {
	dump, err := s.openDump(ctx, req.DumpPath)
	if err != nil {
		return nil, fmt.Errorf("heapdumpsvc: open %s: %w", req.DumpPath, err)
	}
	defer dump.Close()

	id := heapdump.ID32(req.ObjectID)
	if exact, ok := dump.ExactRetainedSize(id); ok {
		return &RetainedSizeResponse{RetainedSize: exact, Exact: true}, nil
	}
	approx, err := dump.RetainedSize(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("heapdumpsvc: retained size: %w", err)
	}
	return &RetainedSizeResponse{RetainedSize: approx, Exact: false}, nil
}

// Dominators builds a (hybrid, glob-scoped) dominator tree over the dump.
func (s *Server) Dominators(ctx context.Context, req *DominatorsRequest) (*DominatorsResponse, error) {
	dump, err := s.openDump(ctx, req.DumpPath)
	if err != nil {
		return nil, fmt.Errorf("heapdumpsvc: open %s: %w", req.DumpPath, err)
	}
	defer dump.Close()

	if err := dump.BuildHybridDominatorTree(ctx, req.Globs); err != nil {
		return nil, fmt.Errorf("heapdumpsvc: build dominator tree: %w", err)
	}
	return &DominatorsResponse{Built: true}, nil
}

// PathToGcRoot returns the retention path from one object to a GC root.
func (s *Server) PathToGcRoot(ctx context.Context, req *PathToGCRootRequest) (*PathToGCRootResponse, error) {
	dump, err := s.openDump(ctx, req.DumpPath)
	if err != nil {
		return nil, fmt.Errorf("heapdumpsvc: open %s: %w", req.DumpPath, err)
	}
	defer dump.Close()

	steps, err := dump.PathToGCRoot(ctx, heapdump.ID32(req.ObjectID))
	if err != nil {
		return nil, fmt.Errorf("heapdumpsvc: path to gc root: %w", err)
	}
	resp := &PathToGCRootResponse{Found: len(steps) > 0}
	for _, st := range steps {
		resp.Steps = append(resp.Steps, PathStepMsg{ObjectID: uint32(st.ObjectID32), FieldName: st.FieldName})
	}
	return resp, nil
}

// ObjectByAddress looks an object up by its original heap address.
func (s *Server) ObjectByAddress(ctx context.Context, req *ObjectByAddressRequest) (*ObjectByAddressResponse, error) {
	dump, err := s.openDump(ctx, req.DumpPath)
	if err != nil {
		return nil, fmt.Errorf("heapdumpsvc: open %s: %w", req.DumpPath, err)
	}
	defer dump.Close()

	obj, err := dump.ObjectByAddress(heapdump.Address(req.Address))
	if err != nil {
		return &ObjectByAddressResponse{Found: false}, nil
	}

	className := "<unknown>"
	if cls, ok := dump.ClassByID32(obj.ClassID32); ok {
		className = cls.Name
	}
	return &ObjectByAddressResponse{
		Found:       true,
		ObjectID:    uint32(obj.ID32),
		ClassName:   className,
		ShallowSize: obj.ShallowSize,
	}, nil
}

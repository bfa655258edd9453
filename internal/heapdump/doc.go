// Package heapdump implements an offline analysis engine for HPROF-format
// binary heap snapshots.
//
// The engine is organized as a dump-to-index pipeline plus a handful of
// graph algorithms layered on top of it:
//
//   - reader.go        positioned binary cursor over the dump file
//   - types.go          record tags, entities (Class, Field, HeapObject, GCRoot)
//   - index_format.go   on-disk index header, writer, reader (mmap-backed)
//   - parser.go         two-pass HPROF walker that builds the four structural indexes
//   - object_store.go   lazy object materialisation with a bounded LRU cache
//   - inbound_index.go  inbound-reference-count index builder
//   - retained_size.go  approximate retained-size engine (BFS, stops at shared objects)
//   - dominator.go      exact Lengauer-Tarjan dominators over a selected subgraph, plus hybrid mode
//   - path_to_root.go   shortest path from a GC root to a target object
//   - heapdump.go       façade binding all of the above
//
// A typical caller only touches heapdump.go:
//
//	dump, err := heapdump.Open(ctx, "big.hprof", heapdump.DefaultOptions())
//	defer dump.Close()
//	obj, _ := dump.ObjectByAddress(addr)
//	retained, _ := dump.RetainedSize(ctx, obj.ID32)
//	path, _ := dump.PathToGCRoot(ctx, obj.ID32)
package heapdump

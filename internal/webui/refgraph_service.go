// Package webui provides the web UI server for performance analysis.
package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/btraceio/heapdump/internal/heapdump"
	"github.com/btraceio/heapdump/pkg/filter"
	"github.com/btraceio/heapdump/pkg/model"
)

// RefGraphService answers object-graph queries (fields, GC roots,
// retainers, biggest-by-class) for a task by opening its heap dump
// through internal/heapdump directly, rather than any separately
// serialized graph. A task's dump path and index directory are read
// from the heap_analysis.json report the java-heap analyzer writes
// alongside it.
type RefGraphService struct {
	dataDir string

	mu           sync.RWMutex
	cache        map[string]*heapdump.HeapDump
	maxCacheSize int
}

// NewRefGraphService creates a new RefGraphService.
func NewRefGraphService(dataDir string) *RefGraphService {
	return &RefGraphService{
		dataDir:      dataDir,
		cache:        make(map[string]*heapdump.HeapDump),
		maxCacheSize: 3, // Keep at most 3 dumps open at once
	}
}

// ObjectFieldDetail describes one field of an object for the web UI's
// lazy tree expansion. Only reference-typed fields are populated: the
// on-disk index records outbound object edges, not primitive values.
type ObjectFieldDetail struct {
	Name         string
	Type         string
	Value        interface{}
	RefID        uint64
	RefClass     string
	ShallowSize  int64
	RetainedSize int64
	HasChildren  bool
}

// BiggestObject is one entry in a per-class biggest-objects listing.
type BiggestObject struct {
	ObjectID     uint64
	ClassName    string
	ShallowSize  int64
	RetainedSize int64
}

// ClassSummary aggregates every instance of one class in the dump: how
// many there are and their combined shallow/retained footprint. Category
// comes from pkg/filter's JDK/framework/application/business
// classification, so a UI can group or fade out obvious noise (JDK
// collection internals, Netty pool buffers) without hiding it entirely.
type ClassSummary struct {
	ClassName     string `json:"class_name"`
	Category      string `json:"category"`
	InstanceCount int64  `json:"instance_count"`
	TotalShallow  int64  `json:"total_shallow"`
	TotalRetained int64  `json:"total_retained"`
	Filtered      bool   `json:"filtered"`
}

// GCRootPathStep is one hop in a path from an object back to a GC root.
type GCRootPathStep struct {
	ObjectID  string `json:"object_id"`
	ClassName string `json:"class_name"`
	FieldName string `json:"field_name,omitempty"`
}

// GCRootPath is a full object-to-root path.
type GCRootPath struct {
	Steps []GCRootPathStep `json:"steps"`
}

// GCRootClassSummary groups GC roots by the class of the rooted object,
// the way IntelliJ's heap dump viewer presents them.
type GCRootClassSummary struct {
	ClassName string `json:"class_name"`
	Kind      string `json:"kind"`
	Count     int    `json:"count"`
}

// GCRootsSummary is the response for the roots-grouped-by-class view.
type GCRootsSummary struct {
	TotalRoots int                  `json:"total_roots"`
	ByClass    []GCRootClassSummary `json:"by_class"`
}

// GCRootInfo describes a single GC root.
type GCRootInfo struct {
	ObjectID    string `json:"object_id"`
	ClassName   string `json:"class_name"`
	Kind        string `json:"kind"`
	ShallowSize int64  `json:"shallow_size"`
}

// RetainedObjectInfo is one object reachable from a GC root.
type RetainedObjectInfo struct {
	ObjectID    string `json:"object_id"`
	ClassName   string `json:"class_name"`
	ShallowSize int64  `json:"shallow_size"`
}

// ObjectRetainerInfo represents information about an object that retains another object.
type ObjectRetainerInfo struct {
	ObjectID     string `json:"object_id"`
	ClassName    string `json:"class_name"`
	FieldName    string `json:"field_name"`
	ShallowSize  int64  `json:"shallow_size"`
	RetainedSize int64  `json:"retained_size"`
}

// GetObjectFields returns the fields of a specific object for tree expansion.
// This is the main API for lazy loading child objects in the Biggest Objects view.
func (s *RefGraphService) GetObjectFields(taskID string, objectIDStr string) ([]*ObjectFieldDetail, error) {
	dump, err := s.getOrOpenDump(taskID)
	if err != nil {
		return nil, err
	}

	obj, err := s.resolveObject(dump, objectIDStr)
	if err != nil {
		return nil, err
	}

	refs, err := dump.References(obj)
	if err != nil {
		return nil, fmt.Errorf("reading fields: %w", err)
	}

	fields := make([]*ObjectFieldDetail, 0, len(refs))
	for _, ref := range refs {
		target, err := dump.ObjectByID32(ref.TargetID32)
		if err != nil {
			continue
		}
		className := classNameForObject(dump, target)
		fields = append(fields, &ObjectFieldDetail{
			Name:         ref.FieldName,
			Type:         "object",
			RefID:        uint64(target.Address),
			RefClass:     className,
			ShallowSize:  target.ShallowSize,
			RetainedSize: retainedSizeOf(dump, target),
			HasChildren:  !target.IsClassObject,
		})
	}
	return fields, nil
}

// GetObjectInfo returns basic information about an object.
func (s *RefGraphService) GetObjectInfo(taskID string, objectIDStr string) (*ObjectFieldDetail, error) {
	dump, err := s.getOrOpenDump(taskID)
	if err != nil {
		return nil, err
	}

	obj, err := s.resolveObject(dump, objectIDStr)
	if err != nil {
		return nil, err
	}

	refs, _ := dump.References(obj)
	return &ObjectFieldDetail{
		RefID:        uint64(obj.Address),
		RefClass:     classNameForObject(dump, obj),
		ShallowSize:  obj.ShallowSize,
		RetainedSize: retainedSizeOf(dump, obj),
		HasChildren:  len(refs) > 0,
	}, nil
}

// GetBiggestObjectsByClass returns the biggest objects for a specific class.
// It scans every object in the dump, since the index has no by-class
// lookup; acceptable for an on-demand UI query, the same tradeoff the
// top-retained CLI query makes.
func (s *RefGraphService) GetBiggestObjectsByClass(taskID string, className string, topN int, sortBy string) ([]*BiggestObject, error) {
	dump, err := s.getOrOpenDump(taskID)
	if err != nil {
		return nil, err
	}

	if topN <= 0 {
		topN = 50
	}
	if sortBy == "" {
		sortBy = "retained"
	}

	var matches []*BiggestObject
	err = dump.StreamAll(func(o *heapdump.HeapObject) error {
		if o.IsClassObject {
			return nil
		}
		cls, ok := dump.ClassByID32(o.ClassID32)
		if !ok || cls.Name != className {
			return nil
		}
		matches = append(matches, &BiggestObject{
			ObjectID:     uint64(o.Address),
			ClassName:    cls.Name,
			ShallowSize:  o.ShallowSize,
			RetainedSize: retainedSizeOf(dump, o),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning for class %s: %w", className, err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if sortBy == "shallow" {
			return matches[i].ShallowSize > matches[j].ShallowSize
		}
		return matches[i].RetainedSize > matches[j].RetainedSize
	})
	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches, nil
}

// GetTopClasses aggregates every object in the dump by class and returns
// the largest classes by total retained (or shallow) size, annotated with
// pkg/filter's category and its ShouldFilterTopLevel verdict. When
// excludeFiltered is set, container/proxy/lambda classes that filter
// flags for the "Biggest Objects" view are dropped from the result
// instead of just being labeled, mirroring how a desktop heap-dump
// browser lets a user toggle JDK noise out of the top-classes list.
func (s *RefGraphService) GetTopClasses(taskID string, topN int, sortBy string, excludeFiltered bool) ([]*ClassSummary, error) {
	dump, err := s.getOrOpenDump(taskID)
	if err != nil {
		return nil, err
	}

	if topN <= 0 {
		topN = 50
	}
	if sortBy == "" {
		sortBy = "retained"
	}

	byClass := make(map[string]*ClassSummary)
	err = dump.StreamAll(func(o *heapdump.HeapObject) error {
		if o.IsClassObject {
			return nil
		}
		cls, ok := dump.ClassByID32(o.ClassID32)
		if !ok {
			return nil
		}
		cs, ok := byClass[cls.Name]
		if !ok {
			cs = &ClassSummary{
				ClassName: cls.Name,
				Category:  filter.Classify(cls.Name).String(),
				Filtered:  filter.ShouldFilterTopLevel(cls.Name),
			}
			byClass[cls.Name] = cs
		}
		cs.InstanceCount++
		cs.TotalShallow += o.ShallowSize
		cs.TotalRetained += retainedSizeOf(dump, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("aggregating class summary: %w", err)
	}

	summaries := make([]*ClassSummary, 0, len(byClass))
	for _, cs := range byClass {
		if excludeFiltered && cs.Filtered {
			continue
		}
		summaries = append(summaries, cs)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if sortBy == "shallow" {
			return summaries[i].TotalShallow > summaries[j].TotalShallow
		}
		if sortBy == "count" {
			return summaries[i].InstanceCount > summaries[j].InstanceCount
		}
		return summaries[i].TotalRetained > summaries[j].TotalRetained
	})
	if len(summaries) > topN {
		summaries = summaries[:topN]
	}
	return summaries, nil
}

// GetGCRootPaths returns the path from an object back to a GC root.
// internal/heapdump only tracks the single shortest such path, so
// maxPaths beyond 1 has no effect; maxDepth truncates a path that is
// longer than the caller wants to render.
func (s *RefGraphService) GetGCRootPaths(taskID string, objectIDStr string, maxPaths int, maxDepth int) ([]GCRootPath, error) {
	dump, err := s.getOrOpenDump(taskID)
	if err != nil {
		return nil, err
	}

	obj, err := s.resolveObject(dump, objectIDStr)
	if err != nil {
		return nil, err
	}

	if maxDepth <= 0 {
		maxDepth = 15
	}

	steps, err := dump.PathToGCRoot(context.Background(), obj.ID32)
	if err != nil {
		return nil, fmt.Errorf("finding path to gc root: %w", err)
	}
	if len(steps) == 0 {
		return nil, nil
	}
	if len(steps) > maxDepth {
		steps = steps[len(steps)-maxDepth:]
	}

	path := GCRootPath{Steps: make([]GCRootPathStep, 0, len(steps))}
	for _, step := range steps {
		className := "<unknown>"
		if o, err := dump.ObjectByID32(step.ObjectID32); err == nil {
			className = classNameForObject(dump, o)
		}
		path.Steps = append(path.Steps, GCRootPathStep{
			ObjectID:  formatObjectID(uint64(step.ObjectID32)),
			ClassName: className,
			FieldName: step.FieldName,
		})
	}
	return []GCRootPath{path}, nil
}

// GetGCRootsSummary groups the dump's GC roots by the class of the
// rooted object.
func (s *RefGraphService) GetGCRootsSummary(taskID string) (*GCRootsSummary, error) {
	dump, err := s.getOrOpenDump(taskID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]*GCRootClassSummary)
	roots := dump.GCRoots()
	for _, root := range roots {
		className := "<unknown>"
		if o, err := dump.ObjectByID32(root.ObjectID32); err == nil {
			className = classNameForObject(dump, o)
		}
		key := className + "|" + root.Kind.String()
		entry, ok := counts[key]
		if !ok {
			entry = &GCRootClassSummary{ClassName: className, Kind: root.Kind.String()}
			counts[key] = entry
		}
		entry.Count++
	}

	summary := &GCRootsSummary{TotalRoots: len(roots), ByClass: make([]GCRootClassSummary, 0, len(counts))}
	for _, entry := range counts {
		summary.ByClass = append(summary.ByClass, *entry)
	}
	sort.Slice(summary.ByClass, func(i, j int) bool { return summary.ByClass[i].Count > summary.ByClass[j].Count })
	return summary, nil
}

// GetGCRootsList returns every GC root with its object info.
func (s *RefGraphService) GetGCRootsList(taskID string) ([]*GCRootInfo, error) {
	dump, err := s.getOrOpenDump(taskID)
	if err != nil {
		return nil, err
	}

	roots := dump.GCRoots()
	result := make([]*GCRootInfo, 0, len(roots))
	for _, root := range roots {
		info := &GCRootInfo{
			ObjectID: formatObjectID(uint64(root.ObjectID32)),
			Kind:     root.Kind.String(),
		}
		if o, err := dump.ObjectByID32(root.ObjectID32); err == nil {
			info.ClassName = classNameForObject(dump, o)
			info.ShallowSize = o.ShallowSize
			info.ObjectID = formatObjectID(uint64(o.Address))
		} else {
			info.ClassName = "<unknown>"
		}
		result = append(result, info)
	}
	return result, nil
}

// GetRetainedObjectsByGCRoot walks the objects reachable from a GC root,
// breadth-first, up to maxObjects. This approximates "retained by this
// root" without requiring a dominator tree to already be built.
func (s *RefGraphService) GetRetainedObjectsByGCRoot(taskID string, objectIDStr string, maxObjects int) ([]*RetainedObjectInfo, error) {
	dump, err := s.getOrOpenDump(taskID)
	if err != nil {
		return nil, err
	}

	obj, err := s.resolveObject(dump, objectIDStr)
	if err != nil {
		return nil, err
	}

	if maxObjects <= 0 {
		maxObjects = 50
	}

	visited := map[heapdump.ID32]bool{obj.ID32: true}
	queue := []*heapdump.HeapObject{obj}
	result := make([]*RetainedObjectInfo, 0, maxObjects)

	for len(queue) > 0 && len(result) < maxObjects {
		cur := queue[0]
		queue = queue[1:]

		refs, err := dump.References(cur)
		if err != nil {
			continue
		}
		for _, ref := range refs {
			if visited[ref.TargetID32] {
				continue
			}
			visited[ref.TargetID32] = true

			target, err := dump.ObjectByID32(ref.TargetID32)
			if err != nil {
				continue
			}
			result = append(result, &RetainedObjectInfo{
				ObjectID:    formatObjectID(uint64(target.Address)),
				ClassName:   classNameForObject(dump, target),
				ShallowSize: target.ShallowSize,
			})
			if len(result) >= maxObjects {
				break
			}
			queue = append(queue, target)
		}
	}
	return result, nil
}

// GetRetainers returns the objects that hold a reference to objectIDStr.
// The index has no reverse-edge list (only inbound *counts*, used for
// retained-size pruning), so this scans every object's outbound
// references once; fine for an on-demand UI query, not for a hot path.
func (s *RefGraphService) GetRetainers(taskID string, objectIDStr string, maxRetainers int) ([]*ObjectRetainerInfo, error) {
	dump, err := s.getOrOpenDump(taskID)
	if err != nil {
		return nil, err
	}

	obj, err := s.resolveObject(dump, objectIDStr)
	if err != nil {
		return nil, err
	}

	if maxRetainers <= 0 {
		maxRetainers = 20
	}

	result := make([]*ObjectRetainerInfo, 0, maxRetainers)
	err = dump.StreamAll(func(o *heapdump.HeapObject) error {
		if len(result) >= maxRetainers || o.IsClassObject {
			return nil
		}
		refs, err := dump.References(o)
		if err != nil {
			return nil
		}
		for _, ref := range refs {
			if ref.TargetID32 != obj.ID32 {
				continue
			}
			result = append(result, &ObjectRetainerInfo{
				ObjectID:     formatObjectID(uint64(o.Address)),
				ClassName:    classNameForObject(dump, o),
				FieldName:    ref.FieldName,
				ShallowSize:  o.ShallowSize,
				RetainedSize: retainedSizeOf(dump, o),
			})
			break
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning for retainers: %w", err)
	}
	return result, nil
}

// HasRefGraph reports whether a task's dump can be reopened for live
// queries, i.e. whether its analysis report recorded a dump path.
func (s *RefGraphService) HasRefGraph(taskID string) bool {
	_, _, err := s.dumpLocation(taskID)
	return err == nil
}

// ClearCache closes and evicts every cached dump handle.
func (s *RefGraphService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.cache {
		d.Close()
	}
	s.cache = make(map[string]*heapdump.HeapDump)
}

// getOrOpenDump returns a cached dump handle for taskID, opening and
// caching one if needed.
func (s *RefGraphService) getOrOpenDump(taskID string) (*heapdump.HeapDump, error) {
	s.mu.RLock()
	dump, ok := s.cache[taskID]
	s.mu.RUnlock()
	if ok {
		return dump, nil
	}
	return s.openDump(taskID)
}

func (s *RefGraphService) openDump(taskID string) (*heapdump.HeapDump, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dump, ok := s.cache[taskID]; ok {
		return dump, nil
	}

	dumpPath, indexDir, err := s.dumpLocation(taskID)
	if err != nil {
		return nil, err
	}

	opts := heapdump.DefaultOptions()
	opts.IndexDir = indexDir
	dump, err := heapdump.Open(context.Background(), dumpPath, opts)
	if err != nil {
		return nil, fmt.Errorf("opening heap dump for task %s: %w", taskID, err)
	}

	if len(s.cache) >= s.maxCacheSize {
		for k, evicted := range s.cache {
			evicted.Close()
			delete(s.cache, k)
			break // evict just one
		}
	}
	s.cache[taskID] = dump
	return dump, nil
}

// dumpLocation reads heap_analysis.json from the task directory to
// recover the original dump path and its index directory.
func (s *RefGraphService) dumpLocation(taskID string) (dumpPath, indexDir string, err error) {
	taskDir := s.getTaskDir(taskID)
	reportFile := filepath.Join(taskDir, "heap_analysis.json")

	data, err := os.ReadFile(reportFile)
	if err != nil {
		return "", "", fmt.Errorf("no heap analysis report for task %s: %w", taskID, err)
	}

	var report model.HeapAnalysisData
	if err := json.Unmarshal(data, &report); err != nil {
		return "", "", fmt.Errorf("parsing heap analysis report: %w", err)
	}
	if report.DumpPath == "" {
		return "", "", fmt.Errorf("heap analysis report for task %s has no dump path", taskID)
	}
	if _, err := os.Stat(report.DumpPath); err != nil {
		return "", "", fmt.Errorf("dump file for task %s is no longer at %s: %w", taskID, report.DumpPath, err)
	}
	return report.DumpPath, report.IndexDir, nil
}

// getTaskDir returns the task directory path.
func (s *RefGraphService) getTaskDir(taskID string) string {
	if taskID == "" {
		return s.dataDir
	}
	return filepath.Join(s.dataDir, taskID)
}

func (s *RefGraphService) resolveObject(dump *heapdump.HeapDump, objectIDStr string) (*heapdump.HeapObject, error) {
	addr, err := parseObjectID(objectIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid object ID: %w", err)
	}
	obj, err := dump.ObjectByAddress(heapdump.Address(addr))
	if err != nil {
		return nil, fmt.Errorf("object not found: %s", objectIDStr)
	}
	return obj, nil
}

func classNameForObject(dump *heapdump.HeapDump, o *heapdump.HeapObject) string {
	if cls, ok := dump.ClassByID32(o.ClassID32); ok {
		return cls.Name
	}
	return "<unknown>"
}

// retainedSizeOf returns the exact retained size if a dominator tree has
// already been built over o, otherwise falls back to the approximate
// BFS-based retained size.
func retainedSizeOf(dump *heapdump.HeapDump, o *heapdump.HeapObject) int64 {
	if size, ok := dump.ExactRetainedSize(o.ID32); ok {
		return size
	}
	if size, err := dump.RetainedSize(context.Background(), o.ID32); err == nil {
		return size
	}
	return o.ShallowSize
}

// parseObjectID parses an object ID from string (supports hex format like "0x12345").
func parseObjectID(s string) (uint64, error) {
	// Remove "0x" prefix if present
	if len(s) > 2 && s[:2] == "0x" {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	// Try hex first, then decimal
	if id, err := strconv.ParseUint(s, 16, 64); err == nil {
		return id, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// formatObjectID formats an object ID as a hex string.
func formatObjectID(id uint64) string {
	return fmt.Sprintf("0x%x", id)
}

package model

// AnalysisDataType identifies the shape of AnalysisResponse.Data so a
// formatter registry can dispatch without a type switch over every analyzer.
type AnalysisDataType int

const (
	DataTypeUnknown AnalysisDataType = iota
	DataTypeCPUProfiling
	DataTypeHeapDump
	DataTypeMemoryLeak
	DataTypeTracing
	DataTypePProfBatch
	DataTypePProfCPU
	DataTypePProfHeap
	DataTypePProfGoroutine
	DataTypePProfBlock
)

func (t AnalysisDataType) String() string {
	switch t {
	case DataTypeCPUProfiling:
		return "cpu_profiling"
	case DataTypeHeapDump:
		return "heap_dump"
	case DataTypeMemoryLeak:
		return "memory_leak"
	case DataTypeTracing:
		return "tracing"
	case DataTypePProfBatch:
		return "pprof_batch"
	case DataTypePProfCPU:
		return "pprof_cpu"
	case DataTypePProfHeap:
		return "pprof_heap"
	case DataTypePProfGoroutine:
		return "pprof_goroutine"
	case DataTypePProfBlock:
		return "pprof_block"
	default:
		return "unknown"
	}
}

// AnalysisData is implemented by every concrete *Data payload an analyzer
// attaches to AnalysisResponse.Data, so formatters can render any of them
// generically before falling back to a type-specific rendering.
type AnalysisData interface {
	Type() AnalysisDataType
	Summary() map[string]interface{}
	TopItems() []TopItem
}

// TopItem is one row of a formatter's "top N" table: a named quantity with
// its share of the total and a value in the data's native unit.
type TopItem struct {
	Name       string                 `json:"name"`
	Value      int64                  `json:"value"`
	Percentage float64                `json:"percentage"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// OutputFile describes one artifact an analyzer wrote to the task directory.
type OutputFile struct {
	Name        string `json:"name"`
	LocalPath   string `json:"local_path"`
	COSKey      string `json:"cos_key"`
	ContentType string `json:"content_type"`
}

// CPUProfilingData is the result of a collapsed-stack CPU or allocation
// profile (java_cpu_analyzer.go, java_mem_analyzer.go).
type CPUProfilingData struct {
	FlameGraphFile string       `json:"flamegraph_file"`
	CallGraphFile  string       `json:"callgraph_file"`
	ThreadStats    []ThreadInfo `json:"thread_stats"`
	TopFuncs       TopFuncsMap  `json:"top_funcs"`
	TotalSamples   int64        `json:"total_samples"`
}

func (d *CPUProfilingData) Type() AnalysisDataType { return DataTypeCPUProfiling }

func (d *CPUProfilingData) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total_samples":   d.TotalSamples,
		"flamegraph_file": d.FlameGraphFile,
		"callgraph_file":  d.CallGraphFile,
		"thread_count":    len(d.ThreadStats),
	}
}

func (d *CPUProfilingData) TopItems() []TopItem {
	items := make([]TopItem, 0, len(d.TopFuncs))
	for name, v := range d.TopFuncs {
		items = append(items, TopItem{Name: name, Percentage: v.Self})
	}
	sortTopItemsByPercentage(items)
	return items
}

// HeapAnalysisData is the result of analyzing an HPROF heap dump.
type HeapAnalysisData struct {
	HeapReportFile string `json:"heap_report_file"`
	HistogramFile  string `json:"histogram_file"`

	// DumpPath and IndexDir locate the original .hprof file and its
	// on-disk index so a later process (the web UI, a gRPC query) can
	// reopen the same dump without re-parsing it from scratch.
	DumpPath string `json:"dump_path,omitempty"`
	IndexDir string `json:"index_dir,omitempty"`

	Format    string `json:"format,omitempty"`
	IDSize    int    `json:"id_size,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	TotalClasses   int   `json:"total_classes"`
	TotalInstances int64 `json:"total_instances"`
	TotalHeapSize  int64 `json:"total_heap_size"`
	HeapSizeHuman  string `json:"heap_size_human"`

	LiveBytes   int64 `json:"live_bytes,omitempty"`
	LiveObjects int64 `json:"live_objects,omitempty"`

	TopClasses        []HeapClassStats                  `json:"top_classes"`
	BiggestObjects    []HeapBiggestObject                `json:"biggest_objects,omitempty"`
	ReferenceGraphs   map[string]*HeapReferenceGraph     `json:"reference_graphs,omitempty"`
	BusinessRetainers map[string][]HeapBusinessRetainer  `json:"business_retainers,omitempty"`
}

func (d *HeapAnalysisData) Type() AnalysisDataType { return DataTypeHeapDump }

func (d *HeapAnalysisData) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total_classes":   d.TotalClasses,
		"total_instances": d.TotalInstances,
		"total_heap_size": d.TotalHeapSize,
		"heap_size_human": d.HeapSizeHuman,
	}
}

func (d *HeapAnalysisData) TopItems() []TopItem {
	items := make([]TopItem, 0, len(d.TopClasses))
	for _, cls := range d.TopClasses {
		items = append(items, TopItem{
			Name:       cls.ClassName,
			Value:      cls.TotalSize,
			Percentage: cls.Percentage,
			Extra:      map[string]interface{}{"instance_count": cls.InstanceCount},
		})
	}
	return items
}

// HeapClassStats is one row of the class histogram (akin to jmap -histo).
type HeapClassStats struct {
	ClassName     string        `json:"class_name"`
	InstanceCount int64         `json:"instance_count"`
	TotalSize     int64         `json:"total_size"`
	Percentage    float64       `json:"percentage"`
	RetainedSize  int64         `json:"retained_size,omitempty"`
	Retainers     []HeapRetainer `json:"retainers,omitempty"`
	GCRootPaths   []*GCRootPath  `json:"gc_root_paths,omitempty"`
}

// HeapRetainer names one object or field chain holding a class's instances live.
type HeapRetainer struct {
	RetainerClass string  `json:"retainer_class"`
	FieldName     string  `json:"field_name,omitempty"`
	RetainedSize  int64   `json:"retained_size"`
	RetainedCount int64   `json:"retained_count"`
	Percentage    float64 `json:"percentage"`
	Depth         int     `json:"depth"`
}

// GCRootPath is the chain of field references from a GC root down to a class.
type GCRootPath struct {
	RootType string            `json:"root_type"`
	Depth    int               `json:"depth"`
	Path     []*GCRootPathNode `json:"path"`
}

// GCRootPathNode is one hop in a GCRootPath.
type GCRootPathNode struct {
	ClassName string `json:"class_name"`
	FieldName string `json:"field_name,omitempty"`
	Size      int64  `json:"size"`
}

// HeapBusinessRetainer is a root-cause candidate: a non-JDK/non-framework
// class retaining a meaningful share of the heap.
type HeapBusinessRetainer struct {
	ClassName     string  `json:"class_name"`
	FieldPath     string  `json:"field_path,omitempty"`
	RetainedSize  int64   `json:"retained_size"`
	RetainedCount int64   `json:"retained_count"`
	Percentage    float64 `json:"percentage"`
	Depth         int     `json:"depth"`
	IsGCRoot      bool    `json:"is_gc_root"`
	GCRootType    string  `json:"gc_root_type,omitempty"`
}

// HeapReferenceGraph is a small reference-graph slice for visualization,
// seeded from a single class's instances.
type HeapReferenceGraph struct {
	ClassName string               `json:"class_name"`
	Nodes     []HeapReferenceNode  `json:"nodes"`
	Edges     []HeapReferenceEdge  `json:"edges"`
}

// HeapReferenceNode is one object in a HeapReferenceGraph.
type HeapReferenceNode struct {
	ID           string `json:"id"`
	ClassName    string `json:"class_name"`
	Size         int64  `json:"size"`
	RetainedSize int64  `json:"retained_size,omitempty"`
	IsGCRoot     bool   `json:"is_gc_root,omitempty"`
	GCRootType   string `json:"gc_root_type,omitempty"`
}

// HeapReferenceEdge is one field reference in a HeapReferenceGraph.
type HeapReferenceEdge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	FieldName string `json:"field_name,omitempty"`
}

// HeapBiggestObject is one entry in the biggest-objects-by-shallow-size report.
type HeapBiggestObject struct {
	ObjectID     string            `json:"object_id"`
	ClassName    string            `json:"class_name"`
	ShallowSize  int64             `json:"shallow_size"`
	RetainedSize int64             `json:"retained_size,omitempty"`
	Fields       []HeapObjectField `json:"fields,omitempty"`
	GCRootPath   *HeapGCRootPath   `json:"gc_root_path,omitempty"`
}

// HeapObjectField is one field of a HeapBiggestObject.
type HeapObjectField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value,omitempty"`
	IsStatic bool   `json:"is_static,omitempty"`
	RefID    string `json:"ref_id,omitempty"`
	RefClass string `json:"ref_class,omitempty"`
}

// HeapGCRootPath mirrors GCRootPath for a single biggest-object entry.
type HeapGCRootPath struct {
	RootType string               `json:"root_type"`
	Depth    int                  `json:"depth"`
	Path     []HeapGCRootPathNode `json:"path"`
}

// HeapGCRootPathNode mirrors GCRootPathNode.
type HeapGCRootPathNode struct {
	ClassName string `json:"class_name"`
	FieldName string `json:"field_name,omitempty"`
	Size      int64  `json:"size"`
}

// MemoryLeakData is the result of a pprof-based leak-detection pass.
type MemoryLeakData struct {
	TotalLeakBytes int64             `json:"total_leak_bytes"`
	TotalLeakCount int64             `json:"total_leak_count"`
	LeakSuspects   []PProfTopFunc    `json:"leak_suspects"`
}

func (d *MemoryLeakData) Type() AnalysisDataType { return DataTypeMemoryLeak }

func (d *MemoryLeakData) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total_leak_bytes": d.TotalLeakBytes,
		"total_leak_count": d.TotalLeakCount,
		"suspect_count":    len(d.LeakSuspects),
	}
}

func (d *MemoryLeakData) TopItems() []TopItem {
	items := make([]TopItem, 0, len(d.LeakSuspects))
	for _, s := range d.LeakSuspects {
		items = append(items, TopItem{
			Name:       s.Name,
			Value:      s.Flat,
			Percentage: s.FlatPct,
			Extra:      map[string]interface{}{"description": s.SourceFile},
		})
	}
	return items
}

// TracingData is the result of analyzing a distributed-tracing capture.
type TracingData struct {
	ThreadStats []ThreadInfo `json:"thread_stats"`
	TopFuncs    TopFuncsMap  `json:"top_funcs"`
}

func (d *TracingData) Type() AnalysisDataType { return DataTypeTracing }

func (d *TracingData) Summary() map[string]interface{} {
	return map[string]interface{}{"thread_count": len(d.ThreadStats)}
}

func (d *TracingData) TopItems() []TopItem {
	items := make([]TopItem, 0, len(d.TopFuncs))
	for name, v := range d.TopFuncs {
		items = append(items, TopItem{Name: name, Percentage: v.Self})
	}
	sortTopItemsByPercentage(items)
	return items
}

// PProfTopFunc is one row of a pprof top-functions table.
type PProfTopFunc struct {
	Name       string  `json:"name"`
	Flat       int64   `json:"flat"`
	FlatPct    float64 `json:"flat_pct"`
	Cum        int64   `json:"cum"`
	CumPct     float64 `json:"cum_pct"`
	Module     string  `json:"module,omitempty"`
	SourceFile string  `json:"source_file,omitempty"`
	SourceLine int     `json:"source_line,omitempty"`
}

// PProfCPUData is the result of analyzing a Go pprof CPU profile.
type PProfCPUData struct {
	FlameGraphFile string         `json:"flamegraph_file"`
	CallGraphFile  string         `json:"callgraph_file"`
	Duration       int64          `json:"duration"`
	TotalSamples   int64          `json:"total_samples"`
	SampleUnit     string         `json:"sample_unit"`
	TopFuncs       []PProfTopFunc `json:"top_funcs"`
	TopFuncsByFlat []PProfTopFunc `json:"top_funcs_by_flat"`
	TopFuncsByCum  []PProfTopFunc `json:"top_funcs_by_cum"`
}

func (d *PProfCPUData) Type() AnalysisDataType { return DataTypePProfCPU }

func (d *PProfCPUData) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total_samples": d.TotalSamples,
		"sample_unit":   d.SampleUnit,
		"duration":      d.Duration,
	}
}

func (d *PProfCPUData) TopItems() []TopItem {
	return pprofTopFuncsToItems(d.TopFuncsByFlat)
}

// PProfMemoryStats holds one pprof heap sample type's (inuse/alloc x
// space/objects) top functions and total.
type PProfMemoryStats struct {
	Total     int64          `json:"total"`
	Unit      string         `json:"unit"`
	TopFuncs  []PProfTopFunc `json:"top_funcs"`
	TopNCount int            `json:"top_n_count"`
}

// PProfHeapSummary aggregates totals across all four pprof heap sample types.
type PProfHeapSummary struct {
	TotalInuseBytes   int64 `json:"total_inuse_bytes"`
	TotalInuseObjects int64 `json:"total_inuse_objects"`
	TotalAllocBytes   int64 `json:"total_alloc_bytes"`
	TotalAllocObjects int64 `json:"total_alloc_objects"`
}

// PProfHeapData is the result of analyzing a Go pprof heap profile.
type PProfHeapData struct {
	InuseSpace      *PProfMemoryStats `json:"inuse_space,omitempty"`
	InuseObjects    *PProfMemoryStats `json:"inuse_objects,omitempty"`
	AllocSpace      *PProfMemoryStats `json:"alloc_space,omitempty"`
	AllocObjects    *PProfMemoryStats `json:"alloc_objects,omitempty"`
	HeapSummary     *PProfHeapSummary `json:"heap_summary"`
	FlameGraphFiles map[string]string `json:"flamegraph_files"`
}

func (d *PProfHeapData) Type() AnalysisDataType { return DataTypePProfHeap }

func (d *PProfHeapData) Summary() map[string]interface{} {
	if d.HeapSummary == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"total_inuse_bytes":   d.HeapSummary.TotalInuseBytes,
		"total_inuse_objects": d.HeapSummary.TotalInuseObjects,
		"total_alloc_bytes":   d.HeapSummary.TotalAllocBytes,
		"total_alloc_objects": d.HeapSummary.TotalAllocObjects,
	}
}

func (d *PProfHeapData) TopItems() []TopItem {
	if d.InuseSpace != nil {
		return pprofTopFuncsToItems(d.InuseSpace.TopFuncs)
	}
	if d.AllocSpace != nil {
		return pprofTopFuncsToItems(d.AllocSpace.TopFuncs)
	}
	return nil
}

// GoroutineGroup is a set of goroutines sharing the same stack signature.
type GoroutineGroup struct {
	Count      int64    `json:"count"`
	Percentage float64  `json:"percentage"`
	TopFunc    string   `json:"top_func"`
	Stack      []string `json:"stack"`
}

// PProfGoroutineData is the result of analyzing a Go pprof goroutine dump.
type PProfGoroutineData struct {
	TotalCount     int64            `json:"total_count"`
	Distribution   []GoroutineGroup `json:"distribution"`
	TopFuncs       []PProfTopFunc   `json:"top_funcs"`
	FlameGraphFile string           `json:"flamegraph_file,omitempty"`
}

func (d *PProfGoroutineData) Type() AnalysisDataType { return DataTypePProfGoroutine }

func (d *PProfGoroutineData) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total_count": d.TotalCount,
		"group_count": len(d.Distribution),
	}
}

func (d *PProfGoroutineData) TopItems() []TopItem {
	items := make([]TopItem, 0, len(d.Distribution))
	for _, g := range d.Distribution {
		items = append(items, TopItem{Name: g.TopFunc, Value: g.Count, Percentage: g.Percentage})
	}
	return items
}

// PProfBlockData is the result of analyzing a Go pprof block/mutex profile.
type PProfBlockData struct {
	TotalDelay     int64          `json:"total_delay"`
	TotalCount     int64          `json:"total_count"`
	Unit           string         `json:"unit"`
	TopFuncs       []PProfTopFunc `json:"top_funcs"`
	FlameGraphFile string         `json:"flamegraph_file,omitempty"`
}

func (d *PProfBlockData) Type() AnalysisDataType { return DataTypePProfBlock }

func (d *PProfBlockData) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total_delay": d.TotalDelay,
		"total_count": d.TotalCount,
		"unit":        d.Unit,
	}
}

func (d *PProfBlockData) TopItems() []TopItem {
	return pprofTopFuncsToItems(d.TopFuncs)
}

// PProfBatchProfileSet summarizes one named group of profile files
// (e.g. "cpu", "heap") collected over a batch analysis window.
type PProfBatchProfileSet struct {
	ProfileType  string `json:"profile_type"`
	FileCount    int    `json:"file_count"`
	TotalSamples int64  `json:"total_samples"`
	LatestFile   string `json:"latest_file"`
}

// PProfLeakReportSummary is the lightweight view of a leak report suitable
// for embedding in a batch summary.
type PProfLeakReportSummary struct {
	Type          string  `json:"type"`
	Severity      string  `json:"severity"`
	Conclusion    string  `json:"conclusion"`
	TotalGrowth   int64   `json:"total_growth"`
	GrowthPercent float64 `json:"growth_percent"`
	ItemsCount    int     `json:"items_count"`
}

// PProfLeakGrowthItem is one symbol's growth between baseline and current
// profiles in a leak report.
type PProfLeakGrowthItem struct {
	Name          string  `json:"name"`
	BaselineValue int64   `json:"baseline_value"`
	CurrentValue  int64   `json:"current_value"`
	GrowthValue   int64   `json:"growth_value"`
	GrowthPercent float64 `json:"growth_percent"`
}

// PProfLeakReport is the full leak-detection report for one profile set.
type PProfLeakReport struct {
	Type               string                `json:"type"`
	Severity           string                `json:"severity"`
	Conclusion         string                `json:"conclusion"`
	BaselineTotal      int64                 `json:"baseline_total"`
	CurrentTotal       int64                 `json:"current_total"`
	TotalGrowth        int64                 `json:"total_growth"`
	TotalGrowthPercent float64               `json:"total_growth_percent"`
	GrowthItems        []PProfLeakGrowthItem `json:"growth_items"`
}

// PProfBatchData is the result of analyzing a whole directory of periodically
// collected pprof profiles, with leak detection across snapshots.
type PProfBatchData struct {
	ProfileSets         map[string]*PProfBatchProfileSet   `json:"profile_sets"`
	LeakReports         map[string]*PProfLeakReportSummary `json:"leak_reports"`
	DetailedLeakReports map[string]*PProfLeakReport        `json:"detailed_leak_reports,omitempty"`
	TopFuncs            []PProfTopFunc                     `json:"top_funcs"`
	TotalSamples        int64                               `json:"total_samples"`
}

func (d *PProfBatchData) Type() AnalysisDataType { return DataTypePProfBatch }

func (d *PProfBatchData) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total_samples":      d.TotalSamples,
		"profile_set_count":  len(d.ProfileSets),
		"leak_report_count":  len(d.LeakReports),
	}
}

func (d *PProfBatchData) TopItems() []TopItem {
	return pprofTopFuncsToItems(d.TopFuncs)
}

func pprofTopFuncsToItems(funcs []PProfTopFunc) []TopItem {
	items := make([]TopItem, 0, len(funcs))
	for _, tf := range funcs {
		items = append(items, TopItem{Name: tf.Name, Value: tf.Flat, Percentage: tf.FlatPct})
	}
	return items
}

func sortTopItemsByPercentage(items []TopItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Percentage > items[j-1].Percentage; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

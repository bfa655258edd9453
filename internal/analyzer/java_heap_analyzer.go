package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btraceio/heapdump/internal/heapdump"
	"github.com/btraceio/heapdump/pkg/model"
)

// JavaHeapAnalyzer analyzes Java heap dump (HPROF) files using the indexed,
// lazily-loading heapdump engine.
type JavaHeapAnalyzer struct {
	config     *BaseAnalyzerConfig
	engineOpts heapdump.Options
	heapOpts   *JavaHeapAnalyzerOptions
}

// JavaHeapAnalyzerOptions tunes how much detail AnalyzeFromReader computes
// beyond the basic class histogram, bounding the cost of the enrichment
// passes (GC root paths, business retainers, reference graphs) that would
// otherwise touch every object in the dump.
type JavaHeapAnalyzerOptions struct {
	// TopClassesN is the number of classes kept in the histogram.
	TopClassesN int
	// EnrichTopN is how many of the top classes get GC root paths,
	// retainer info, and reference graphs computed.
	EnrichTopN int
	// MaxLargestObjects is the number of largest individual objects to report.
	MaxLargestObjects int
}

// DefaultJavaHeapAnalyzerOptions returns default heap analyzer options.
func DefaultJavaHeapAnalyzerOptions() *JavaHeapAnalyzerOptions {
	return &JavaHeapAnalyzerOptions{
		TopClassesN:       100,
		EnrichTopN:        10,
		MaxLargestObjects: 50,
	}
}

// JavaHeapAnalyzerOption configures the JavaHeapAnalyzer.
type JavaHeapAnalyzerOption func(*JavaHeapAnalyzer)

// WithEngineOptions sets the heapdump engine options (index location, LRU
// capacity, hybrid dominator tuning) used to open the dump.
func WithEngineOptions(opts heapdump.Options) JavaHeapAnalyzerOption {
	return func(a *JavaHeapAnalyzer) {
		a.engineOpts = opts
	}
}

// WithHeapAnalyzerOptions sets the histogram/enrichment bounds.
func WithHeapAnalyzerOptions(opts *JavaHeapAnalyzerOptions) JavaHeapAnalyzerOption {
	return func(a *JavaHeapAnalyzer) {
		a.heapOpts = opts
	}
}

// NewJavaHeapAnalyzer creates a new Java heap analyzer.
func NewJavaHeapAnalyzer(config *BaseAnalyzerConfig, opts ...JavaHeapAnalyzerOption) *JavaHeapAnalyzer {
	if config == nil {
		config = DefaultBaseAnalyzerConfig()
	}

	engineOpts := heapdump.DefaultOptions()
	if config.Logger != nil {
		engineOpts.Logger = config.Logger
	}

	a := &JavaHeapAnalyzer{
		config:     config,
		engineOpts: engineOpts,
		heapOpts:   DefaultJavaHeapAnalyzerOptions(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Name returns the analyzer name.
func (a *JavaHeapAnalyzer) Name() string {
	return "java_heap_analyzer"
}

// SupportedTypes returns the task types supported by this analyzer.
func (a *JavaHeapAnalyzer) SupportedTypes() []model.TaskType {
	return []model.TaskType{model.TaskTypeJavaHeap}
}

// Analyze performs Java heap dump analysis using an input file.
func (a *JavaHeapAnalyzer) Analyze(ctx context.Context, req *model.AnalysisRequest) (*model.AnalysisResponse, error) {
	if req.TaskType != model.TaskTypeJavaHeap {
		return nil, fmt.Errorf("java heap analyzer only supports task type java_heap, got %v", req.TaskType)
	}
	if _, err := os.Stat(req.InputFile); err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	return a.analyzePath(ctx, req, req.InputFile)
}

// AnalyzeFromReader performs Java heap dump analysis from a reader. The
// engine needs random access to the dump file to build its on-disk
// indexes, so a reader that isn't already backed by a named file is
// spooled to a temporary one first.
func (a *JavaHeapAnalyzer) AnalyzeFromReader(ctx context.Context, req *model.AnalysisRequest, dataReader io.Reader) (*model.AnalysisResponse, error) {
	if req.TaskType != model.TaskTypeJavaHeap {
		return nil, fmt.Errorf("java heap analyzer only supports task type java_heap, got %v", req.TaskType)
	}

	if f, ok := dataReader.(*os.File); ok {
		return a.analyzePath(ctx, req, f.Name())
	}

	tmp, err := os.CreateTemp("", "heapdump-*.hprof")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for heap dump: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, dataReader); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to spool heap dump to temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to spool heap dump to temp file: %w", err)
	}

	return a.analyzePath(ctx, req, tmp.Name())
}

// analyzePath opens path through the heapdump engine, builds the class
// histogram, enriches the top classes with GC root paths and retainer
// data, and assembles the final response.
func (a *JavaHeapAnalyzer) analyzePath(ctx context.Context, req *model.AnalysisRequest, path string) (*model.AnalysisResponse, error) {
	dump, err := heapdump.Open(ctx, path, a.engineOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseError, err)
	}
	defer dump.Close()

	classes, totalInstances, totalHeapSize, err := a.buildClassHistogram(dump)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseError, err)
	}
	if totalInstances == 0 {
		return nil, ErrEmptyData
	}

	taskDir := req.OutputDir
	if taskDir == "" {
		taskDir, err = a.ensureOutputDir(req.TaskUUID)
		if err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	topClasses := classes
	if len(topClasses) > a.heapOpts.TopClassesN {
		topClasses = topClasses[:a.heapOpts.TopClassesN]
	}

	enrichN := a.heapOpts.EnrichTopN
	if enrichN > len(topClasses) {
		enrichN = len(topClasses)
	}

	businessGlobs := make([]string, 0, enrichN)
	for _, c := range topClasses[:enrichN] {
		if isBusinessClassName(c.className) {
			businessGlobs = append(businessGlobs, c.className)
		}
	}
	if len(businessGlobs) > 0 {
		if err := dump.BuildHybridDominatorTree(ctx, businessGlobs); err != nil {
			if a.config.Logger != nil {
				a.config.Logger.Warn("failed to build hybrid dominator tree: %v", err)
			}
		}
	}

	heapClassStats := make([]model.HeapClassStats, 0, len(topClasses))
	businessRetainers := make(map[string][]model.HeapBusinessRetainer)
	referenceGraphs := make(map[string]*model.HeapReferenceGraph)

	for i, c := range topClasses {
		stat := model.HeapClassStats{
			ClassName:     c.className,
			InstanceCount: c.count,
			TotalSize:     c.size,
			Percentage:    percentOf(c.size, totalHeapSize),
		}

		if i < enrichN {
			if retained, ok := dump.ExactRetainedSize(c.biggestID); ok {
				stat.RetainedSize = retained
			} else if retained, err := dump.RetainedSize(ctx, c.biggestID); err == nil {
				stat.RetainedSize = retained
			}

			if rootPath, err := dump.PathToGCRoot(ctx, c.biggestID); err == nil && len(rootPath) > 0 {
				stat.GCRootPaths = []*model.GCRootPath{a.buildGCRootPath(dump, rootPath)}

				if isBusinessClassName(c.className) && len(rootPath) > 1 {
					retained, _ := dump.ExactRetainedSize(c.biggestID)
					businessRetainers[c.className] = []model.HeapBusinessRetainer{{
						ClassName:     classNameOf(dump, rootPath[0].ObjectID32),
						FieldPath:     rootPath[0].FieldName,
						RetainedSize:  retained,
						RetainedCount: 1,
						Percentage:    percentOf(retained, totalHeapSize),
						Depth:         len(rootPath),
						IsGCRoot:      false,
					}}
				}
			}

			if graph := a.buildReferenceGraph(dump, c.className, c.biggestID); graph != nil {
				referenceGraphs[c.className] = graph
			}
		}

		heapClassStats = append(heapClassStats, stat)
	}

	biggestObjects := a.buildBiggestObjects(ctx, dump, classes)

	header := dump.Header()
	heapData := &model.HeapAnalysisData{
		DumpPath:          path,
		IndexDir:          dump.IndexDir(),
		Format:            header.Format,
		IDSize:            header.IDSize,
		Timestamp:         header.Timestamp.Unix(),
		TotalClasses:      len(classes),
		TotalInstances:    totalInstances,
		TotalHeapSize:     totalHeapSize,
		HeapSizeHuman:     formatBytes(totalHeapSize),
		TopClasses:        heapClassStats,
		BiggestObjects:    biggestObjects,
		ReferenceGraphs:    referenceGraphs,
		BusinessRetainers: businessRetainers,
	}

	heapReportFile := filepath.Join(taskDir, "heap_analysis.json")
	if err := a.writeHeapReport(heapData, heapReportFile); err != nil {
		return nil, fmt.Errorf("failed to write heap report: %w", err)
	}
	heapData.HeapReportFile = heapReportFile

	histogramFile := filepath.Join(taskDir, "class_histogram.json")
	if err := a.writeClassHistogram(heapClassStats, totalInstances, totalHeapSize, histogramFile); err != nil {
		return nil, fmt.Errorf("failed to write class histogram: %w", err)
	}
	heapData.HistogramFile = histogramFile

	outputFiles := []model.OutputFile{
		{Name: "Heap Report", LocalPath: heapReportFile, COSKey: req.TaskUUID + "/heap_analysis.json", ContentType: "application/json"},
		{Name: "Class Histogram", LocalPath: histogramFile, COSKey: req.TaskUUID + "/class_histogram.json", ContentType: "application/json"},
	}

	if len(biggestObjects) > 0 {
		biggestObjectsFile := filepath.Join(taskDir, "biggest_objects.json")
		if err := a.writeBiggestObjects(biggestObjects, biggestObjectsFile); err != nil {
			if a.config.Logger != nil {
				a.config.Logger.Warn("failed to write biggest objects file: %v", err)
			}
		} else {
			outputFiles = append(outputFiles, model.OutputFile{
				Name: "Biggest Objects", LocalPath: biggestObjectsFile,
				COSKey: req.TaskUUID + "/biggest_objects.json", ContentType: "application/json",
			})
		}
	}

	suggestions := a.generateSuggestions(heapClassStats, totalHeapSize, len(classes))

	return &model.AnalysisResponse{
		TaskUUID:     req.TaskUUID,
		TaskType:     req.TaskType,
		TotalRecords: int(totalInstances),
		OutputFiles:  outputFiles,
		Data:         heapData,
		Suggestions:  suggestions,
	}, nil
}

// classAccumulator tallies per-class instance counts and sizes in one pass
// over the dump, tracking the single biggest instance of each class as the
// representative object for GC-root-path and retainer enrichment.
type classAccumulator struct {
	className   string
	count       int64
	size        int64
	biggestID   heapdump.ID32
	biggestSize int64
}

// buildClassHistogram streams every object in the dump once, aggregating
// per-class instance counts/sizes (akin to jmap -histo), sorted by total
// size descending.
func (a *JavaHeapAnalyzer) buildClassHistogram(dump *heapdump.HeapDump) ([]*classAccumulator, int64, int64, error) {
	accs := make(map[int32]*classAccumulator)
	var totalInstances, totalHeapSize int64

	err := dump.StreamAll(func(o *heapdump.HeapObject) error {
		totalInstances++
		totalHeapSize += o.ShallowSize

		acc, ok := accs[o.ClassID32]
		if !ok {
			name := "<unresolved>"
			if cls, ok2 := dump.ClassByID32(o.ClassID32); ok2 {
				name = cls.Name
			}
			acc = &classAccumulator{className: name}
			accs[o.ClassID32] = acc
		}
		acc.count++
		acc.size += o.ShallowSize
		if o.ShallowSize > acc.biggestSize {
			acc.biggestSize = o.ShallowSize
			acc.biggestID = o.ID32
		}
		return nil
	})
	if err != nil {
		return nil, 0, 0, err
	}

	classes := make([]*classAccumulator, 0, len(accs))
	for _, acc := range accs {
		classes = append(classes, acc)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].size > classes[j].size })

	return classes, totalInstances, totalHeapSize, nil
}

// classNameOf resolves an object's class name, returning a placeholder if
// either the object or its class can't be found (e.g. a dangling reference
// in a truncated dump).
func classNameOf(dump *heapdump.HeapDump, id heapdump.ID32) string {
	obj, err := dump.ObjectByID32(id)
	if err != nil {
		return "<unknown>"
	}
	cls, ok := dump.ClassByID32(obj.ClassID32)
	if !ok {
		return "<unknown>"
	}
	return cls.Name
}

// buildGCRootPath converts an engine path-to-root into the model's public
// GC root path shape, resolving each step's class name lazily.
func (a *JavaHeapAnalyzer) buildGCRootPath(dump *heapdump.HeapDump, path []heapdump.PathStep) *model.GCRootPath {
	gcPath := &model.GCRootPath{RootType: "GC_ROOT", Depth: len(path)}
	for _, step := range path {
		size := int64(0)
		if obj, err := dump.ObjectByID32(step.ObjectID32); err == nil {
			size = obj.ShallowSize
		}
		gcPath.Path = append(gcPath.Path, &model.GCRootPathNode{
			ClassName: classNameOf(dump, step.ObjectID32),
			FieldName: step.FieldName,
			Size:      size,
		})
	}
	if len(path) > 0 {
		for _, r := range dump.GCRoots() {
			if r.ObjectID32 == path[0].ObjectID32 {
				gcPath.RootType = r.Kind.String()
				break
			}
		}
	}
	return gcPath
}

// buildReferenceGraph builds a small one-hop ego graph around seedID,
// suitable for the reference-graph visualization model.HeapAnalysisData
// carries per enriched class.
func (a *JavaHeapAnalyzer) buildReferenceGraph(dump *heapdump.HeapDump, className string, seedID heapdump.ID32) *model.HeapReferenceGraph {
	seed, err := dump.ObjectByID32(seedID)
	if err != nil {
		return nil
	}
	refs, err := dump.References(seed)
	if err != nil {
		return nil
	}

	rootSet := make(map[heapdump.ID32]struct{})
	for _, r := range dump.GCRoots() {
		rootSet[r.ObjectID32] = struct{}{}
	}
	_, seedIsRoot := rootSet[seedID]

	graph := &model.HeapReferenceGraph{ClassName: className}
	graph.Nodes = append(graph.Nodes, model.HeapReferenceNode{
		ID:           className + "@" + formatObjectID(uint64(seed.Address)),
		ClassName:    className,
		Size:         seed.ShallowSize,
		RetainedSize: seed.RetainedSize,
		IsGCRoot:     seedIsRoot,
	})
	seedNodeID := graph.Nodes[0].ID

	for _, r := range refs {
		target, err := dump.ObjectByID32(r.TargetID32)
		if err != nil {
			continue
		}
		_, isRoot := rootSet[r.TargetID32]
		targetClassName := classNameOf(dump, r.TargetID32)
		targetNodeID := targetClassName + "@" + formatObjectID(uint64(target.Address))

		graph.Nodes = append(graph.Nodes, model.HeapReferenceNode{
			ID:        targetNodeID,
			ClassName: targetClassName,
			Size:      target.ShallowSize,
			IsGCRoot:  isRoot,
		})
		graph.Edges = append(graph.Edges, model.HeapReferenceEdge{
			Source:    seedNodeID,
			Target:    targetNodeID,
			FieldName: r.FieldName,
		})
	}

	return graph
}

// buildBiggestObjects picks the MaxLargestObjects largest individual
// objects across the already-computed per-class biggest instances, which
// is a correct (if slightly coarse) approximation: the single largest
// object of any given class is always a candidate for the global top-N.
func (a *JavaHeapAnalyzer) buildBiggestObjects(ctx context.Context, dump *heapdump.HeapDump, classes []*classAccumulator) []model.HeapBiggestObject {
	candidates := make([]*classAccumulator, len(classes))
	copy(candidates, classes)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].biggestSize > candidates[j].biggestSize })

	n := a.heapOpts.MaxLargestObjects
	if n > len(candidates) {
		n = len(candidates)
	}

	objects := make([]model.HeapBiggestObject, 0, n)
	for _, c := range candidates[:n] {
		obj, err := dump.ObjectByID32(c.biggestID)
		if err != nil {
			continue
		}

		bigObj := model.HeapBiggestObject{
			ObjectID:    formatObjectID(uint64(obj.Address)),
			ClassName:   c.className,
			ShallowSize: obj.ShallowSize,
		}
		if retained, ok := dump.ExactRetainedSize(c.biggestID); ok {
			bigObj.RetainedSize = retained
		} else if retained, err := dump.RetainedSize(ctx, c.biggestID); err == nil {
			bigObj.RetainedSize = retained
		}

		if refs, err := dump.References(obj); err == nil {
			for _, r := range refs {
				field := model.HeapObjectField{Name: r.FieldName, Type: "object"}
				if target, err := dump.ObjectByID32(r.TargetID32); err == nil {
					field.RefID = formatObjectID(uint64(target.Address))
					field.RefClass = classNameOf(dump, r.TargetID32)
				}
				bigObj.Fields = append(bigObj.Fields, field)
			}
		}

		if gcPath, err := dump.PathToGCRoot(ctx, c.biggestID); err == nil && len(gcPath) > 0 {
			modelPath := a.buildGCRootPath(dump, gcPath)
			bigObj.GCRootPath = &model.HeapGCRootPath{RootType: modelPath.RootType, Depth: modelPath.Depth}
			for _, node := range modelPath.Path {
				bigObj.GCRootPath.Path = append(bigObj.GCRootPath.Path, model.HeapGCRootPathNode{
					ClassName: node.ClassName, FieldName: node.FieldName, Size: node.Size,
				})
			}
		}

		objects = append(objects, bigObj)
	}
	return objects
}

// ensureOutputDir ensures the output directory exists.
func (a *JavaHeapAnalyzer) ensureOutputDir(taskUUID string) (string, error) {
	outputDir := a.config.OutputDir
	if outputDir == "" {
		outputDir = os.TempDir()
	}

	taskDir := filepath.Join(outputDir, taskUUID)
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	return taskDir, nil
}

// writeHeapReport writes the complete heap analysis report.
func (a *JavaHeapAnalyzer) writeHeapReport(data *model.HeapAnalysisData, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// writeClassHistogram writes the class histogram.
func (a *JavaHeapAnalyzer) writeClassHistogram(classes []model.HeapClassStats, totalInstances, totalSize int64, outputPath string) error {
	histogram := &ClassHistogram{
		TotalClasses:   len(classes),
		TotalInstances: totalInstances,
		TotalSize:      totalSize,
		Classes:        classes,
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(histogram)
}

// ClassHistogram represents a class histogram report.
type ClassHistogram struct {
	TotalClasses   int                    `json:"total_classes"`
	TotalInstances int64                  `json:"total_instances"`
	TotalSize      int64                  `json:"total_size"`
	Classes        []model.HeapClassStats `json:"classes"`
}

// writeBiggestObjects writes the biggest objects to a JSON file.
func (a *JavaHeapAnalyzer) writeBiggestObjects(objects []model.HeapBiggestObject, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(objects)
}

// formatObjectID formats an object address as a hex string.
func formatObjectID(id uint64) string {
	return fmt.Sprintf("0x%x", id)
}

// generateSuggestions generates heap-specific suggestions from the class
// histogram.
func (a *JavaHeapAnalyzer) generateSuggestions(topClasses []model.HeapClassStats, totalHeapSize int64, totalClasses int) []model.SuggestionItem {
	var suggestions []model.SuggestionItem

	for i, cls := range topClasses {
		if i >= 10 {
			break
		}

		if cls.Percentage > 10.0 {
			suggestions = append(suggestions, model.SuggestionItem{
				Suggestion: fmt.Sprintf("类 %s 占用堆内存 %.2f%% (%.2f MB, %d 个实例)，建议检查是否存在内存泄漏或过度分配",
					cls.ClassName, cls.Percentage, float64(cls.TotalSize)/(1024*1024), cls.InstanceCount),
				FuncName: cls.ClassName,
			})
		}

		if isPotentialLeakClassName(cls.ClassName) && cls.InstanceCount > 10000 {
			suggestions = append(suggestions, model.SuggestionItem{
				Suggestion: fmt.Sprintf("类 %s 有 %d 个实例，可能存在集合类内存泄漏，建议检查是否有未清理的缓存或集合",
					cls.ClassName, cls.InstanceCount),
				FuncName: cls.ClassName,
			})
		}

		if cls.ClassName == "java.lang.String" && cls.InstanceCount > 100000 {
			suggestions = append(suggestions, model.SuggestionItem{
				Suggestion: fmt.Sprintf("String 对象数量过多 (%d 个)，建议检查是否有字符串拼接问题或考虑使用 String.intern()",
					cls.InstanceCount),
				FuncName: "java.lang.String",
			})
		}

		if cls.ClassName == "byte[]" && cls.TotalSize > 100*1024*1024 {
			suggestions = append(suggestions, model.SuggestionItem{
				Suggestion: fmt.Sprintf("byte[] 数组占用 %.2f MB，建议检查是否有大缓冲区或序列化问题",
					float64(cls.TotalSize)/(1024*1024)),
				FuncName: "byte[]",
			})
		}

		if cls.ClassName == "char[]" && cls.TotalSize > 100*1024*1024 {
			suggestions = append(suggestions, model.SuggestionItem{
				Suggestion: fmt.Sprintf("char[] 数组占用 %.2f MB (通常来自 String 对象)，建议优化字符串使用",
					float64(cls.TotalSize)/(1024*1024)),
				FuncName: "char[]",
			})
		}
	}

	if totalHeapSize > 1024*1024*1024 {
		suggestions = append(suggestions, model.SuggestionItem{
			Suggestion: fmt.Sprintf("堆内存总量 %.2f GB，建议分析是否可以优化内存使用或调整 JVM 堆大小",
				float64(totalHeapSize)/(1024*1024*1024)),
		})
	}

	if totalClasses > 50000 {
		suggestions = append(suggestions, model.SuggestionItem{
			Suggestion: fmt.Sprintf("加载了 %d 个类，可能存在类加载器泄漏，建议检查动态代理或热部署机制",
				totalClasses),
		})
	}

	return suggestions
}

// isPotentialLeakClassName checks if a class name suggests a potential
// memory leak (unbounded collection growth).
func isPotentialLeakClassName(className string) bool {
	leakPatterns := []string{
		"HashMap", "ArrayList", "LinkedList", "HashSet",
		"ConcurrentHashMap", "LinkedHashMap", "TreeMap",
		"WeakHashMap", "IdentityHashMap",
	}
	for _, pattern := range leakPatterns {
		if strings.Contains(className, pattern) {
			return true
		}
	}
	return false
}

// isPotentialLeakClass keeps the analyzer-method form some callers/tests
// still expect, delegating to the package-level check.
func (a *JavaHeapAnalyzer) isPotentialLeakClass(className string) bool {
	return isPotentialLeakClassName(className)
}

// isBusinessClassName reports whether className looks like application
// code rather than JDK or common framework internals.
func isBusinessClassName(className string) bool {
	if len(className) > 0 && className[0] == '[' {
		return false
	}
	jdkAndFrameworkPrefixes := []string{
		"java.", "javax.", "sun.", "com.sun.", "jdk.",
		"org.springframework.", "org.apache.", "org.hibernate.",
		"com.google.", "io.netty.", "org.slf4j.", "ch.qos.logback.",
		"com.fasterxml.", "org.aspectj.", "org.jboss.",
		"io.micrometer.", "reactor.", "rx.", "akka.",
		"io.opentelemetry.", "net.bytebuddy.",
	}
	for _, prefix := range jdkAndFrameworkPrefixes {
		if len(className) >= len(prefix) && className[:len(prefix)] == prefix {
			return false
		}
	}
	return true
}

// percentOf returns part as a percentage of whole, or 0 if whole is 0.
func percentOf(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100.0
}

// GetOutputFiles returns the list of output files generated by the analyzer.
func (a *JavaHeapAnalyzer) GetOutputFiles(taskUUID, taskDir string) []model.OutputFile {
	return []model.OutputFile{
		{
			Name:        "Heap Report",
			LocalPath:   filepath.Join(taskDir, "heap_analysis.json"),
			COSKey:      taskUUID + "/heap_analysis.json",
			ContentType: "application/json",
		},
		{
			Name:        "Class Histogram",
			LocalPath:   filepath.Join(taskDir, "class_histogram.json"),
			COSKey:      taskUUID + "/class_histogram.json",
			ContentType: "application/json",
		},
	}
}

// formatBytes formats bytes to human-readable string.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// SortClassesBySize sorts classes by total size in descending order.
func SortClassesBySize(classes []model.HeapClassStats) {
	sort.Slice(classes, func(i, j int) bool {
		return classes[i].TotalSize > classes[j].TotalSize
	})
}

// SortClassesByCount sorts classes by instance count in descending order.
func SortClassesByCount(classes []model.HeapClassStats) {
	sort.Slice(classes, func(i, j int) bool {
		return classes[i].InstanceCount > classes[j].InstanceCount
	})
}

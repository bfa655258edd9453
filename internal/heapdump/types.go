package heapdump

import "time"

// RecordTag is the top-level HPROF record tag.
type RecordTag uint8

const (
	TagString          RecordTag = 0x01
	TagLoadClass        RecordTag = 0x02
	TagUnloadClass      RecordTag = 0x03
	TagStackFrame       RecordTag = 0x04
	TagStackTrace       RecordTag = 0x05
	TagAllocSites       RecordTag = 0x06
	TagHeapSummary      RecordTag = 0x07
	TagStartThread      RecordTag = 0x0A
	TagEndThread        RecordTag = 0x0B
	TagHeapDump         RecordTag = 0x0C
	TagCPUSamples       RecordTag = 0x0D
	TagControlSettings  RecordTag = 0x0E
	TagHeapDumpSegment  RecordTag = 0x1C
	TagHeapDumpEnd      RecordTag = 0x2C
)

// HeapDumpTag is a sub-record tag inside a HEAP_DUMP/HEAP_DUMP_SEGMENT record.
type HeapDumpTag uint8

// Standard GC root tags.
const (
	RootJNIGlobal    HeapDumpTag = 0x01
	RootJNILocal     HeapDumpTag = 0x02
	RootJavaFrame    HeapDumpTag = 0x03
	RootNativeStack  HeapDumpTag = 0x04
	RootStickyClass  HeapDumpTag = 0x05
	RootThreadBlock  HeapDumpTag = 0x06
	RootMonitorUsed  HeapDumpTag = 0x07
	RootThreadObject HeapDumpTag = 0x08
	ClassDump        HeapDumpTag = 0x20
	InstanceDump     HeapDumpTag = 0x21
	ObjectArrayDump  HeapDumpTag = 0x22
	PrimArrayDump    HeapDumpTag = 0x23
	RootUnknown      HeapDumpTag = 0xFF
)

// Extended (vendor) GC root tags.
const (
	RootInternedString     HeapDumpTag = 0x89
	RootFinalizing         HeapDumpTag = 0x8A
	RootDebugger           HeapDumpTag = 0x8B
	RootReferenceCleanup   HeapDumpTag = 0x8C
	RootVMInternal         HeapDumpTag = 0x8D
	RootJNIMonitor         HeapDumpTag = 0x8E
	RootUnreachable        HeapDumpTag = 0x90
	HeapDumpInfo           HeapDumpTag = 0xFE
)

// GCRootKind classifies a GC root for reporting; it mirrors the HeapDumpTag
// space but is kept distinct so gcroots.idx can store it as a single byte
// without depending on the tag's numeric value matching the persisted kind.
type GCRootKind uint8

const (
	GCRootKindUnknown GCRootKind = iota
	GCRootKindJNIGlobal
	GCRootKindJNILocal
	GCRootKindJavaFrame
	GCRootKindNativeStack
	GCRootKindStickyClass
	GCRootKindThreadBlock
	GCRootKindMonitorUsed
	GCRootKindThreadObject
	GCRootKindInternedString
	GCRootKindFinalizing
	GCRootKindDebugger
	GCRootKindReferenceCleanup
	GCRootKindVMInternal
	GCRootKindJNIMonitor
	GCRootKindUnreachable
)

func (k GCRootKind) String() string {
	switch k {
	case GCRootKindJNIGlobal:
		return "JNI_GLOBAL"
	case GCRootKindJNILocal:
		return "JNI_LOCAL"
	case GCRootKindJavaFrame:
		return "JAVA_FRAME"
	case GCRootKindNativeStack:
		return "NATIVE_STACK"
	case GCRootKindStickyClass:
		return "STICKY_CLASS"
	case GCRootKindThreadBlock:
		return "THREAD_BLOCK"
	case GCRootKindMonitorUsed:
		return "MONITOR_USED"
	case GCRootKindThreadObject:
		return "THREAD_OBJECT"
	case GCRootKindInternedString:
		return "INTERNED_STRING"
	case GCRootKindFinalizing:
		return "FINALIZING"
	case GCRootKindDebugger:
		return "DEBUGGER"
	case GCRootKindReferenceCleanup:
		return "REFERENCE_CLEANUP"
	case GCRootKindVMInternal:
		return "VM_INTERNAL"
	case GCRootKindJNIMonitor:
		return "JNI_MONITOR"
	case GCRootKindUnreachable:
		return "UNREACHABLE"
	default:
		return "UNKNOWN"
	}
}

// rootKindForTag maps a heap-dump root sub-tag to its persisted GCRootKind.
func rootKindForTag(tag HeapDumpTag) GCRootKind {
	switch tag {
	case RootJNIGlobal:
		return GCRootKindJNIGlobal
	case RootJNILocal:
		return GCRootKindJNILocal
	case RootJavaFrame:
		return GCRootKindJavaFrame
	case RootNativeStack:
		return GCRootKindNativeStack
	case RootStickyClass:
		return GCRootKindStickyClass
	case RootThreadBlock:
		return GCRootKindThreadBlock
	case RootMonitorUsed:
		return GCRootKindMonitorUsed
	case RootThreadObject:
		return GCRootKindThreadObject
	case RootInternedString:
		return GCRootKindInternedString
	case RootFinalizing:
		return GCRootKindFinalizing
	case RootDebugger:
		return GCRootKindDebugger
	case RootReferenceCleanup:
		return GCRootKindReferenceCleanup
	case RootVMInternal:
		return GCRootKindVMInternal
	case RootJNIMonitor:
		return GCRootKindJNIMonitor
	case RootUnreachable:
		return GCRootKindUnreachable
	case RootUnknown:
		return GCRootKindUnknown
	default:
		return GCRootKindUnknown
	}
}

// BasicType is a Java primitive/object type tag as used in class field
// descriptors and array element types.
type BasicType uint8

const (
	TypeObject  BasicType = 2
	TypeBoolean BasicType = 4
	TypeChar    BasicType = 5
	TypeFloat   BasicType = 6
	TypeDouble  BasicType = 7
	TypeByte    BasicType = 8
	TypeShort   BasicType = 9
	TypeInt     BasicType = 10
	TypeLong    BasicType = 11
)

// valueSize returns the on-disk size in bytes of a value of type t; idSize
// is the dump-wide identifier width (4 or 8).
func valueSize(t BasicType, idSize int) int {
	switch t {
	case TypeObject:
		return idSize
	case TypeBoolean, TypeByte:
		return 1
	case TypeChar, TypeShort:
		return 2
	case TypeFloat, TypeInt:
		return 4
	case TypeDouble, TypeLong:
		return 8
	default:
		return 0
	}
}

// instanceHeaderSize is the fixed per-instance header charged against
// shallow size: an object header word, a class-pointer word, and an 8-byte
// mark/lock word. This is a deliberate simplification;
// it is a documented policy, not a claim about any specific VM layout.
func instanceHeaderSize(idSize int) int64 {
	return int64(idSize*2 + 8)
}

// arrayHeaderSize is the fixed per-array header charged against shallow
// size, independent of element type: object header, class pointer, length
// word.
func arrayHeaderSize(idSize int) int64 {
	return int64(idSize*2 + 4)
}

// Header is the parsed HPROF file header.
type Header struct {
	Format    string
	IDSize    int
	Timestamp time.Time
}

// Field describes one field in a class's instance or static field list.
type Field struct {
	Name     string
	Type     BasicType
	Static   bool
	DeclClass Address
	// StaticValue holds the literal value for static fields; nil for
	// instance fields (instance values live in the instance payload).
	StaticValue interface{}

	// nameAddr is the raw string-id for Name, kept until pass1's string
	// table is complete so field names can be resolved in one pass over
	// all classes rather than requiring the table to be threaded through
	// parseClassDump.
	nameAddr Address
}

// Class is parsed class metadata.
type Class struct {
	Address       Address
	ClassID32     int32 // dense id in the classmap.idx space; -1 until assigned
	ID32          ID32  // dense id in the general address-map space
	Name          string
	Super         Address
	Loader        Address
	InstanceSize  int64
	InstanceFields []Field
	StaticFields   []Field
}

// ArrayKind distinguishes the three object shapes objects.idx tracks.
type ArrayKind uint8

const (
	KindInstance ArrayKind = iota
	KindObjectArray
	KindPrimitiveArray
)

// HeapObject is a fully-materialised object as returned by ObjectStore. It
// holds no back-pointer to the dump beyond what is needed to lazily fetch
// outbound references — it must be reconstructible
// from the index alone.
type HeapObject struct {
	ID32         ID32
	Address      Address
	ClassID32    int32 // -1 if class is unresolved
	Kind         ArrayKind
	FileOffset   uint64
	DataSize     uint32
	ArrayLength  int32 // -1 if not an array
	ElementType  BasicType
	ShallowSize  int64
	RetainedSize int64 // -1 if not yet computed
	IsClassObject bool
}

// GCRoot is a persisted GC root entry.
type GCRoot struct {
	Kind         GCRootKind
	ObjectID32   ID32
	ThreadSerial int32 // -1 if not applicable
	FrameIndex   int32 // -1 if not applicable
}

// Reference describes one outbound edge materialised from an object's
// payload: either an instance field or an array element.
type Reference struct {
	TargetID32 ID32
	FieldName  string // field name for instance edges, "[i]" for array edges
}

// PathStep is one hop in a GC-root-to-target path.
type PathStep struct {
	ObjectID32 ID32
	FieldName  string // the field/index that led to the *next* step; "" for the last step
}

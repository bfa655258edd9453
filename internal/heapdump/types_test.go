package heapdump

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueSize(t *testing.T) {
	tests := []struct {
		typ      BasicType
		idSize   int
		expected int
	}{
		{TypeBoolean, 8, 1},
		{TypeByte, 8, 1},
		{TypeChar, 8, 2},
		{TypeShort, 8, 2},
		{TypeInt, 8, 4},
		{TypeFloat, 8, 4},
		{TypeLong, 8, 8},
		{TypeDouble, 8, 8},
		{TypeObject, 4, 4},
		{TypeObject, 8, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, valueSize(tt.typ, tt.idSize))
	}
}

func TestHeaderSizes(t *testing.T) {
	assert.Equal(t, int64(16), instanceHeaderSize(4))
	assert.Equal(t, int64(24), instanceHeaderSize(8))
	assert.Equal(t, int64(12), arrayHeaderSize(4))
	assert.Equal(t, int64(20), arrayHeaderSize(8))
}

func TestRootKindForTag(t *testing.T) {
	tests := []struct {
		tag      HeapDumpTag
		expected GCRootKind
	}{
		{RootJNIGlobal, GCRootKindJNIGlobal},
		{RootJNILocal, GCRootKindJNILocal},
		{RootJavaFrame, GCRootKindJavaFrame},
		{RootNativeStack, GCRootKindNativeStack},
		{RootStickyClass, GCRootKindStickyClass},
		{RootThreadBlock, GCRootKindThreadBlock},
		{RootMonitorUsed, GCRootKindMonitorUsed},
		{RootThreadObject, GCRootKindThreadObject},
		{RootInternedString, GCRootKindInternedString},
		{RootFinalizing, GCRootKindFinalizing},
		{RootDebugger, GCRootKindDebugger},
		{RootReferenceCleanup, GCRootKindReferenceCleanup},
		{RootVMInternal, GCRootKindVMInternal},
		{RootJNIMonitor, GCRootKindJNIMonitor},
		{RootUnreachable, GCRootKindUnreachable},
		{RootUnknown, GCRootKindUnknown},
		{HeapDumpTag(0x77), GCRootKindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, rootKindForTag(tt.tag), "tag 0x%x", tt.tag)
	}
}

func TestGCRootKind_String(t *testing.T) {
	assert.Equal(t, "JNI_GLOBAL", GCRootKindJNIGlobal.String())
	assert.Equal(t, "UNKNOWN", GCRootKind(99).String())
}

package heapdump

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/btraceio/heapdump/pkg/utils"
)

// parser drives the two-pass HPROF walk described in index_format.go's
// sibling files: one pass to discover the dense id32 space, one to emit
// index entries against it. It never buffers a reference graph in
// memory; everything it doesn't need again is streamed straight to disk.
type parser struct {
	path    string
	idxDir  string
	logger  utils.Logger
	timer   *utils.Timer
}

func newParser(path, idxDir string, logger utils.Logger, timer *utils.Timer) *parser {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &parser{path: path, idxDir: idxDir, logger: logger, timer: timer}
}

// buildArtifacts holds everything the façade needs after a build or a
// fast re-open, beyond what lives in the committed index files themselves.
type buildArtifacts struct {
	header      Header
	classes     map[Address]*Class // keyed by class address
	classByID32 map[int32]*Class   // keyed by classId32
	gcRootCount int
}

func (p *parser) timeFunc(name string, fn func() error) error {
	if p.timer == nil {
		return fn()
	}
	_, err := p.timer.TimeFuncWithError(name, fn)
	return err
}

// build runs Pass 1 and Pass 2 from scratch and writes all four
// structural indexes (objects, objectmap, classmap, gcroots). The
// inbound and retained indexes are built later by InboundIndexBuilder and
// RetainedSizeEngine, once the object/address space exists.
func (p *parser) build() (*buildArtifacts, error) {
	var header Header
	var addrs []Address
	var classes map[Address]*Class

	if err := p.timeFunc("pass1.scan", func() error {
		f, err := os.Open(p.path)
		if err != nil {
			return fmt.Errorf("%w: opening dump: %v", ErrCorruptDump, err)
		}
		defer f.Close()
		cur := newCursor(f)
		h, err := cur.readHeader()
		if err != nil {
			return err
		}
		header = h
		a, c, err := p.pass1(cur)
		if err != nil {
			return err
		}
		addrs = a
		classes = c
		return nil
	}); err != nil {
		return nil, err
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	id32ByAddr := make(map[Address]ID32, len(addrs))
	for i, a := range addrs {
		id32ByAddr[a] = ID32(i)
	}
	for _, c := range classes {
		c.ID32 = lookupOrInvalid(id32ByAddr, c.Address)
	}

	var classByID32 map[int32]*Class
	var gcRootCount int
	if err := p.timeFunc("pass2.build", func() error {
		f, err := os.Open(p.path)
		if err != nil {
			return fmt.Errorf("%w: reopening dump: %v", ErrCorruptDump, err)
		}
		defer f.Close()
		cur := newCursor(f)
		if _, err := cur.readHeader(); err != nil {
			return err
		}
		cb, n, err := p.pass2(cur, header.IDSize, addrs, id32ByAddr, classes)
		if err != nil {
			return err
		}
		classByID32 = cb
		gcRootCount = n
		return nil
	}); err != nil {
		return nil, err
	}

	return &buildArtifacts{
		header:      header,
		classes:     classes,
		classByID32: classByID32,
		gcRootCount: gcRootCount,
	}, nil
}

// pass1 walks the whole file once, collecting every object/class address
// and fully parsing class-dump metadata (classes are too small in number,
// relative to objects, to defer to pass 2).
func (p *parser) pass1(cur *cursor) ([]Address, map[Address]*Class, error) {
	strings := map[Address]string{}
	type loadClassEntry struct {
		classAddr Address
		nameAddr  Address
	}
	var loadClasses []loadClassEntry
	classes := map[Address]*Class{}
	addrSet := map[Address]struct{}{}

	length, err := cur.Length()
	if err != nil {
		return nil, nil, err
	}

	for cur.Position() < length {
		rh, err := cur.readRecordHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading record header: %v", ErrCorruptDump, err)
		}
		recordEnd := cur.Position() + int64(rh.Length)

		switch rh.Tag {
		case TagString:
			id, name, err := readStringRecord(cur, rh.Length)
			if err != nil {
				return nil, nil, err
			}
			strings[id] = name
		case TagLoadClass:
			entry, err := readLoadClassRecord(cur)
			if err != nil {
				return nil, nil, err
			}
			loadClasses = append(loadClasses, loadClassEntry{entry.classAddr, entry.nameAddr})
			addrSet[entry.classAddr] = struct{}{}
		case TagHeapDump, TagHeapDumpSegment:
			if err := p.walkHeapDumpSubRecords(cur, recordEnd, heapDumpHandlers{
				onAddress: func(a Address) { addrSet[a] = struct{}{} },
				onClass: func(c *Class) {
					addrSet[c.Address] = struct{}{}
					classes[c.Address] = c
				},
				onRoot: nil, // roots deferred to pass 2
			}); err != nil {
				return nil, nil, err
			}
		default:
			if err := cur.Skip(int64(rh.Length)); err != nil {
				return nil, nil, fmt.Errorf("%w: skipping record tag 0x%x: %v", ErrCorruptDump, rh.Tag, err)
			}
		}
		if cur.Position() != recordEnd {
			// Defensive resync: a handler under- or over-consumed. Treat any
			// mismatch as corruption rather than silently drifting.
			if cur.Position() > recordEnd {
				return nil, nil, fmt.Errorf("%w: record tag 0x%x overran its declared length", ErrCorruptDump, rh.Tag)
			}
			if err := cur.Skip(recordEnd - cur.Position()); err != nil {
				return nil, nil, fmt.Errorf("%w: resyncing after tag 0x%x: %v", ErrCorruptDump, rh.Tag, err)
			}
		}
	}

	for _, lc := range loadClasses {
		if c, ok := classes[lc.classAddr]; ok && c.Name == "" {
			c.Name = strings[lc.nameAddr]
		}
	}
	for addr, c := range classes {
		if c.Name == "" {
			c.Name = fmt.Sprintf("unknown@0x%x", uint64(addr))
		}
		for i := range c.StaticFields {
			c.StaticFields[i].Name = resolveFieldName(strings, c.StaticFields[i].nameAddr)
		}
		for i := range c.InstanceFields {
			c.InstanceFields[i].Name = resolveFieldName(strings, c.InstanceFields[i].nameAddr)
		}
	}

	addrs := make([]Address, 0, len(addrSet))
	for a := range addrSet {
		addrs = append(addrs, a)
	}
	return addrs, classes, nil
}

// pass2 re-walks the heap-dump records, this time emitting the four
// structural index files against the id32 space pass1 established.
func (p *parser) pass2(cur *cursor, idSize int, addrs []Address, id32ByAddr map[Address]ID32, classes map[Address]*Class) (map[int32]*Class, int, error) {
	objW, err := createIndexWriter(filepath.Join(p.idxDir, "objects.idx"), magicObjects, objectEntrySize)
	if err != nil {
		return nil, 0, err
	}
	objMapW, err := createIndexWriter(filepath.Join(p.idxDir, "objectmap.idx"), magicObjectMap, objectMapEntrySize)
	if err != nil {
		objW.Close()
		return nil, 0, err
	}
	classMapW, err := createIndexWriter(filepath.Join(p.idxDir, "classmap.idx"), magicClassMap, classMapEntrySize)
	if err != nil {
		objW.Close()
		objMapW.Close()
		return nil, 0, err
	}
	rootW, err := createIndexWriter(filepath.Join(p.idxDir, "gcroots.idx"), magicGCRoots, gcRootEntrySize)
	if err != nil {
		objW.Close()
		objMapW.Close()
		classMapW.Close()
		return nil, 0, err
	}
	defer func() {
		objW.Close()
		objMapW.Close()
		classMapW.Close()
		rootW.Close()
	}()

	// objectmap and objects are both direct positional tables, one slot
	// per id32 (objects and classes share the space): ByID32 and
	// StreamAll both read objects.idx by slot == id32, so every id32 must
	// get its entry written to that exact slot rather than appended in
	// discovery order, which would desync the slot index from the id32
	// the entry actually describes (discovery order follows the heap
	// dump's on-disk layout and Go's randomized map iteration for
	// classes, neither of which matches ascending id32 order).
	if err := objMapW.preallocate(uint64(len(addrs))); err != nil {
		return nil, 0, err
	}
	if err := objW.preallocate(uint64(len(addrs))); err != nil {
		return nil, 0, err
	}
	for i, a := range addrs {
		if err := objMapW.writeAtOffset(uint64(i), encodeAddrEntry(uint32(i), uint64(a))); err != nil {
			return nil, 0, err
		}
	}

	classByID32 := map[int32]*Class{}
	var nextClassID32 int32
	resolveClassID32 := func(c *Class) int32 {
		if c.ClassID32 >= 0 {
			return c.ClassID32
		}
		id := nextClassID32
		nextClassID32++
		c.ClassID32 = id
		classByID32[id] = c
		if err := classMapW.appendRaw(encodeAddrEntry(uint32(id), uint64(c.Address))); err != nil {
			p.logger.Warn("heapdump: classmap write failed for %s: %v", c.Name, err)
		}
		return id
	}

	// Every class also gets a sentinel object entry so GC roots and
	// outbound edges that target a class (e.g. ROOT_STICKY_CLASS, or a
	// static-field reference) resolve to a zero-size, zero-retained
	// object rather than an unresolved id.
	for addr, c := range classes {
		id32, ok := id32ByAddr[addr]
		if !ok {
			continue
		}
		cid := resolveClassID32(c)
		entry := objectEntry{
			ObjectID32:  uint32(id32),
			FileOffset:  0,
			DataSize:    0,
			ClassID32:   cid,
			ArrayLength: -1,
			Flags:       objFlagIsClass,
			ElementType: 0,
		}
		if err := objW.writeAtOffset(uint64(id32), encodeObjectEntry(entry)); err != nil {
			return nil, 0, err
		}
	}

	length, err := cur.Length()
	if err != nil {
		return nil, 0, err
	}
	gcRootCount := 0
	for cur.Position() < length {
		rh, err := cur.readRecordHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: reading record header: %v", ErrCorruptDump, err)
		}
		recordEnd := cur.Position() + int64(rh.Length)

		switch rh.Tag {
		case TagHeapDump, TagHeapDumpSegment:
			err = p.walkHeapDumpSubRecords(cur, recordEnd, heapDumpHandlers{
				onObject: func(addr Address, offset int64, dataSize uint32, classAddr Address, arrayLen int32, elemType BasicType, kind ArrayKind) error {
					id32, ok := id32ByAddr[addr]
					if !ok {
						return nil
					}
					cid := int32(-1)
					if c, ok := classes[classAddr]; ok {
						cid = resolveClassID32(c)
					}
					var flags uint8
					switch kind {
					case KindObjectArray:
						flags = 1 << 1
					case KindPrimitiveArray:
						flags = 1 << 2
					}
					entry := objectEntry{
						ObjectID32:  uint32(id32),
						FileOffset:  uint64(offset),
						DataSize:    dataSize,
						ClassID32:   cid,
						ArrayLength: arrayLen,
						Flags:       flags,
						ElementType: uint8(elemType),
					}
					return objW.writeAtOffset(uint64(id32), encodeObjectEntry(entry))
				},
				onRoot: func(kind GCRootKind, addr Address, threadSerial, frameIdx int32) error {
					id32, ok := id32ByAddr[addr]
					if !ok {
						return nil // unresolved root target is silently dropped
					}
					gcRootCount++
					return rootW.appendRaw(encodeGCRootEntry(GCRoot{
						Kind:         kind,
						ObjectID32:   id32,
						ThreadSerial: threadSerial,
						FrameIndex:   frameIdx,
					}))
				},
				onClass: func(c *Class) {
					// Already resolved in the sentinel-entry pass above;
					// pass2's class dump parse here only needs to advance
					// the cursor correctly, which walkHeapDumpSubRecords
					// does regardless of this callback being a no-op.
				},
			})
		default:
			err = cur.Skip(int64(rh.Length))
		}
		if err != nil {
			return nil, 0, err
		}
		if cur.Position() != recordEnd {
			if cur.Position() > recordEnd {
				return nil, 0, fmt.Errorf("%w: record tag 0x%x overran its declared length", ErrCorruptDump, rh.Tag)
			}
			if err := cur.Skip(recordEnd - cur.Position()); err != nil {
				return nil, 0, err
			}
		}
	}

	return classByID32, gcRootCount, nil
}

func resolveFieldName(strings map[Address]string, addr Address) string {
	if name, ok := strings[addr]; ok {
		return name
	}
	return fmt.Sprintf("field@0x%x", uint64(addr))
}

func lookupOrInvalid(m map[Address]ID32, a Address) ID32 {
	if id, ok := m[a]; ok {
		return id
	}
	return InvalidID32
}

// --- record-level decoders shared between passes ---

func readStringRecord(cur *cursor, length uint32) (Address, string, error) {
	id, err := cur.ReadAddress()
	if err != nil {
		return 0, "", fmt.Errorf("%w: reading string id: %v", ErrCorruptDump, err)
	}
	remaining := int(length) - cur.idSize
	if remaining < 0 {
		return 0, "", fmt.Errorf("%w: string record shorter than its id field", ErrCorruptDump)
	}
	b, err := cur.readFull(remaining)
	if err != nil {
		return 0, "", fmt.Errorf("%w: reading string bytes: %v", ErrCorruptDump, err)
	}
	return id, string(b), nil
}

type loadClassRecord struct {
	classAddr Address
	nameAddr  Address
}

func readLoadClassRecord(cur *cursor) (loadClassRecord, error) {
	if _, err := cur.ReadUint32(); err != nil { // class serial number
		return loadClassRecord{}, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	classAddr, err := cur.ReadAddress()
	if err != nil {
		return loadClassRecord{}, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	if _, err := cur.ReadUint32(); err != nil { // stack trace serial number
		return loadClassRecord{}, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	nameAddr, err := cur.ReadAddress()
	if err != nil {
		return loadClassRecord{}, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	return loadClassRecord{classAddr: classAddr, nameAddr: nameAddr}, nil
}

// heapDumpHandlers lets pass1 and pass2 share the same sub-record walker
// while doing different work with what they find.
type heapDumpHandlers struct {
	onAddress func(a Address)
	onClass   func(c *Class)
	onObject  func(addr Address, offset int64, dataSize uint32, classAddr Address, arrayLen int32, elemType BasicType, kind ArrayKind) error
	onRoot    func(kind GCRootKind, addr Address, threadSerial, frameIdx int32) error
}

func (p *parser) walkHeapDumpSubRecords(cur *cursor, segmentEnd int64, h heapDumpHandlers) error {
	idSize := cur.IDSize()
	for cur.Position() < segmentEnd {
		tagByte, err := cur.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: reading sub-record tag: %v", ErrCorruptDump, err)
		}
		tag := HeapDumpTag(tagByte)
		switch tag {
		case ClassDump:
			c, err := p.parseClassDump(cur, idSize)
			if err != nil {
				return err
			}
			if h.onAddress != nil {
				h.onAddress(c.Address)
			}
			if h.onClass != nil {
				h.onClass(c)
			}
		case InstanceDump:
			addr, err := cur.ReadAddress()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			if _, err := cur.ReadUint32(); err != nil { // stack trace serial
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			classAddr, err := cur.ReadAddress()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			numBytes, err := cur.ReadUint32()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			offset := cur.Position()
			if err := cur.Skip(int64(numBytes)); err != nil {
				return fmt.Errorf("%w: skipping instance payload: %v", ErrCorruptDump, err)
			}
			if h.onAddress != nil {
				h.onAddress(addr)
			}
			if h.onObject != nil {
				if err := h.onObject(addr, offset, numBytes, classAddr, -1, 0, KindInstance); err != nil {
					return err
				}
			}
		case ObjectArrayDump:
			addr, err := cur.ReadAddress()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			if _, err := cur.ReadUint32(); err != nil { // stack trace serial
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			numElems, err := cur.ReadUint32()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			classAddr, err := cur.ReadAddress()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			offset := cur.Position()
			dataSize := numElems * uint32(idSize)
			if err := cur.Skip(int64(dataSize)); err != nil {
				return fmt.Errorf("%w: skipping object array payload: %v", ErrCorruptDump, err)
			}
			if h.onAddress != nil {
				h.onAddress(addr)
			}
			if h.onObject != nil {
				if err := h.onObject(addr, offset, dataSize, classAddr, int32(numElems), 0, KindObjectArray); err != nil {
					return err
				}
			}
		case PrimArrayDump:
			addr, err := cur.ReadAddress()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			if _, err := cur.ReadUint32(); err != nil { // stack trace serial
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			numElems, err := cur.ReadUint32()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			elemTypeByte, err := cur.ReadByte()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			elemType := BasicType(elemTypeByte)
			offset := cur.Position()
			dataSize := numElems * uint32(valueSize(elemType, idSize))
			if err := cur.Skip(int64(dataSize)); err != nil {
				return fmt.Errorf("%w: skipping primitive array payload: %v", ErrCorruptDump, err)
			}
			if h.onAddress != nil {
				h.onAddress(addr)
			}
			if h.onObject != nil {
				if err := h.onObject(addr, offset, dataSize, 0, int32(numElems), elemType, KindPrimitiveArray); err != nil {
					return err
				}
			}
		default:
			size, hasThread, hasFrame, err := rootPayloadShape(tag, idSize)
			if err != nil {
				return fmt.Errorf("%w at offset %d", err, cur.Position()-1)
			}
			addr, err := cur.ReadAddress()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
			threadSerial := int32(-1)
			frameIdx := int32(-1)
			remaining := size - idSize
			if hasThread {
				v, err := cur.ReadUint32()
				if err != nil {
					return fmt.Errorf("%w: %v", ErrCorruptDump, err)
				}
				threadSerial = int32(v)
				remaining -= 4
			}
			if hasFrame {
				v, err := cur.ReadUint32()
				if err != nil {
					return fmt.Errorf("%w: %v", ErrCorruptDump, err)
				}
				frameIdx = int32(v)
				remaining -= 4
			}
			if remaining > 0 {
				if err := cur.Skip(int64(remaining)); err != nil {
					return fmt.Errorf("%w: %v", ErrCorruptDump, err)
				}
			}
			if h.onRoot != nil {
				if err := h.onRoot(rootKindForTag(tag), addr, threadSerial, frameIdx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// rootPayloadShape returns the total payload size (including the leading
// object-id field) and which optional trailing fields a root sub-tag
// carries. Unknown tags are a hard parse error: the format requires every
// heap sub-tag to be recognised, with no silent skip.
func rootPayloadShape(tag HeapDumpTag, idSize int) (size int, hasThreadSerial, hasFrameOrDepth bool, err error) {
	switch tag {
	case RootUnknown, RootStickyClass, RootMonitorUsed,
		RootInternedString, RootFinalizing, RootDebugger,
		RootReferenceCleanup, RootVMInternal, RootUnreachable:
		return idSize, false, false, nil
	case RootJNIGlobal:
		return idSize * 2, false, false, nil
	case RootJNILocal, RootJavaFrame:
		return idSize + 8, true, true, nil
	case RootNativeStack, RootThreadBlock:
		return idSize + 4, true, false, nil
	case RootThreadObject, RootJNIMonitor:
		return idSize + 8, true, true, nil
	case HeapDumpInfo:
		// u4 heap id, ID heap name string id. Decoded with the same shape
		// as a thread-serial-bearing root (4 bytes then an id-width
		// field); its "object id" never resolves to a real object, so it
		// is silently dropped downstream rather than special-cased here.
		return idSize + 4, true, false, nil
	default:
		return 0, false, false, fmt.Errorf("%w: unknown heap sub-record tag 0x%x", ErrCorruptDump, tag)
	}
}

// parseClassDump fully decodes a CLASS_DUMP sub-record: it has no
// up-front byte length, so every field must be walked to find the end.
func (p *parser) parseClassDump(cur *cursor, idSize int) (*Class, error) {
	addr, err := cur.ReadAddress()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	if _, err := cur.ReadUint32(); err != nil { // stack trace serial
		return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	super, err := cur.ReadAddress()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	loader, err := cur.ReadAddress()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	for i := 0; i < 4; i++ { // signers, protection domain, reserved, reserved
		if _, err := cur.ReadAddress(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
	}
	instSize, err := cur.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	poolSize, err := cur.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	for i := 0; i < int(poolSize); i++ {
		if _, err := cur.ReadUint16(); err != nil { // constant pool index
			return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
		typeByte, err := cur.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
		if _, err := cur.readValue(BasicType(typeByte)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
	}
	numStatic, err := cur.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	staticFields := make([]Field, 0, numStatic)
	for i := 0; i < int(numStatic); i++ {
		nameAddr, err := cur.ReadAddress()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
		typeByte, err := cur.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
		t := BasicType(typeByte)
		val, err := cur.readValue(t)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
		staticFields = append(staticFields, Field{nameAddr: nameAddr, Type: t, Static: true, StaticValue: val})
	}
	numInstance, err := cur.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	instanceFields := make([]Field, 0, numInstance)
	for i := 0; i < int(numInstance); i++ {
		nameAddr, err := cur.ReadAddress()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
		typeByte, err := cur.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
		instanceFields = append(instanceFields, Field{nameAddr: nameAddr, Type: BasicType(typeByte)})
	}
	_ = idSize
	return &Class{
		Address:        addr,
		ClassID32:      -1,
		Super:          super,
		Loader:         loader,
		InstanceSize:   int64(instSize),
		InstanceFields: instanceFields,
		StaticFields:   staticFields,
	}, nil
}

// loadClassTable re-parses only class-dump records (instance and array
// payloads are skipped by their explicit byte counts without being
// examined) and assigns classId32/id32 from the already-committed
// classmap and objectmap indexes. This is the "re-open fast path":
// rebuilding the Class table is cheap because classes are a small
// fraction of a heap dump's records, while skipping it entirely would
// mean trusting stale metadata on every open.
func (p *parser) loadClassTable(classMapR, objectMapR *indexReader) (Header, map[Address]*Class, map[int32]*Class, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return Header{}, nil, nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
	}
	defer f.Close()
	cur := newCursor(f)
	header, err := cur.readHeader()
	if err != nil {
		return Header{}, nil, nil, err
	}

	addrToID32 := map[Address]ID32{}
	for i := uint64(0); i < objectMapR.Count(); i++ {
		raw, err := objectMapR.entry(i)
		if err != nil {
			return Header{}, nil, nil, err
		}
		id, addr := decodeAddrEntry(raw)
		addrToID32[Address(addr)] = ID32(id)
	}
	addrToClassID32 := map[Address]int32{}
	for i := uint64(0); i < classMapR.Count(); i++ {
		raw, err := classMapR.entry(i)
		if err != nil {
			return Header{}, nil, nil, err
		}
		id, addr := decodeAddrEntry(raw)
		addrToClassID32[Address(addr)] = int32(id)
	}

	strings := map[Address]string{}
	type loadClassEntry struct{ classAddr, nameAddr Address }
	var loadClasses []loadClassEntry
	classes := map[Address]*Class{}

	length, err := cur.Length()
	if err != nil {
		return Header{}, nil, nil, err
	}
	for cur.Position() < length {
		rh, err := cur.readRecordHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Header{}, nil, nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
		}
		recordEnd := cur.Position() + int64(rh.Length)
		switch rh.Tag {
		case TagString:
			id, name, err := readStringRecord(cur, rh.Length)
			if err != nil {
				return Header{}, nil, nil, err
			}
			strings[id] = name
		case TagLoadClass:
			e, err := readLoadClassRecord(cur)
			if err != nil {
				return Header{}, nil, nil, err
			}
			loadClasses = append(loadClasses, loadClassEntry{e.classAddr, e.nameAddr})
		case TagHeapDump, TagHeapDumpSegment:
			if err := p.walkHeapDumpSubRecords(cur, recordEnd, heapDumpHandlers{
				onClass: func(c *Class) { classes[c.Address] = c },
			}); err != nil {
				return Header{}, nil, nil, err
			}
		default:
			if err := cur.Skip(int64(rh.Length)); err != nil {
				return Header{}, nil, nil, fmt.Errorf("%w: %v", ErrCorruptDump, err)
			}
		}
		if cur.Position() != recordEnd {
			if cur.Position() > recordEnd {
				return Header{}, nil, nil, fmt.Errorf("%w: record tag 0x%x overran its declared length", ErrCorruptDump, rh.Tag)
			}
			if err := cur.Skip(recordEnd - cur.Position()); err != nil {
				return Header{}, nil, nil, err
			}
		}
	}

	for _, lc := range loadClasses {
		if c, ok := classes[lc.classAddr]; ok && c.Name == "" {
			c.Name = strings[lc.nameAddr]
		}
	}
	classByID32 := map[int32]*Class{}
	for addr, c := range classes {
		if c.Name == "" {
			c.Name = fmt.Sprintf("unknown@0x%x", uint64(addr))
		}
		for i := range c.StaticFields {
			c.StaticFields[i].Name = resolveFieldName(strings, c.StaticFields[i].nameAddr)
		}
		for i := range c.InstanceFields {
			c.InstanceFields[i].Name = resolveFieldName(strings, c.InstanceFields[i].nameAddr)
		}
		c.ID32 = lookupOrInvalid(addrToID32, addr)
		if cid, ok := addrToClassID32[addr]; ok {
			c.ClassID32 = cid
			classByID32[cid] = c
		}
	}
	_ = header.IDSize
	return header, classes, classByID32, nil
}

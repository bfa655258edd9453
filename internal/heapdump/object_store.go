package heapdump

import (
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// objectStore materialises HeapObjects lazily from the objects index plus
// the dump file itself: resolve address, check the cache, otherwise seek
// the payload and decode it. Reads payload bytes straight from the dump
// file instead of a pre-copied mmap array, since the dump itself is
// already a random-access file.
type objectStore struct {
	dump        *os.File
	idSize      int
	objectsR    *indexReader
	objectMapR  *indexReader
	retainedR   *indexReader // nil until the retained index exists
	classByID32 map[int32]*Class
	addrByID32  []Address // index position i == id32 i; built once at open

	cache *lru.Cache[ID32, *HeapObject]
}

func newObjectStore(dump *os.File, idSize int, objectsR, objectMapR *indexReader, classByID32 map[int32]*Class, cacheCapacity int) (*objectStore, error) {
	if cacheCapacity <= 0 {
		cacheCapacity = 1
	}
	cache, err := lru.New[ID32, *HeapObject](cacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("heapdump: creating object cache: %w", err)
	}
	addrByID32 := make([]Address, objectMapR.Count())
	for i := uint64(0); i < objectMapR.Count(); i++ {
		raw, err := objectMapR.entry(i)
		if err != nil {
			return nil, err
		}
		id, addr := decodeAddrEntry(raw)
		addrByID32[id] = Address(addr)
	}
	return &objectStore{
		dump:        dump,
		idSize:      idSize,
		objectsR:    objectsR,
		objectMapR:  objectMapR,
		classByID32: classByID32,
		addrByID32:  addrByID32,
		cache:       cache,
	}, nil
}

// setRetainedIndex attaches the retained index and drops cached objects,
// which were materialised with RetainedSize -1 before the index existed.
func (s *objectStore) setRetainedIndex(r *indexReader) {
	s.retainedR = r
	s.cache.Purge()
}

// AddressByID32 returns the address id32 was assigned during Pass 1.
func (s *objectStore) AddressByID32(id ID32) (Address, bool) {
	if int(id) < 0 || int(id) >= len(s.addrByID32) {
		return 0, false
	}
	return s.addrByID32[id], true
}

// ByID32 is the core resolution path: cache lookup, else decode the
// objects.idx entry at slot id32 and build a HeapObject.
func (s *objectStore) ByID32(id ID32) (*HeapObject, error) {
	if obj, ok := s.cache.Get(id); ok {
		return obj, nil
	}
	raw, err := s.objectsR.entry(uint64(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingReferent, err)
	}
	e := decodeObjectEntry(raw)
	addr, _ := s.AddressByID32(id)

	obj := &HeapObject{
		ID32:          id,
		Address:       addr,
		ClassID32:     e.ClassID32,
		FileOffset:    e.FileOffset,
		DataSize:      e.DataSize,
		ArrayLength:   e.ArrayLength,
		ElementType:   BasicType(e.ElementType),
		RetainedSize:  -1,
		IsClassObject: e.Flags&objFlagIsClass != 0,
	}
	switch {
	case e.Flags&(1<<1) != 0:
		obj.Kind = KindObjectArray
	case e.Flags&(1<<2) != 0:
		obj.Kind = KindPrimitiveArray
	default:
		obj.Kind = KindInstance
	}
	if obj.IsClassObject {
		obj.ShallowSize = 0
	} else {
		obj.ShallowSize = s.shallowSize(obj)
	}

	if s.retainedR != nil && !obj.IsClassObject {
		rraw, err := s.retainedR.entry(uint64(id))
		if err == nil {
			obj.RetainedSize = decodeInt64Entry(rraw)
		}
	} else if obj.IsClassObject {
		obj.RetainedSize = 0
	}

	s.cache.Add(id, obj)
	return obj, nil
}

// ByAddress resolves an address to an id32 by binary search over the
// objectmap's address-sorted layout (Pass 1 assigns id32 by ascending
// address), then delegates to ByID32.
func (s *objectStore) ByAddress(addr Address) (*HeapObject, error) {
	lo, hi := 0, len(s.addrByID32)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.addrByID32[mid] < addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(s.addrByID32) || s.addrByID32[lo] != addr {
		return nil, fmt.Errorf("%w: address 0x%x", ErrMissingReferent, uint64(addr))
	}
	return s.ByID32(ID32(lo))
}

func (s *objectStore) classFor(obj *HeapObject) *Class {
	if obj.ClassID32 < 0 {
		return nil
	}
	return s.classByID32[obj.ClassID32]
}

func (s *objectStore) shallowSize(obj *HeapObject) int64 {
	switch obj.Kind {
	case KindObjectArray:
		return arrayHeaderSize(s.idSize) + int64(obj.ArrayLength)*int64(s.idSize)
	case KindPrimitiveArray:
		return arrayHeaderSize(s.idSize) + int64(obj.ArrayLength)*int64(valueSize(obj.ElementType, s.idSize))
	case KindInstance:
		if c := s.classFor(obj); c != nil {
			return instanceHeaderSize(s.idSize) + c.InstanceSize
		}
		return instanceHeaderSize(s.idSize) + int64(obj.DataSize)
	default:
		return 0
	}
}

// References materialises the outbound edges of obj:
// object-array elements, nothing for primitive arrays, and the
// superclass-first concatenation of instance fields for instances.
func (s *objectStore) References(obj *HeapObject) ([]Reference, error) {
	switch obj.Kind {
	case KindPrimitiveArray:
		return nil, nil
	case KindObjectArray:
		return s.objectArrayReferences(obj)
	case KindInstance:
		return s.instanceReferences(obj)
	default:
		return nil, nil
	}
}

func (s *objectStore) objectArrayReferences(obj *HeapObject) ([]Reference, error) {
	if obj.ArrayLength <= 0 {
		return nil, nil
	}
	buf := make([]byte, int(obj.ArrayLength)*s.idSize)
	if _, err := s.dump.ReadAt(buf, int64(obj.FileOffset)); err != nil {
		return nil, fmt.Errorf("heapdump: reading object array payload: %w", err)
	}
	refs := make([]Reference, 0, obj.ArrayLength)
	for i := 0; i < int(obj.ArrayLength); i++ {
		addr := readAddrAt(buf[i*s.idSize:], s.idSize)
		if addr == 0 {
			continue
		}
		target, err := s.ByAddress(addr)
		if err != nil {
			continue // dangling reference to an address never dumped
		}
		refs = append(refs, Reference{TargetID32: target.ID32, FieldName: fmt.Sprintf("[%d]", i)})
	}
	return refs, nil
}

// instanceFieldLayout walks the class and every supertype, superclass
// fields first, matching the reference-materialisation order used elsewhere.
func (s *objectStore) instanceFieldLayout(c *Class) []Field {
	if c == nil {
		return nil
	}
	var chain []*Class
	for cur := c; cur != nil; {
		chain = append(chain, cur)
		super := s.classByAddress(cur.Super)
		cur = super
	}
	var fields []Field
	for i := len(chain) - 1; i >= 0; i-- {
		fields = append(fields, chain[i].InstanceFields...)
	}
	return fields
}

func (s *objectStore) classByAddress(addr Address) *Class {
	if addr == 0 {
		return nil
	}
	for _, c := range s.classByID32 {
		if c.Address == addr {
			return c
		}
	}
	return nil
}

func (s *objectStore) instanceReferences(obj *HeapObject) ([]Reference, error) {
	c := s.classFor(obj)
	if c == nil {
		return nil, nil
	}
	fields := s.instanceFieldLayout(c)
	buf := make([]byte, obj.DataSize)
	if obj.DataSize > 0 {
		if _, err := s.dump.ReadAt(buf, int64(obj.FileOffset)); err != nil {
			return nil, fmt.Errorf("heapdump: reading instance payload: %w", err)
		}
	}
	var refs []Reference
	pos := 0
	for _, f := range fields {
		w := valueSize(f.Type, s.idSize)
		if pos+w > len(buf) {
			break // truncated payload; stop rather than read out of bounds
		}
		if f.Type == TypeObject {
			addr := readAddrAt(buf[pos:], s.idSize)
			if addr != 0 {
				if target, err := s.ByAddress(addr); err == nil {
					refs = append(refs, Reference{TargetID32: target.ID32, FieldName: f.Name})
				}
			}
		}
		pos += w
	}
	return refs, nil
}

func readAddrAt(buf []byte, idSize int) Address {
	if idSize == 4 {
		return Address(uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]))
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(buf[i])
	}
	return Address(v)
}

// StreamAll iterates every id32 from 0 to the end of the address space,
// materialising each object without touching the LRU — the only path
// safe for whole-heap sweeps (inbound counting, approximate retained
// size) at hundred-million-object scale.
func (s *objectStore) StreamAll(fn func(*HeapObject) error) error {
	n := s.objectsR.Count()
	for i := uint64(0); i < n; i++ {
		raw, err := s.objectsR.entry(i)
		if err != nil {
			return err
		}
		e := decodeObjectEntry(raw)
		addr, _ := s.AddressByID32(ID32(e.ObjectID32))
		obj := &HeapObject{
			ID32:          ID32(e.ObjectID32),
			Address:       addr,
			ClassID32:     e.ClassID32,
			FileOffset:    e.FileOffset,
			DataSize:      e.DataSize,
			ArrayLength:   e.ArrayLength,
			ElementType:   BasicType(e.ElementType),
			RetainedSize:  -1,
			IsClassObject: e.Flags&objFlagIsClass != 0,
		}
		switch {
		case e.Flags&(1<<1) != 0:
			obj.Kind = KindObjectArray
		case e.Flags&(1<<2) != 0:
			obj.Kind = KindPrimitiveArray
		default:
			obj.Kind = KindInstance
		}
		if obj.IsClassObject {
			obj.ShallowSize = 0
			obj.RetainedSize = 0
		} else {
			obj.ShallowSize = s.shallowSize(obj)
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

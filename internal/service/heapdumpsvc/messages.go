package heapdumpsvc

// RetainedSizeRequest asks for the retained size of one object.
type RetainedSizeRequest struct {
	DumpPath string `json:"dump_path"`
	ObjectID uint32 `json:"object_id"`
}

// RetainedSizeResponse reports a retained size, exact or approximate.
type RetainedSizeResponse struct {
	RetainedSize int64 `json:"retained_size"`
	Exact        bool  `json:"exact"`
}

// DominatorsRequest asks for a (hybrid) dominator tree to be built over a
// dump, scoped to classes matching any of Globs (empty means every class).
type DominatorsRequest struct {
	DumpPath string   `json:"dump_path"`
	Globs    []string `json:"globs,omitempty"`
}

// DominatorsResponse confirms a dominator tree build completed.
type DominatorsResponse struct {
	Built bool `json:"built"`
}

// PathToGCRootRequest asks for the retention path from one object to a GC root.
type PathToGCRootRequest struct {
	DumpPath string `json:"dump_path"`
	ObjectID uint32 `json:"object_id"`
}

// PathStepMsg is one hop on a retention path.
type PathStepMsg struct {
	ObjectID  uint32 `json:"object_id"`
	FieldName string `json:"field_name"`
}

// PathToGCRootResponse is the retention path, root-most step first.
type PathToGCRootResponse struct {
	Steps []PathStepMsg `json:"steps"`
	Found bool          `json:"found"`
}

// ObjectByAddressRequest looks an object up by its original heap address.
type ObjectByAddressRequest struct {
	DumpPath string `json:"dump_path"`
	Address  uint64 `json:"address"`
}

// ObjectByAddressResponse describes the object found at that address.
type ObjectByAddressResponse struct {
	Found       bool   `json:"found"`
	ObjectID    uint32 `json:"object_id"`
	ClassName   string `json:"class_name"`
	ShallowSize int64  `json:"shallow_size"`
}

package sharing

import (
	"sort"

	"github.com/kestrelfs/kestrel/pkg/codec"
)

// Record is the per-directory sharing state: a mapping from child name to
// the sets of principals granted read and write access to it.
//
// Records are immutable values. Every mutating-looking method returns a new
// Record and leaves the receiver untouched, so a record loaded from the
// cache can be handed to a transform without defensive copying. A principal
// absent from both sets of a child has no recorded grant; a child with both
// sets empty is dropped from the record entirely, keeping the serialized
// form canonical.
type Record struct {
	reads  map[string]map[string]struct{}
	writes map[string]map[string]struct{}
}

// NewRecord returns the empty record.
func NewRecord() *Record {
	return &Record{
		reads:  map[string]map[string]struct{}{},
		writes: map[string]map[string]struct{}{},
	}
}

// IsEmpty reports whether no child has any recorded grant.
func (r *Record) IsEmpty() bool {
	return len(r.reads) == 0 && len(r.writes) == 0
}

// Get returns the share state of one child, empty if the child has no
// grants.
func (r *Record) Get(child string) FileShareState {
	return FileShareState{
		ReadAccess:  sortedSet(r.reads[child]),
		WriteAccess: sortedSet(r.writes[child]),
	}
}

// Add returns a record with names granted the given access on child.
func (r *Record) Add(access Access, child string, names []string) *Record {
	out := r.clone()
	target := out.setFor(access)

	set, ok := target[child]
	if !ok {
		set = map[string]struct{}{}
	} else {
		set = cloneSet(set)
	}
	for _, name := range names {
		set[name] = struct{}{}
	}
	target[child] = set

	return out
}

// Remove returns a record with names stripped of the given access on child.
func (r *Record) Remove(access Access, child string, names []string) *Record {
	out := r.clone()
	target := out.setFor(access)

	set, ok := target[child]
	if !ok {
		return out
	}

	set = cloneSet(set)
	for _, name := range names {
		delete(set, name)
	}
	if len(set) == 0 {
		delete(target, child)
	} else {
		target[child] = set
	}

	return out
}

// Clear returns a record with every grant on child removed. Other children
// are unaffected.
func (r *Record) Clear(child string) *Record {
	out := r.clone()
	delete(out.reads, child)
	delete(out.writes, child)
	return out
}

// Filter projects the record down to the single named child. The second
// return is false when the child has no grants at all.
func (r *Record) Filter(child string) (*Record, bool) {
	out := NewRecord()

	if set, ok := r.reads[child]; ok {
		out.reads[child] = cloneSet(set)
	}
	if set, ok := r.writes[child]; ok {
		out.writes[child] = cloneSet(set)
	}

	return out, !out.IsEmpty()
}

// ReadShares returns child name → sorted principals holding read access.
func (r *Record) ReadShares() map[string][]string {
	return flatten(r.reads)
}

// WriteShares returns child name → sorted principals holding write access.
func (r *Record) WriteShares() map[string][]string {
	return flatten(r.writes)
}

// recordWire is the serialized layout of a Record: two maps from child name
// to a sorted principal list. With sorted lists and the codec's
// deterministic map-key ordering, equal records always serialize to
// identical bytes, and the empty record to the canonical empty-map form.
type recordWire struct {
	Read  map[string][]string `cbor:"read"`
	Write map[string][]string `cbor:"write"`
}

// Serialize encodes the record to its canonical CBOR form.
func (r *Record) Serialize() ([]byte, error) {
	return codec.Marshal(recordWire{
		Read:  flatten(r.reads),
		Write: flatten(r.writes),
	})
}

// ParseRecord decodes a record serialized by Serialize.
func ParseRecord(data []byte) (*Record, error) {
	var wire recordWire
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	out := NewRecord()
	for child, names := range wire.Read {
		if len(names) == 0 {
			continue
		}
		out.reads[child] = toSet(names)
	}
	for child, names := range wire.Write {
		if len(names) == 0 {
			continue
		}
		out.writes[child] = toSet(names)
	}

	return out, nil
}

func (r *Record) setFor(access Access) map[string]map[string]struct{} {
	if access == AccessWrite {
		return r.writes
	}
	return r.reads
}

// clone copies the outer maps; inner sets stay shared until a mutation
// clones the one it touches.
func (r *Record) clone() *Record {
	out := NewRecord()
	for child, set := range r.reads {
		out.reads[child] = set
	}
	for child, set := range r.writes {
		out.writes[child] = set
	}
	return out
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for name := range set {
		out[name] = struct{}{}
	}
	return out
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func flatten(sets map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(sets))
	for child, set := range sets {
		out[child] = sortedSet(set)
	}
	return out
}

package plugin

import (
	"reflect"
	"sort"
)

// Entry is a registered plugin together with the id its family assigned.
type Entry[T Plugin] struct {
	ID     int
	Plugin T
}

// Label returns the plugin label.
func (e Entry[T]) Label() string { return e.Plugin.Label() }

// Order returns the plugin sort key.
func (e Entry[T]) Order() int { return e.Plugin.Order() }

func (e Entry[T]) String() string { return Describe(e.ID, e.Plugin) }

// Family is an ordered, id-assigning registry for one capability.
//
// Ids are assigned as one more than the highest id the family has ever
// issued (starting above baseID), so ids only grow and an unregistered
// plugin's id is never handed out again. Entries are kept stable-sorted by
// Order. A Family is not safe for concurrent mutation; register during
// startup before lookups begin.
type Family[T Plugin] struct {
	name    string
	baseID  int
	lastID  int
	entries []Entry[T]
}

// NewFamily creates an empty family whose first id is baseID+1.
func NewFamily[T Plugin](name string, baseID int) *Family[T] {
	return &Family[T]{name: name, baseID: baseID, lastID: baseID}
}

// Name returns the family name.
func (f *Family[T]) Name() string { return f.name }

// Register adds p and returns its id. Registering a plugin that is already
// present is a no-op that returns the existing id.
func (f *Family[T]) Register(p T) int {
	if i := f.index(p); i >= 0 {
		return f.entries[i].ID
	}

	id := f.lastID
	for _, e := range f.entries {
		if e.ID > id {
			id = e.ID
		}
	}
	id++
	f.lastID = id

	f.entries = append(f.entries, Entry[T]{ID: id, Plugin: p})
	sort.SliceStable(f.entries, func(i, j int) bool {
		return f.entries[i].Plugin.Order() < f.entries[j].Plugin.Order()
	})
	return id
}

// Unregister removes p and reports whether it was present. Remaining ids are
// left untouched.
func (f *Family[T]) Unregister(p T) bool {
	i := f.index(p)
	if i < 0 {
		return false
	}
	f.entries = append(f.entries[:i], f.entries[i+1:]...)
	return true
}

// Contains reports whether p is registered.
func (f *Family[T]) Contains(p T) bool {
	return f.index(p) >= 0
}

// Get looks a plugin up by id when key is an int and by label when key is a
// string. Any other key type finds nothing.
func (f *Family[T]) Get(key any) (Entry[T], bool) {
	switch k := key.(type) {
	case int:
		return f.ByID(k)
	case string:
		return f.ByLabel(k)
	default:
		return Entry[T]{}, false
	}
}

// ByID returns the entry with the given id.
func (f *Family[T]) ByID(id int) (Entry[T], bool) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry[T]{}, false
}

// ByLabel returns the first entry, in order, with the given label.
func (f *Family[T]) ByLabel(label string) (Entry[T], bool) {
	for _, e := range f.entries {
		if e.Plugin.Label() == label {
			return e, true
		}
	}
	return Entry[T]{}, false
}

// List returns a snapshot of the entries in order.
func (f *Family[T]) List() []Entry[T] {
	out := make([]Entry[T], len(f.entries))
	copy(out, f.entries)
	return out
}

// Plugins returns the registered plugins in order.
func (f *Family[T]) Plugins() []T {
	out := make([]T, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Plugin
	}
	return out
}

// Len returns the number of registered plugins.
func (f *Family[T]) Len() int { return len(f.entries) }

func (f *Family[T]) index(p T) int {
	for i, e := range f.entries {
		if samePlugin(e.Plugin, p) {
			return i
		}
	}
	return -1
}

// samePlugin compares by identity: equal dynamic types and equal values,
// which for pointer plugins means the same instance. Values holding
// something incomparable, such as a slice in an interface field, are never
// the same.
func samePlugin(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil {
		return false
	}
	if !identifiable(a) || !identifiable(b) {
		return false
	}
	return a == b
}

// identifiable reports whether p can be compared with == without panicking.
// The check looks at the dynamic contents of interface fields, not only the
// static type.
func identifiable(p any) bool {
	if p == nil {
		return false
	}
	return reflect.ValueOf(p).Comparable()
}

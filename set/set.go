// Package set implements a generic set data structure without
// committing to a particular element type; ddfmm uses it for the
// directions in a box's incdirset/outdirset.
package set

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
)

// Set is a set of unique elements. ddfmm's own instantiation is
// Set[boxkey.Direction] (a box's IncDirSet/OutDirSet, spec §4.4's
// record of which wedge directions a box has received from or sent
// into); the U/V/W/X lists stay plain slices.
type Set[T comparable] map[T]struct{}

// Of returns a Set initialized with [elts].
func Of[T comparable](elts ...T) Set[T] {
	s := make(Set[T], len(elts))
	s.Add(elts...)
	return s
}

// Add records elts as present, e.g. tree.computeLists calling
// IncDirSet.Add(d) once per direction a box's FarLists produces an
// entry for.
func (s Set[T]) Add(elts ...T) {
	for _, elt := range elts {
		s[elt] = struct{}{}
	}
}

// Contains reports whether elt is present.
func (s Set[T]) Contains(elt T) bool {
	_, ok := s[elt]
	return ok
}

// Remove drops elts if present; a no-op for elements not in the set.
func (s Set[T]) Remove(elts ...T) {
	for _, elt := range elts {
		delete(s, elt)
	}
}

// Clear empties the set in place.
func (s Set[T]) Clear() {
	maps.Clear(s)
}

// Len reports how many elements are present.
func (s Set[T]) Len() int {
	return len(s)
}

// List returns the elements as a slice, in no particular order.
func (s Set[T]) List() []T {
	return maps.Keys(s)
}

// Equals reports whether s and other hold exactly the same elements.
func (s Set[T]) Equals(other Set[T]) bool {
	return maps.Equal(s, other)
}

// Union returns a new set holding every element from either set,
// e.g. merging the OutDirSet of every box this rank owns at a level
// into one cross-rank picture of which wedge directions that level's
// high-frequency pass actually emits into (engine.DistinctOutgoingDirections).
func (s Set[T]) Union(other Set[T]) Set[T] {
	result := make(Set[T], max(s.Len(), other.Len()))
	maps.Copy(result, s)
	maps.Copy(result, other)
	return result
}

// Intersection returns a new set containing only elements present in
// both sets, e.g. comparing two boxes' IncDirSets to find wedge
// directions they both received data from.
func (s Set[T]) Intersection(other Set[T]) Set[T] {
	result := make(Set[T])

	// Iterate over the smaller set for efficiency
	if s.Len() < other.Len() {
		for elt := range s {
			if other.Contains(elt) {
				result.Add(elt)
			}
		}
	} else {
		for elt := range other {
			if s.Contains(elt) {
				result.Add(elt)
			}
		}
	}

	return result
}

// Difference returns a new set containing elements in s that are not
// in other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	result := make(Set[T])
	for elt := range s {
		if !other.Contains(elt) {
			result.Add(elt)
		}
	}
	return result
}

// Overlaps reports whether the sets have any elements in common.
func (s Set[T]) Overlaps(other Set[T]) bool {
	// Check the smaller set for efficiency
	if s.Len() < other.Len() {
		for elt := range s {
			if other.Contains(elt) {
				return true
			}
		}
	} else {
		for elt := range other {
			if s.Contains(elt) {
				return true
			}
		}
	}
	return false
}

// MarshalJSON implements json.Marshaler, flattening to a plain array
// so a Set[boxkey.Direction] serializes the same shape as any other
// direction slice codec.FieldMask touches.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var elts []T
	if err := json.Unmarshal(data, &elts); err != nil {
		return err
	}
	*s = Of(elts...)
	return nil
}

// String renders the set for logging, e.g. a box's IncDirSet in a
// ddlog debug line.
func (s Set[T]) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for elt := range s {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%v", elt)
	}
	sb.WriteString("}")
	return sb.String()
}

// Clone returns an independent copy, e.g. snapshotting a box's
// OutDirSet before folding it into a cross-rank Union so the
// original is never mutated by the merge.
func (s Set[T]) Clone() Set[T] {
	result := make(Set[T], s.Len())
	maps.Copy(result, s)
	return result
}

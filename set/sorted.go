package set

import (
	"cmp"
	"slices"
)

// SortedList returns the elements of the set in ascending order, for
// callers that need a fixed iteration order rather than map order; it
// is kept separate from the nondeterministic List. It needs a builtin
// ordered element type, so it does not apply to struct keys such as
// boxkey.BoxAndDirKey (partition.BuildBalanced sorts those itself).
func SortedList[T cmp.Ordered](s Set[T]) []T {
	l := s.List()
	slices.Sort(l)
	return l
}

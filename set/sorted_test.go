package set

import (
	"reflect"
	"testing"
)

func TestSortedListOrdersAscending(t *testing.T) {
	s := Of(3, 1, 4, 1, 5, 9, 2, 6)
	got := SortedList(s)
	want := []int{1, 2, 3, 4, 5, 6, 9}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortedList() = %v, want %v", got, want)
	}
}

func TestSortedListEmpty(t *testing.T) {
	s := Set[int]{}
	if got := SortedList(s); len(got) != 0 {
		t.Fatalf("SortedList(empty) = %v, want empty", got)
	}
}

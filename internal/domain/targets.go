package domain

import (
	"encoding/json"
	"sort"
)

// TargetSet is an immutable, sorted, deduplicated set of 1-based take-profit indexes.
// Every mutation returns a new set.
type TargetSet struct {
	idx []int
}

// NewTargetSet builds a set from arbitrary indexes, dropping duplicates and non-positive values.
func NewTargetSet(indexes ...int) TargetSet {
	var s TargetSet
	for _, i := range indexes {
		s = s.Insert(i)
	}
	return s
}

// Insert returns a set containing i. The receiver is never modified.
func (s TargetSet) Insert(i int) TargetSet {
	if i <= 0 || s.Contains(i) {
		return s
	}
	out := make([]int, 0, len(s.idx)+1)
	out = append(out, s.idx...)
	out = append(out, i)
	sort.Ints(out)
	return TargetSet{idx: out}
}

// Contains reports membership.
func (s TargetSet) Contains(i int) bool {
	n := sort.SearchInts(s.idx, i)
	return n < len(s.idx) && s.idx[n] == i
}

func (s TargetSet) Len() int { return len(s.idx) }

// Max returns the highest hit index, or 0 for an empty set.
func (s TargetSet) Max() int {
	if len(s.idx) == 0 {
		return 0
	}
	return s.idx[len(s.idx)-1]
}

// Slice returns a copy of the sorted indexes.
func (s TargetSet) Slice() []int {
	out := make([]int, len(s.idx))
	copy(out, s.idx)
	return out
}

// CoversAll reports whether every index 1..n is present.
func (s TargetSet) CoversAll(n int) bool {
	if n <= 0 {
		return false
	}
	for i := 1; i <= n; i++ {
		if !s.Contains(i) {
			return false
		}
	}
	return true
}

// Within reports whether every member lies in 1..n.
func (s TargetSet) Within(n int) bool {
	return len(s.idx) == 0 || (s.idx[0] >= 1 && s.idx[len(s.idx)-1] <= n)
}

// Union returns the set of members present in either set.
func (s TargetSet) Union(o TargetSet) TargetSet {
	out := s
	for _, i := range o.idx {
		out = out.Insert(i)
	}
	return out
}

func (s TargetSet) MarshalJSON() ([]byte, error) {
	if s.idx == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.idx)
}

func (s *TargetSet) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewTargetSet(raw...)
	return nil
}

package mdp

import "sort"

// ----- State sets -----

// StateSet is a set of state ids.
type StateSet map[int]struct{}

func NewStateSet(ids ...int) StateSet {
	s := make(StateSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s StateSet) Has(id int) bool { _, ok := s[id]; return ok }
func (s StateSet) Add(id int)      { s[id] = struct{}{} }
func (s StateSet) Remove(id int)   { delete(s, id) }
func (s StateSet) Size() int       { return len(s) }

func (s StateSet) Copy() StateSet {
	out := make(StateSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func (s StateSet) ToSlice() []int {
	out := make([]int, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

func (s StateSet) Equals(o StateSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

func (s StateSet) Intersect(o StateSet) StateSet {
	out := NewStateSet()
	for k := range s {
		if o.Has(k) {
			out.Add(k)
		}
	}
	return out
}

func (s StateSet) Union(o StateSet) StateSet {
	out := s.Copy()
	out.AddAll(o)
	return out
}

func (s StateSet) Difference(o StateSet) StateSet {
	out := NewStateSet()
	for k := range s {
		if !o.Has(k) {
			out.Add(k)
		}
	}
	return out
}

// AddAll adds every member of o to s in place.
func (s StateSet) AddAll(o StateSet) {
	for k := range o {
		s[k] = struct{}{}
	}
}

// Intersects reports whether s and o share a member.
func (s StateSet) Intersects(o StateSet) bool {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	for k := range small {
		if large.Has(k) {
			return true
		}
	}
	return false
}

// Sorted returns the members in ascending order.
func (s StateSet) Sorted() []int {
	out := s.ToSlice()
	sort.Ints(out)
	return out
}

// Min returns the smallest member, or -1 for an empty set.
func (s StateSet) Min() int {
	m := -1
	for k := range s {
		if m < 0 || k < m {
			m = k
		}
	}
	return m
}

package models

import (
	"encoding/json"
	"sort"
)

// CIDRSet is a set of CIDR strings. Entries are opaque tokens: no
// normalization is applied, so "10.0.0.0/24" and "10.0.0.0/24 " are distinct.
type CIDRSet map[string]struct{}

// NewCIDRSet creates a set holding the given entries
func NewCIDRSet(items ...string) CIDRSet {
	s := make(CIDRSet, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add inserts a CIDR into the set
func (s CIDRSet) Add(cidr string) {
	s[cidr] = struct{}{}
}

// AddAll inserts every given CIDR into the set
func (s CIDRSet) AddAll(cidrs ...string) {
	for _, c := range cidrs {
		s[c] = struct{}{}
	}
}

// Has reports whether the set contains cidr
func (s CIDRSet) Has(cidr string) bool {
	_, ok := s[cidr]
	return ok
}

// Len returns the number of entries
func (s CIDRSet) Len() int {
	return len(s)
}

// Difference returns the entries of s that are not in other
func (s CIDRSet) Difference(other CIDRSet) CIDRSet {
	out := make(CIDRSet)
	for c := range s {
		if !other.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

// Union returns a new set with the entries of both sets
func (s CIDRSet) Union(other CIDRSet) CIDRSet {
	out := make(CIDRSet, len(s)+len(other))
	for c := range s {
		out[c] = struct{}{}
	}
	for c := range other {
		out[c] = struct{}{}
	}
	return out
}

// Sorted returns the entries in lexical order
func (s CIDRSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted list
func (s CIDRSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a list into the set
func (s *CIDRSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewCIDRSet(items...)
	return nil
}

// MarshalYAML encodes the set as a sorted list
func (s CIDRSet) MarshalYAML() (interface{}, error) {
	return s.Sorted(), nil
}

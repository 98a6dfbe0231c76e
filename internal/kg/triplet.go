// Package kg holds knowledge-graph triplets and the graph built from them.
package kg

import (
	"fmt"
	"strings"
)

// Triplet is one subject-predicate-object fact.
type Triplet struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

func (t Triplet) String() string {
	return fmt.Sprintf("(%s, %s, %s)", t.Subject, t.Predicate, t.Object)
}

// key folds case and surrounding whitespace so near-identical triplets
// collapse to one.
func (t Triplet) key() string {
	return strings.ToLower(strings.TrimSpace(t.Subject)) + "\x00" +
		strings.ToLower(strings.TrimSpace(t.Predicate)) + "\x00" +
		strings.ToLower(strings.TrimSpace(t.Object))
}

// TripletSet is an insertion-ordered set of triplets. Membership ignores
// case. The first spelling seen wins.
type TripletSet struct {
	seen  map[string]struct{}
	items []Triplet
}

func NewTripletSet() *TripletSet {
	return &TripletSet{seen: make(map[string]struct{})}
}

// Add inserts t and reports whether it was new.
func (s *TripletSet) Add(t Triplet) bool {
	k := t.key()
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	s.items = append(s.items, t)
	return true
}

// AddAll inserts each triplet and returns how many were new.
func (s *TripletSet) AddAll(ts []Triplet) int {
	n := 0
	for _, t := range ts {
		if s.Add(t) {
			n++
		}
	}
	return n
}

func (s *TripletSet) Contains(t Triplet) bool {
	_, ok := s.seen[t.key()]
	return ok
}

// Items returns a copy of the set in insertion order.
func (s *TripletSet) Items() []Triplet {
	out := make([]Triplet, len(s.items))
	copy(out, s.items)
	return out
}

func (s *TripletSet) Len() int { return len(s.items) }

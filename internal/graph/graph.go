// Package graph provides an in-memory triple set with the structural
// operations the sync core needs: set difference, pattern matching and
// SPARQL term encoding.
package graph

import (
	"fmt"
	"io"

	"github.com/knakk/rdf"
)

// Graph is an insertion-ordered set of triples. Membership is decided by
// structural (serialized) equality, not term identity.
type Graph struct {
	keys    map[string]struct{}
	triples []rdf.Triple
}

// New creates a graph containing the given triples.
func New(triples ...rdf.Triple) *Graph {
	g := &Graph{keys: make(map[string]struct{})}
	g.Add(triples...)
	return g
}

func key(t rdf.Triple) string {
	return t.Serialize(rdf.NTriples)
}

// Add inserts triples, skipping ones already present.
func (g *Graph) Add(triples ...rdf.Triple) {
	for _, t := range triples {
		k := key(t)
		if _, ok := g.keys[k]; ok {
			continue
		}
		g.keys[k] = struct{}{}
		g.triples = append(g.triples, t)
	}
}

// Has reports whether the triple is in the graph.
func (g *Graph) Has(t rdf.Triple) bool {
	_, ok := g.keys[key(t)]
	return ok
}

// Len returns the number of triples in the graph.
func (g *Graph) Len() int {
	return len(g.triples)
}

// Triples returns the graph's triples in insertion order.
func (g *Graph) Triples() []rdf.Triple {
	out := make([]rdf.Triple, len(g.triples))
	copy(out, g.triples)
	return out
}

// Minus returns the triples of g that are not in other.
func (g *Graph) Minus(other *Graph) *Graph {
	diff := New()
	for _, t := range g.triples {
		if !other.Has(t) {
			diff.Add(t)
		}
	}
	return diff
}

// Equal reports whether both graphs hold the same triple set.
func (g *Graph) Equal(other *Graph) bool {
	if g.Len() != other.Len() {
		return false
	}
	for _, t := range g.triples {
		if !other.Has(t) {
			return false
		}
	}
	return true
}

func termEq(a, b rdf.Term) bool {
	return a.Serialize(rdf.NTriples) == b.Serialize(rdf.NTriples)
}

// Match returns all triples matching the given pattern. A nil position acts
// as a wildcard.
func (g *Graph) Match(s rdf.Subject, p rdf.Predicate, o rdf.Object) []rdf.Triple {
	var out []rdf.Triple
	for _, t := range g.triples {
		if s != nil && !termEq(t.Subj, s) {
			continue
		}
		if p != nil && !termEq(t.Pred, p) {
			continue
		}
		if o != nil && !termEq(t.Obj, o) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Objects returns the objects of all triples with the given subject and
// predicate.
func (g *Graph) Objects(s rdf.Subject, p rdf.Predicate) []rdf.Object {
	var out []rdf.Object
	for _, t := range g.Match(s, p, nil) {
		out = append(out, t.Obj)
	}
	return out
}

// FirstObject returns the object of the first triple with the given subject
// and predicate, or nil if there is none.
func (g *Graph) FirstObject(s rdf.Subject, p rdf.Predicate) rdf.Object {
	for _, t := range g.Match(s, p, nil) {
		return t.Obj
	}
	return nil
}

// Subjects returns the distinct subjects of all triples with the given
// predicate and object.
func (g *Graph) Subjects(p rdf.Predicate, o rdf.Object) []rdf.Subject {
	seen := make(map[string]struct{})
	var out []rdf.Subject
	for _, t := range g.Match(nil, p, o) {
		k := t.Subj.Serialize(rdf.NTriples)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t.Subj)
	}
	return out
}

// DecodeTurtle parses a Turtle document into a graph.
func DecodeTurtle(r io.Reader) (*Graph, error) {
	dec := rdf.NewTripleDecoder(r, rdf.Turtle)
	triples, err := dec.DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("failed to decode turtle document: %w", err)
	}
	return New(triples...), nil
}

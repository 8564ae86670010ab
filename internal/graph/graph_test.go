package graph_test

import (
	"strings"
	"testing"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpencilio/solid-shop-search-service/internal/graph"
	"github.com/redpencilio/solid-shop-search-service/internal/vocab"
)

func iri(t *testing.T, s string) rdf.IRI {
	t.Helper()
	out, err := rdf.NewIRI(s)
	require.NoError(t, err)
	return out
}

func lit(t *testing.T, s string) rdf.Literal {
	t.Helper()
	out, err := rdf.NewLiteral(s)
	require.NoError(t, err)
	return out
}

func triple(t *testing.T, s, p, o string) rdf.Triple {
	t.Helper()
	return rdf.Triple{Subj: iri(t, s), Pred: iri(t, p), Obj: iri(t, o)}
}

func TestGraph_AddDeduplicates(t *testing.T) {
	t.Parallel()

	tr := triple(t, "urn:s", "urn:p", "urn:o")
	g := graph.New(tr, tr)
	g.Add(tr)

	assert.Equal(t, 1, g.Len())
	assert.True(t, g.Has(tr))
}

func TestGraph_Minus(t *testing.T) {
	t.Parallel()

	a := triple(t, "urn:s", "urn:p", "urn:a")
	b := triple(t, "urn:s", "urn:p", "urn:b")
	c := triple(t, "urn:s", "urn:p", "urn:c")

	g := graph.New(a, b, c)
	diff := g.Minus(graph.New(b))

	assert.Equal(t, 2, diff.Len())
	assert.True(t, diff.Has(a))
	assert.False(t, diff.Has(b))
	assert.True(t, diff.Has(c))
}

func TestGraph_EqualIsStructural(t *testing.T) {
	t.Parallel()

	a := triple(t, "urn:s", "urn:p", "urn:a")
	b := triple(t, "urn:s", "urn:p", "urn:b")

	assert.True(t, graph.New(a, b).Equal(graph.New(b, a)))
	assert.False(t, graph.New(a).Equal(graph.New(b)))
	assert.False(t, graph.New(a).Equal(graph.New(a, b)))
}

func TestGraph_Match(t *testing.T) {
	t.Parallel()

	order := iri(t, "urn:o1")
	status := vocab.SchemaOrderStatus
	g := graph.New(
		rdf.Triple{Subj: order, Pred: status, Obj: vocab.SchemaOrderPaymentDue},
		rdf.Triple{Subj: order, Pred: vocab.SchemaOrderDate, Obj: lit(t, "2023-01-01")},
		rdf.Triple{Subj: iri(t, "urn:o2"), Pred: status, Obj: vocab.SchemaOrderDelivered},
	)

	tests := []struct {
		name string
		s    rdf.Subject
		p    rdf.Predicate
		o    rdf.Object
		want int
	}{
		{name: "subject and predicate", s: order, p: status, want: 1},
		{name: "predicate only", p: status, want: 2},
		{name: "full wildcard", want: 3},
		{name: "no match", s: iri(t, "urn:other"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Len(t, g.Match(tt.s, tt.p, tt.o), tt.want)
		})
	}
}

func TestGraph_SubjectsDistinct(t *testing.T) {
	t.Parallel()

	g := graph.New(
		rdf.Triple{Subj: iri(t, "urn:s1"), Pred: vocab.RDFType, Obj: vocab.GROffering},
		rdf.Triple{Subj: iri(t, "urn:s1"), Pred: vocab.RDFType, Obj: vocab.GROffering},
		rdf.Triple{Subj: iri(t, "urn:s2"), Pred: vocab.RDFType, Obj: vocab.GROffering},
	)

	assert.Len(t, g.Subjects(vocab.RDFType, vocab.GROffering), 2)
}

func TestDecodeTurtle(t *testing.T) {
	t.Parallel()

	doc := `
@prefix gr: <http://purl.org/goodrelations/v1#> .
<urn:offering1> a gr:Offering ;
    gr:name "Bike" .
`
	g, err := graph.DecodeTurtle(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 2, g.Len())
	assert.Len(t, g.Subjects(vocab.RDFType, vocab.GROffering), 1)
}

func TestDecodeTurtle_Invalid(t *testing.T) {
	t.Parallel()

	_, err := graph.DecodeTurtle(strings.NewReader("this is not turtle @@@"))
	assert.Error(t, err)
}

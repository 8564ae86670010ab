package orders_test

import (
	"testing"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpencilio/solid-shop-search-service/internal/graph"
	"github.com/redpencilio/solid-shop-search-service/internal/orders"
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

func tr(s rdf.Subject, p rdf.Predicate, o rdf.Object) rdf.Triple {
	return rdf.Triple{Subj: s, Pred: p, Obj: o}
}

// completeOffering returns the triples of one well-formed offering as a pod
// would publish it.
func completeOffering(t *testing.T, base string) []rdf.Triple {
	t.Helper()
	offering := iri(t, base+"offering")
	spec := iri(t, base+"price")
	product := iri(t, base+"product")
	seller := iri(t, base+"seller")

	return []rdf.Triple{
		tr(spec, vocab.RDFType, vocab.GRPriceSpecification),
		tr(spec, vocab.GRHasCurrency, lit(t, "EUR")),
		tr(spec, vocab.GRHasCurrencyValue, rdf.NewTypedLiteral("25.0", vocab.XSDFloat)),
		tr(offering, vocab.RDFType, vocab.GROffering),
		tr(offering, vocab.GRName, lit(t, "City bike")),
		tr(offering, vocab.GRDescription, lit(t, "A sturdy bike")),
		tr(offering, vocab.GRIncludes, product),
		tr(offering, vocab.GRHasPriceSpecification, spec),
		tr(product, vocab.RDFType, vocab.GRProductOrService),
		tr(product, vocab.GRName, lit(t, "Bike")),
		tr(product, vocab.GRDescription, lit(t, "Two wheels")),
		tr(seller, vocab.RDFType, vocab.GRBusinessEntity),
		tr(seller, vocab.GRLegalName, lit(t, "Bike Shop")),
		tr(seller, vocab.GRDescription, lit(t, "https://seller.example/profile#me")),
		tr(seller, vocab.GROffers, offering),
	}
}

func TestShapeOfferings(t *testing.T) {
	t.Parallel()

	const pod = "https://seller.example/"
	g := graph.New(completeOffering(t, "urn:shop:")...)

	shaped, err := orders.ShapeOfferings(g, pod)
	require.NoError(t, err)

	result := graph.New(shaped...)
	podIRI := iri(t, pod)

	// Every published triple survives shaping.
	for _, want := range completeOffering(t, "urn:shop:") {
		assert.True(t, result.Has(want), "missing %s", want.Serialize(rdf.NTriples))
	}

	// Every typed subject is tagged with its pod of origin.
	for _, subject := range []string{"urn:shop:offering", "urn:shop:price", "urn:shop:product", "urn:shop:seller"} {
		assert.True(t, result.Has(tr(iri(t, subject), vocab.ExtPod, podIRI)), "no provenance for %s", subject)
	}
}

func TestShapeOfferings_DropsIncompleteShapes(t *testing.T) {
	t.Parallel()

	// An offering whose product lacks a description is incomplete.
	offering := iri(t, "urn:shop:broken")
	spec := iri(t, "urn:shop:broken-price")
	product := iri(t, "urn:shop:broken-product")

	g := graph.New(
		tr(spec, vocab.RDFType, vocab.GRPriceSpecification),
		tr(spec, vocab.GRHasCurrency, lit(t, "EUR")),
		tr(spec, vocab.GRHasCurrencyValue, rdf.NewTypedLiteral("5.0", vocab.XSDFloat)),
		tr(offering, vocab.RDFType, vocab.GROffering),
		tr(offering, vocab.GRName, lit(t, "Broken")),
		tr(offering, vocab.GRDescription, lit(t, "Broken offering")),
		tr(offering, vocab.GRIncludes, product),
		tr(offering, vocab.GRHasPriceSpecification, spec),
		tr(product, vocab.RDFType, vocab.GRProductOrService),
		tr(product, vocab.GRName, lit(t, "Nameless")),
	)

	shaped, err := orders.ShapeOfferings(g, "https://seller.example/")
	require.NoError(t, err)
	assert.Empty(t, shaped)
}

func TestShapeOfferings_KeepsProductImages(t *testing.T) {
	t.Parallel()

	triples := completeOffering(t, "urn:shop:")
	image := tr(iri(t, "urn:shop:product"), vocab.SchemaImage, iri(t, "https://seller.example/bike.png"))
	g := graph.New(append(triples, image)...)

	shaped, err := orders.ShapeOfferings(g, "https://seller.example/")
	require.NoError(t, err)
	assert.True(t, graph.New(shaped...).Has(image))
}

func TestShapeOfferings_InvalidPod(t *testing.T) {
	t.Parallel()

	_, err := orders.ShapeOfferings(graph.New(), "not an iri")
	assert.Error(t, err)
}

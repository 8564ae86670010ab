package orders

import (
	"fmt"

	"github.com/knakk/rdf"

	"github.com/redpencilio/solid-shop-search-service/internal/graph"
	"github.com/redpencilio/solid-shop-search-service/internal/vocab"
)

// Documents a party publishes inside its pod.
const (
	OfferingsDocument = "private/tests/my-offerings.ttl"
	ProductsDocument  = "private/tests/my-products.ttl"
)

// ShapeOfferings extracts the well-formed offering subgraphs from a pod's
// merged documents and tags every typed subject with its pod of origin.
// An offering is kept only when its price specification, product and seller
// shapes are complete; partial shapes are dropped silently, matching the
// closed construct pattern the catalog is queried with.
func ShapeOfferings(g *graph.Graph, pod string) ([]rdf.Triple, error) {
	podIRI, err := rdf.NewIRI(pod)
	if err != nil {
		return nil, fmt.Errorf("invalid pod IRI %q: %w", pod, err)
	}

	shaped := graph.New()
	for _, offering := range g.Subjects(vocab.RDFType, vocab.GROffering) {
		shapeOffering(g, shaped, offering)
	}

	// Provenance: one ext:pod triple per typed subject, so a later sync can
	// find and retract everything this pod contributed.
	for _, t := range shaped.Match(nil, vocab.RDFType, nil) {
		shaped.Add(triple(t.Subj, vocab.ExtPod, podIRI))
	}
	return shaped.Triples(), nil
}

func shapeOffering(g, shaped *graph.Graph, offering rdf.Subject) {
	name := g.FirstObject(offering, vocab.GRName)
	description := g.FirstObject(offering, vocab.GRDescription)
	if name == nil || description == nil {
		return
	}

	var specs, products []rdf.Triple
	for _, spec := range g.Objects(offering, vocab.GRHasPriceSpecification) {
		specs = append(specs, shapePriceSpecification(g, spec)...)
	}
	for _, product := range g.Objects(offering, vocab.GRIncludes) {
		products = append(products, shapeProduct(g, product)...)
	}
	if len(specs) == 0 || len(products) == 0 {
		return
	}

	shaped.Add(specs...)
	shaped.Add(products...)
	shaped.Add(
		triple(offering, vocab.RDFType, vocab.GROffering),
		triple(offering, vocab.GRName, name),
		triple(offering, vocab.GRDescription, description),
	)
	for _, spec := range g.Objects(offering, vocab.GRHasPriceSpecification) {
		if subj, ok := spec.(rdf.Subject); ok && shaped.Has(triple(subj, vocab.RDFType, vocab.GRPriceSpecification)) {
			shaped.Add(triple(offering, vocab.GRHasPriceSpecification, spec))
		}
	}
	for _, product := range g.Objects(offering, vocab.GRIncludes) {
		if subj, ok := product.(rdf.Subject); ok && shaped.Has(triple(subj, vocab.RDFType, vocab.GRProductOrService)) {
			shaped.Add(triple(offering, vocab.GRIncludes, product))
		}
	}

	shapeSellers(g, shaped, offering)
}

func shapePriceSpecification(g *graph.Graph, spec rdf.Object) []rdf.Triple {
	subj, ok := spec.(rdf.Subject)
	if !ok {
		return nil
	}
	if !g.Has(triple(subj, vocab.RDFType, vocab.GRPriceSpecification)) {
		return nil
	}
	currency := g.FirstObject(subj, vocab.GRHasCurrency)
	value := g.FirstObject(subj, vocab.GRHasCurrencyValue)
	if currency == nil || value == nil {
		return nil
	}
	return []rdf.Triple{
		triple(subj, vocab.RDFType, vocab.GRPriceSpecification),
		triple(subj, vocab.GRHasCurrency, currency),
		triple(subj, vocab.GRHasCurrencyValue, value),
	}
}

func shapeProduct(g *graph.Graph, product rdf.Object) []rdf.Triple {
	subj, ok := product.(rdf.Subject)
	if !ok {
		return nil
	}
	if !g.Has(triple(subj, vocab.RDFType, vocab.GRProductOrService)) {
		return nil
	}
	name := g.FirstObject(subj, vocab.GRName)
	description := g.FirstObject(subj, vocab.GRDescription)
	if name == nil || description == nil {
		return nil
	}
	out := []rdf.Triple{
		triple(subj, vocab.RDFType, vocab.GRProductOrService),
		triple(subj, vocab.GRName, name),
		triple(subj, vocab.GRDescription, description),
	}
	for _, image := range g.Objects(subj, vocab.SchemaImage) {
		out = append(out, triple(subj, vocab.SchemaImage, image))
	}
	return out
}

func shapeSellers(g, shaped *graph.Graph, offering rdf.Subject) {
	offeringObj, ok := offering.(rdf.Object)
	if !ok {
		return
	}
	for _, seller := range g.Subjects(vocab.GROffers, offeringObj) {
		if !g.Has(triple(seller, vocab.RDFType, vocab.GRBusinessEntity)) {
			continue
		}
		legalName := g.FirstObject(seller, vocab.GRLegalName)
		if legalName == nil {
			continue
		}
		shaped.Add(
			triple(seller, vocab.RDFType, vocab.GRBusinessEntity),
			triple(seller, vocab.GRLegalName, legalName),
			triple(seller, vocab.GROffers, offeringObj),
		)
		// The seller's description carries its web id when published.
		if webID := g.FirstObject(seller, vocab.GRDescription); webID != nil {
			shaped.Add(triple(seller, vocab.GRDescription, webID))
		}
	}
}

func triple(s rdf.Subject, p rdf.Predicate, o rdf.Object) rdf.Triple {
	return rdf.Triple{Subj: s, Pred: p, Obj: o}
}

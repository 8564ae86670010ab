// Package vocab defines the RDF vocabulary shared by the broker components.
package vocab

import "github.com/knakk/rdf"

// Namespace prefixes used across catalog and pod data.
const (
	ExtNS           = "http://mu.semte.ch/vocabularies/ext/"
	SchemaNS        = "http://schema.org/"
	GoodRelationsNS = "http://purl.org/goodrelations/v1#"
	XSDNS           = "http://www.w3.org/2001/XMLSchema#"
	RDFNS           = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
)

func mustIRI(s string) rdf.IRI {
	iri, err := rdf.NewIRI(s)
	if err != nil {
		panic(err)
	}
	return iri
}

// RDFType is rdf:type.
var RDFType = mustIRI(RDFNS + "type")

// Application vocabulary (ext: namespace).
var (
	ExtPod          = mustIRI(ExtNS + "pod")
	ExtTask         = mustIRI(ExtNS + "Task")
	ExtTaskType     = mustIRI(ExtNS + "taskType")
	ExtTaskStatus   = mustIRI(ExtNS + "taskStatus")
	ExtOrder        = mustIRI(ExtNS + "order")
	ExtWebID        = mustIRI(ExtNS + "webId")
	ExtBuyerPod     = mustIRI(ExtNS + "buyerPod")
	ExtSellerPod    = mustIRI(ExtNS + "sellerPod")
	ExtClientID     = mustIRI(ExtNS + "clientId")
	ExtClientSecret = mustIRI(ExtNS + "clientSecret")
	ExtIDPUrl       = mustIRI(ExtNS + "IDPUrl")
	ExtIDPType      = mustIRI(ExtNS + "IDPType")
	ExtMollieAPIKey = mustIRI(ExtNS + "mollieApiKey")
)

// Task type identifiers stored in the task graph.
var (
	ExtSyncOfferingsTask = mustIRI(ExtNS + "SyncOfferingsTask")
	ExtSavedOrderTask    = mustIRI(ExtNS + "SavedOrderTask")
	ExtUpdatedOrderTask  = mustIRI(ExtNS + "UpdatedOrderTask")
)

// schema.org vocabulary.
var (
	SchemaOrder           = mustIRI(SchemaNS + "Order")
	SchemaOffer           = mustIRI(SchemaNS + "Offer")
	SchemaAcceptedOffer   = mustIRI(SchemaNS + "acceptedOffer")
	SchemaOrderStatus     = mustIRI(SchemaNS + "orderStatus")
	SchemaOrderDate       = mustIRI(SchemaNS + "orderDate")
	SchemaSeller          = mustIRI(SchemaNS + "seller")
	SchemaCustomer        = mustIRI(SchemaNS + "customer")
	SchemaBroker          = mustIRI(SchemaNS + "broker")
	SchemaPaymentMethodID = mustIRI(SchemaNS + "paymentMethodId")
	SchemaName            = mustIRI(SchemaNS + "name")
	SchemaDescription     = mustIRI(SchemaNS + "description")
	SchemaPrice           = mustIRI(SchemaNS + "price")
	SchemaPriceCurrency   = mustIRI(SchemaNS + "priceCurrency")
	SchemaImage           = mustIRI(SchemaNS + "image")

	// Order status values.
	SchemaOrderPaymentDue = mustIRI(SchemaNS + "OrderPaymentDue")
	SchemaOrderDelivered  = mustIRI(SchemaNS + "OrderDelivered")
)

// GoodRelations vocabulary describing offerings in pods.
var (
	GRPriceSpecification    = mustIRI(GoodRelationsNS + "PriceSpecification")
	GROffering              = mustIRI(GoodRelationsNS + "Offering")
	GRProductOrService      = mustIRI(GoodRelationsNS + "ProductOrService")
	GRBusinessEntity        = mustIRI(GoodRelationsNS + "BusinessEntity")
	GRHasCurrency           = mustIRI(GoodRelationsNS + "hasCurrency")
	GRHasCurrencyValue      = mustIRI(GoodRelationsNS + "hasCurrencyValue")
	GRName                  = mustIRI(GoodRelationsNS + "name")
	GRDescription           = mustIRI(GoodRelationsNS + "description")
	GRIncludes              = mustIRI(GoodRelationsNS + "includes")
	GRHasPriceSpecification = mustIRI(GoodRelationsNS + "hasPriceSpecification")
	GRLegalName             = mustIRI(GoodRelationsNS + "legalName")
	GROffers                = mustIRI(GoodRelationsNS + "offers")
)

// XSD datatypes with a defined SPARQL textual form.
var (
	XSDString   = mustIRI(XSDNS + "string")
	XSDInteger  = mustIRI(XSDNS + "integer")
	XSDDecimal  = mustIRI(XSDNS + "decimal")
	XSDFloat    = mustIRI(XSDNS + "float")
	XSDDouble   = mustIRI(XSDNS + "double")
	XSDBoolean  = mustIRI(XSDNS + "boolean")
	XSDDateTime = mustIRI(XSDNS + "dateTime")
)

// IRI builds an IRI term from a trusted string, panicking on invalid input.
// Use only for values the broker itself constructs.
func IRI(s string) rdf.IRI {
	return mustIRI(s)
}

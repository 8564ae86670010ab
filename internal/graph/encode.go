package graph

import (
	"fmt"
	"strings"

	"github.com/knakk/rdf"

	"github.com/redpencilio/solid-shop-search-service/internal/vocab"
)

// datatypes that have a defined textual form in the stores we write to.
var encodableDatatypes = map[string]struct{}{
	vocab.XSDString.String():   {},
	vocab.XSDInteger.String():  {},
	vocab.XSDDecimal.String():  {},
	vocab.XSDFloat.String():    {},
	vocab.XSDDouble.String():   {},
	vocab.XSDBoolean.String():  {},
	vocab.XSDDateTime.String(): {},
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// EncodeTerm renders a single term in its SPARQL textual form. Plain strings
// render without a datatype tag; other supported datatypes carry the full
// datatype IRI. Unsupported datatypes are an error rather than silently
// mangled data.
func EncodeTerm(t rdf.Term) (string, error) {
	switch t.Type() {
	case rdf.TermIRI:
		return "<" + t.String() + ">", nil
	case rdf.TermBlank:
		return t.Serialize(rdf.NTriples), nil
	case rdf.TermLiteral:
		lit, ok := t.(rdf.Literal)
		if !ok {
			return "", fmt.Errorf("literal term has unexpected concrete type %T", t)
		}
		value := literalEscaper.Replace(lit.String())
		if lang := lit.Lang(); lang != "" {
			return `"` + value + `"@` + lang, nil
		}
		dt := lit.DataType.String()
		if dt == "" || dt == vocab.XSDString.String() {
			return `"` + value + `"`, nil
		}
		if _, supported := encodableDatatypes[dt]; !supported {
			return "", fmt.Errorf("unsupported datatype %s", dt)
		}
		return fmt.Sprintf(`"%s"^^<%s>`, value, dt), nil
	default:
		return "", fmt.Errorf("unknown term type %v", t.Type())
	}
}

// EncodeTriple renders a triple as a SPARQL statement terminated with a dot.
func EncodeTriple(t rdf.Triple) (string, error) {
	s, err := EncodeTerm(t.Subj)
	if err != nil {
		return "", err
	}
	p, err := EncodeTerm(t.Pred)
	if err != nil {
		return "", err
	}
	o, err := EncodeTerm(t.Obj)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s .", s, p, o), nil
}

// EncodeTriples renders a set of triples as newline-separated statements.
func EncodeTriples(triples []rdf.Triple) (string, error) {
	lines := make([]string, 0, len(triples))
	for _, t := range triples {
		line, err := EncodeTriple(t)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

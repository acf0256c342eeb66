package ontology

import "github.com/JULIELab/julielab-bioportal-ontology-tools/bioportal"

// Default annotation property IRIs, in cascade order. These cover the
// conventions of OWL, SKOS, OBO and the Information Artifact Ontology.
var (
	defaultNameProperties = []string{
		"http://www.w3.org/2000/01/rdf-schema#label",
		"http://www.w3.org/2004/02/skos/core#prefLabel",
		"http://purl.obolibrary.org/obo/IAO_0000111",
	}
	defaultSynonymProperties = []string{
		"http://www.w3.org/2004/02/skos/core#altLabel",
		"http://www.geneontology.org/formats/oboInOwl#hasExactSynonym",
		"http://purl.obolibrary.org/obo/IAO_0000118",
	}
	defaultDefinitionProperties = []string{
		"http://www.w3.org/2004/02/skos/core#definition",
		"http://www.geneontology.org/formats/oboInOwl#hasDefinition",
		"http://purl.obolibrary.org/obo/IAO_0000115",
	}
	defaultObsoleteProperties = []string{
		"http://www.w3.org/2002/07/owl#deprecated",
	}
)

// PropertySet holds the ordered annotation property cascades used to
// resolve a concept's name, synonyms, definition and obsolete marker.
type PropertySet struct {
	Name       []string
	Synonym    []string
	Definition []string
	Obsolete   []string
}

// NewPropertySet builds the cascades for an ontology. Properties declared
// by the submission take precedence and are prepended ahead of the
// defaults; a nil submission yields the plain default cascades.
func NewPropertySet(sub *bioportal.Submission) PropertySet {
	props := PropertySet{
		Name:       defaultNameProperties,
		Synonym:    defaultSynonymProperties,
		Definition: defaultDefinitionProperties,
		Obsolete:   defaultObsoleteProperties,
	}
	if sub == nil {
		return props
	}
	props.Name = prepend(sub.PrefLabelProperty, props.Name)
	props.Synonym = prepend(sub.SynonymProperty, props.Synonym)
	props.Definition = prepend(sub.DefinitionProperty, props.Definition)
	props.Obsolete = prepend(sub.ObsoleteProperty, props.Obsolete)
	return props
}

// prepend puts a declared property ahead of the defaults unless it is empty
// or already part of the cascade.
func prepend(declared string, defaults []string) []string {
	if declared == "" {
		return defaults
	}
	for _, p := range defaults {
		if p == declared {
			return defaults
		}
	}
	return append([]string{declared}, defaults...)
}

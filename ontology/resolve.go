package ontology

import (
	"log/slog"
	"strings"
)

// ConceptRecord is the serialized form of one resolved concept. The JSON
// shape mirrors the remote classes API so downstream consumers can read
// extracted and fetched class records alike.
type ConceptRecord struct {
	ID         string       `json:"@id"`
	PrefLabel  string       `json:"prefLabel,omitempty"`
	Synonym    *SynonymList `json:"synonym,omitempty"`
	Definition []string     `json:"definition,omitempty"`
	Parents    *ParentList  `json:"parents,omitempty"`
	Obsolete   bool         `json:"obsolete,omitempty"`
}

// SynonymList wraps the synonym array under its own key.
type SynonymList struct {
	Synonyms []string `json:"synonyms"`
}

// ParentList wraps the parent IRI array under its own key.
type ParentList struct {
	Parents []string `json:"parents"`
}

// Resolve builds the record for one concept by running every cascade
// against the graph.
func Resolve(conceptID string, props PropertySet, graph Graph) ConceptRecord {
	record := ConceptRecord{
		ID:        conceptID,
		PrefLabel: PreferredName(conceptID, props, graph),
		Obsolete:  IsObsolete(conceptID, props, graph),
	}
	if synonyms := Synonyms(conceptID, props, graph); len(synonyms) > 0 {
		record.Synonym = &SynonymList{Synonyms: synonyms}
	}
	if definition, ok := Definition(conceptID, props, graph); ok {
		record.Definition = []string{definition}
	}
	if parents := Parents(conceptID, graph); len(parents) > 0 {
		record.Parents = &ParentList{Parents: parents}
	}
	return record
}

// PreferredName resolves a concept's display name. The first property of
// the cascade whose first value is non-blank wins; without any match the
// name falls back to the IRI fragment.
func PreferredName(conceptID string, props PropertySet, graph Graph) string {
	for _, property := range props.Name {
		values := graph.Annotations(conceptID, property)
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return values[0]
		}
	}
	return IRIFragment(conceptID)
}

// Synonyms aggregates every non-blank value of every synonym property, in
// cascade order. Unlike the name cascade, all properties contribute.
func Synonyms(conceptID string, props PropertySet, graph Graph) []string {
	var synonyms []string
	for _, property := range props.Synonym {
		for _, value := range graph.Annotations(conceptID, property) {
			if strings.TrimSpace(value) != "" {
				synonyms = append(synonyms, value)
			}
		}
	}
	return synonyms
}

// Definition resolves a concept's definition as the first non-blank value
// across the definition cascade. The second return is false when no
// property carries one.
func Definition(conceptID string, props PropertySet, graph Graph) (string, bool) {
	for _, property := range props.Definition {
		for _, value := range graph.Annotations(conceptID, property) {
			if strings.TrimSpace(value) != "" {
				return value, true
			}
		}
	}
	return "", false
}

// IsObsolete reports whether any obsolete property marks the concept as
// deprecated. Only the literals "true" and "false" count as booleans; any
// other value is logged and treated as false.
func IsObsolete(conceptID string, props PropertySet, graph Graph) bool {
	obsolete := false
	for _, property := range props.Obsolete {
		for _, value := range graph.Annotations(conceptID, property) {
			switch strings.ToLower(strings.TrimSpace(value)) {
			case "true":
				obsolete = true
			case "false":
			default:
				slog.Warn("Obsolete marker is not a boolean, ignoring",
					"concept", conceptID, "property", property, "value", value)
			}
		}
	}
	return obsolete
}

// Parents returns the concept's named superclasses.
func Parents(conceptID string, graph Graph) []string {
	return graph.Superclasses(conceptID)
}

// IRIFragment derives a fallback name from a concept IRI: the part after
// '#' when present, otherwise the last path segment, otherwise the IRI
// itself.
func IRIFragment(iri string) string {
	if idx := strings.IndexByte(iri, '#'); idx >= 0 && idx+1 < len(iri) {
		return iri[idx+1:]
	}
	if idx := strings.LastIndexByte(iri, '/'); idx >= 0 && idx+1 < len(iri) {
		return iri[idx+1:]
	}
	return iri
}

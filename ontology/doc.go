// Package ontology resolves concept names, synonyms, definitions and
// obsolete markers from a loaded ontology graph.
//
// Every piece of information is looked up through an ordered cascade of
// annotation property IRIs. The cascades start with OWL, SKOS, OBO and IAO
// defaults; an ontology's submission may declare its own properties, which
// are then consulted first. Name and definition are first-match cascades,
// synonyms aggregate across all properties, and the obsolete marker is the
// OR over all declared deprecation values.
//
// Parsing and reasoning live behind the Loader and Graph interfaces; the
// engine works the same over asserted and reasoned parentage.
package ontology

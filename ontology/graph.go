package ontology

import "context"

// Graph is the read view of a loaded ontology. Whether Superclasses returns
// asserted or reasoned parentage is a property of the implementation chosen
// at load time; consumers never distinguish the two.
type Graph interface {
	// Concepts returns the IRIs of all classes in the ontology.
	Concepts() []string
	// Annotations returns the values of an annotation property on a
	// concept, empty when the property is absent.
	Annotations(concept, property string) []string
	// Superclasses returns the named direct superclasses of a concept.
	Superclasses(concept string) []string
}

// Loader parses an ontology source file into a Graph. Implementations wrap
// external parsers; reasoned selects an implementation with inferred
// parentage.
type Loader interface {
	Load(ctx context.Context, path string, reasoned bool) (Graph, error)
}

// MemoryGraph is an in-memory Graph used as the reference implementation
// and by tests. The zero value is not usable; construct with NewMemoryGraph.
type MemoryGraph struct {
	concepts    []string
	seen        map[string]bool
	annotations map[string]map[string][]string
	parents     map[string][]string
}

// NewMemoryGraph returns an empty graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		seen:        make(map[string]bool),
		annotations: make(map[string]map[string][]string),
		parents:     make(map[string][]string),
	}
}

// AddConcept registers a class IRI. Adding twice is harmless; insertion
// order is preserved.
func (g *MemoryGraph) AddConcept(iri string) *MemoryGraph {
	if !g.seen[iri] {
		g.seen[iri] = true
		g.concepts = append(g.concepts, iri)
	}
	return g
}

// AddAnnotation appends annotation values for a property on a concept.
func (g *MemoryGraph) AddAnnotation(concept, property string, values ...string) *MemoryGraph {
	g.AddConcept(concept)
	props := g.annotations[concept]
	if props == nil {
		props = make(map[string][]string)
		g.annotations[concept] = props
	}
	props[property] = append(props[property], values...)
	return g
}

// AddSuperclass records a named superclass of a concept.
func (g *MemoryGraph) AddSuperclass(concept, parent string) *MemoryGraph {
	g.AddConcept(concept)
	g.parents[concept] = append(g.parents[concept], parent)
	return g
}

func (g *MemoryGraph) Concepts() []string {
	return g.concepts
}

func (g *MemoryGraph) Annotations(concept, property string) []string {
	return g.annotations[concept][property]
}

func (g *MemoryGraph) Superclasses(concept string) []string {
	return g.parents[concept]
}

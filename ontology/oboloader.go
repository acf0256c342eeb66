package ontology

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/fileio"
)

// OBO tag values map onto the same annotation property IRIs the default
// cascades consult, so resolved records look identical regardless of the
// source format.
const (
	oboPURLPrefix = "http://purl.obolibrary.org/obo/"

	labelProperty      = "http://www.w3.org/2000/01/rdf-schema#label"
	synonymProperty    = "http://www.geneontology.org/formats/oboInOwl#hasExactSynonym"
	definitionProperty = "http://www.geneontology.org/formats/oboInOwl#hasDefinition"
	obsoleteProperty   = "http://www.w3.org/2002/07/owl#deprecated"
)

// OBOLoader parses OBO flat files into a MemoryGraph. Compressed sources
// are handled transparently. OBO carries only asserted parentage; a request
// for reasoning is noted and served with the asserted graph.
type OBOLoader struct{}

// NewOBOLoader returns a loader for .obo sources.
func NewOBOLoader() *OBOLoader {
	return &OBOLoader{}
}

// Load parses the OBO file at path.
func (l *OBOLoader) Load(_ context.Context, path string, reasoned bool) (Graph, error) {
	if !isOBO(path) {
		return nil, errors.WrapPermanent(errors.ErrParse, "ontology", "Load",
			fmt.Sprintf("unsupported ontology format %s", filepath.Base(path)))
	}
	if reasoned {
		slog.Debug("OBO sources carry asserted parentage only", "file", path)
	}

	r, err := fileio.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "ontology", "Load", "open ontology source")
	}
	defer r.Close()

	graph := NewMemoryGraph()
	var termID string
	inTerm := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inTerm = line == "[Term]"
			termID = ""
			continue
		}
		if !inTerm {
			continue
		}

		tag, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		if tag == "id" {
			termID = oboIRI(value)
			graph.AddConcept(termID)
			continue
		}
		if termID == "" {
			continue
		}

		switch tag {
		case "name":
			graph.AddAnnotation(termID, labelProperty, value)
		case "synonym":
			if quoted, ok := quotedValue(value); ok {
				graph.AddAnnotation(termID, synonymProperty, quoted)
			}
		case "def":
			if quoted, ok := quotedValue(value); ok {
				graph.AddAnnotation(termID, definitionProperty, quoted)
			}
		case "is_a":
			graph.AddSuperclass(termID, oboIRI(stripComment(value)))
		case "is_obsolete":
			graph.AddAnnotation(termID, obsoleteProperty, stripComment(value))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapPermanent(err, "ontology", "Load", "scan ontology source")
	}
	return graph, nil
}

func isOBO(path string) bool {
	lower := strings.ToLower(path)
	lower = strings.TrimSuffix(lower, ".gz")
	lower = strings.TrimSuffix(lower, ".gzip")
	return strings.HasSuffix(lower, ".obo")
}

// oboIRI maps an OBO identifier like GO:0008150 onto its OBO Library PURL.
// Full IRIs pass through unchanged.
func oboIRI(id string) string {
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return id
	}
	return oboPURLPrefix + strings.Replace(id, ":", "_", 1)
}

// quotedValue extracts the leading quoted string of an OBO tag value,
// honoring escaped quotes.
func quotedValue(value string) (string, bool) {
	if !strings.HasPrefix(value, `"`) {
		return "", false
	}
	var b strings.Builder
	escaped := false
	for _, r := range value[1:] {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			return b.String(), true
		default:
			b.WriteRune(r)
		}
	}
	return "", false
}

// stripComment removes an OBO line comment introduced by "!".
func stripComment(value string) string {
	if idx := strings.Index(value, "!"); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}

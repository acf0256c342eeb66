package bioportal

import "encoding/json"

// OntologyMeta is one entry of the remote ontology catalog. Instances are
// immutable for the duration of a run; the Metric and Groups sub-records are
// attached lazily after listing.
type OntologyMeta struct {
	ID           string         `json:"@id"`
	Type         string         `json:"@type,omitempty"`
	Acronym      string         `json:"acronym"`
	Name         string         `json:"name"`
	Group        []string       `json:"group,omitempty"`
	OntologyType string         `json:"ontologyType,omitempty"`
	SummaryOnly  bool           `json:"summaryOnly,omitempty"`
	Links        *OntologyLinks `json:"links,omitempty"`

	// Not sent by the catalog endpoint; requested separately and attached
	// for storage.
	Groups []OntologyGroup `json:"ontologyGroups,omitempty"`
	Metric *OntologyMetric `json:"ontologyMetric,omitempty"`
}

// APIURL returns the ontology's canonical API URI.
func (m *OntologyMeta) APIURL() string {
	return m.ID
}

// OntologyLinks holds the per-ontology endpoint URIs advertised by the
// catalog.
type OntologyLinks struct {
	Download         string `json:"download,omitempty"`
	Submissions      string `json:"submissions,omitempty"`
	Projects         string `json:"projects,omitempty"`
	Analytics        string `json:"analytics,omitempty"`
	Mappings         string `json:"mappings,omitempty"`
	LatestSubmission string `json:"latest_submission,omitempty"`
	Metrics          string `json:"metrics,omitempty"`
	Classes          string `json:"classes,omitempty"`
	UI               string `json:"ui,omitempty"`
}

// Submission is the per-ontology declaration of which annotation properties
// carry name, synonym, definition and obsolete-marker information, plus
// bibliographic fields. Absence of a submission is valid and triggers the
// default property cascade.
type Submission struct {
	ID                  string `json:"@id,omitempty"`
	SubmissionID        int    `json:"submissionId,omitempty"`
	Version             string `json:"version,omitempty"`
	Status              string `json:"status,omitempty"`
	Description         string `json:"description,omitempty"`
	Homepage            string `json:"homepage,omitempty"`
	Documentation       string `json:"documentation,omitempty"`
	Publication         string `json:"publication,omitempty"`
	Released            string `json:"released,omitempty"`
	CreationDate        string `json:"creationDate,omitempty"`
	HasOntologyLanguage string `json:"hasOntologyLanguage,omitempty"`

	PrefLabelProperty  string `json:"prefLabelProperty,omitempty"`
	SynonymProperty    string `json:"synonymProperty,omitempty"`
	DefinitionProperty string `json:"definitionProperty,omitempty"`
	ObsoleteProperty   string `json:"obsoleteProperty,omitempty"`
}

// OntologyMetric carries the per-ontology statistics exposed by the metrics
// endpoint (class counts, depth and similar).
type OntologyMetric struct {
	ID                            string `json:"@id,omitempty"`
	Classes                       int    `json:"classes,omitempty"`
	Individuals                   int    `json:"individuals,omitempty"`
	Properties                    int    `json:"properties,omitempty"`
	MaxDepth                      int    `json:"maxDepth,omitempty"`
	MaxChildCount                 int    `json:"maxChildCount,omitempty"`
	AverageChildCount             int    `json:"averageChildCount,omitempty"`
	ClassesWithOneChild           int    `json:"classesWithOneChild,omitempty"`
	ClassesWithMoreThan25Children int    `json:"classesWithMoreThan25Children,omitempty"`
	ClassesWithNoDefinition       int    `json:"classesWithNoDefinition,omitempty"`
	Links                         struct {
		Ontology string `json:"ontology,omitempty"`
	} `json:"links,omitempty"`
}

// OntologyGroup is the detail record behind one of an ontology's group URIs
// (OBO, UMLS and similar families).
type OntologyGroup struct {
	ID          string `json:"@id,omitempty"`
	Acronym     string `json:"acronym,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// CollectionPage is one page of a paginated collection endpoint. Records are
// kept as raw JSON so the persisted artifact preserves the server's own
// serialization.
type CollectionPage struct {
	Page       int               `json:"page"`
	PageCount  int               `json:"pageCount"`
	Links      PageLinks         `json:"links"`
	Collection []json.RawMessage `json:"collection"`
}

// PageLinks holds the cursor to the next page, null on the last one.
type PageLinks struct {
	NextPage string `json:"nextPage"`
}

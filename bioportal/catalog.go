package bioportal

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
)

const (
	catalogInclude = "name,acronym,group,ontologyType"

	submissionInclude = "submissionId,ontology,released,contact,status,description," +
		"creationDate,version,publication,hasOntologyLanguage,homepage,documentation," +
		"synonymProperty,definitionProperty,prefLabelProperty,obsoleteProperty"
)

// decode unmarshals a response payload, translating syntax errors into the
// ErrParse taxonomy with an excerpt around the failure offset.
func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		var syntaxErr *json.SyntaxError
		if stderrors.As(err, &syntaxErr) {
			return errors.ParseError(err, data, syntaxErr.Offset)
		}
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) {
			return errors.ParseError(err, data, typeErr.Offset)
		}
		return errors.ParseError(err, data, -1)
	}
	return nil
}

// ListOntologies fetches the remote catalog, optionally restricted to the
// given acronyms. An empty or nil allow-list imposes no restriction.
func (c *Client) ListOntologies(ctx context.Context, allowed map[string]struct{}) ([]*OntologyMeta, error) {
	url := fmt.Sprintf("%s/ontologies?include=%s&no_context=true", c.baseURL, catalogInclude)
	data, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	var all []*OntologyMeta
	if err := decode(data, &all); err != nil {
		return nil, err
	}

	if len(allowed) == 0 {
		return all, nil
	}
	var filtered []*OntologyMeta
	for _, meta := range all {
		if _, ok := allowed[meta.Acronym]; ok {
			filtered = append(filtered, meta)
		}
	}
	return filtered, nil
}

// AttachDetails fetches the metrics collection and the group detail records
// and attaches them to the given catalog entries. Failures here degrade the
// stored metadata but never fail a run; they are logged and skipped.
func (c *Client) AttachDetails(ctx context.Context, metas []*OntologyMeta) {
	metrics, err := c.fetchMetrics(ctx)
	if err != nil {
		slog.Warn("Could not fetch ontology metrics, metadata will lack metric sub-records", "error", err)
	}

	groupCache := make(map[string]*OntologyGroup)
	for _, meta := range metas {
		if metric, ok := metrics[meta.ID]; ok {
			meta.Metric = metric
		}
		for _, groupURI := range meta.Group {
			group, ok := groupCache[groupURI]
			if !ok {
				group, err = c.fetchGroup(ctx, groupURI)
				if err != nil {
					slog.Warn("Could not fetch ontology group", "uri", groupURI, "error", err)
					groupCache[groupURI] = nil
					continue
				}
				groupCache[groupURI] = group
			}
			if group != nil {
				meta.Groups = append(meta.Groups, *group)
			}
		}
	}
}

// fetchMetrics returns the metrics collection keyed by ontology URI.
func (c *Client) fetchMetrics(ctx context.Context) (map[string]*OntologyMetric, error) {
	data, err := c.Get(ctx, c.baseURL+"/metrics")
	if err != nil {
		return nil, err
	}
	var metrics []*OntologyMetric
	if err := decode(data, &metrics); err != nil {
		return nil, err
	}
	byOntology := make(map[string]*OntologyMetric, len(metrics))
	for _, m := range metrics {
		byOntology[m.Links.Ontology] = m
	}
	return byOntology, nil
}

func (c *Client) fetchGroup(ctx context.Context, uri string) (*OntologyGroup, error) {
	data, err := c.Get(ctx, uri)
	if err != nil {
		return nil, err
	}
	var group OntologyGroup
	if err := decode(data, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// LatestSubmission fetches the latest submission descriptor for an ontology.
// The raw payload is returned alongside the decoded form so callers can
// persist the server's own serialization.
func (c *Client) LatestSubmission(ctx context.Context, acronym string) (*Submission, []byte, error) {
	url := fmt.Sprintf("%s/ontologies/%s/latest_submission?include=%s", c.baseURL, acronym, submissionInclude)
	data, err := c.Get(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	var sub Submission
	if err := decode(data, &sub); err != nil {
		return nil, nil, err
	}
	return &sub, data, nil
}

// MappingsURL returns the first-page URL of an ontology's mappings
// collection.
func (c *Client) MappingsURL(meta *OntologyMeta) string {
	return meta.APIURL() + "/mappings?pagesize=500&no_context=true&no_links=true"
}

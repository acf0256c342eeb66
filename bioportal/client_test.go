package bioportal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/retry"
)

func fastRetry(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		Multiplier:   2.5,
	}
}

func newTestClient(t *testing.T, handler http.Handler, opts ...ClientOption) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]ClientOption{WithBaseURL(srv.URL), WithRetryConfig(fastRetry(3))}, opts...)
	return NewClient("test-api-key", opts...), srv
}

func TestGet_SendsAPIKeyHeader(t *testing.T) {
	var gotAuth atomic.Value
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := client.Get(context.Background(), srv.URL+"/ontologies")
	require.NoError(t, err)
	assert.Equal(t, "apikey token=test-api-key", gotAuth.Load())
}

func TestGet_StatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected error
	}{
		{"bad request", 400, errors.ErrNotFound},
		{"not found", 404, errors.ErrNotFound},
		{"forbidden", 403, errors.ErrAccessDenied},
		{"server error", 500, errors.ErrDownload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				atomic.AddInt32(&calls, 1)
				http.Error(w, "server says no", tt.status)
			}))

			_, err := client.Get(context.Background(), srv.URL+"/ontologies/GO")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)

			if errors.IsPermanent(tt.expected) {
				assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "permanent errors must not be retried")
			} else {
				assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "transient errors retry up to MaxAttempts")
			}
		})
	}
}

func TestGet_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
			return
		}
		_, _ = w.Write([]byte(`{"acronym":"GO"}`))
	}))

	body, err := client.Get(context.Background(), srv.URL+"/ontologies/GO")
	require.NoError(t, err)
	assert.JSONEq(t, `{"acronym":"GO"}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_RetryBoundIsExact(t *testing.T) {
	var calls int32
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "still broken", http.StatusBadGateway)
	}))

	_, err := client.Get(context.Background(), srv.URL+"/ontologies/GO")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDownload)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "must attempt exactly MaxAttempts times")
}

func TestGet_ErrorCarriesBodyExcerpt(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Access denied for ontology GO"}`, http.StatusForbidden)
	}))

	_, err := client.Get(context.Background(), srv.URL+"/ontologies/GO")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied for ontology GO")
}

func TestGetStream_Filename(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="go.owl.zip"`)
		_, _ = w.Write([]byte("zipbytes"))
	}))

	rc, filename, err := client.GetStream(context.Background(), srv.URL+"/ontologies/GO/download")
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "go.owl.zip", filename)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "zipbytes", string(body))
}

func TestGetStream_NoFileAvailable(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no submission file", http.StatusNotFound)
	}))

	_, _, err := client.GetStream(context.Background(), srv.URL+"/ontologies/GO/download")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFileNotAvailable)
	assert.Contains(t, err.Error(), "no submission file")
}

func TestListOntologies_FiltersAllowList(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ontologies", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"@id":"http://api/ontologies/GO","acronym":"GO","name":"Gene Ontology"},
			{"@id":"http://api/ontologies/NCIT","acronym":"NCIT","name":"NCI Thesaurus"},
			{"@id":"http://api/ontologies/MESH","acronym":"MESH","name":"MeSH"}
		]`))
	}))

	all, err := client.ListOntologies(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := client.ListOntologies(context.Background(), map[string]struct{}{"GO": {}, "MESH": {}})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "GO", filtered[0].Acronym)
	assert.Equal(t, "MESH", filtered[1].Acronym)
}

func TestListOntologies_ParseError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"acronym": "GO", "name": oops]`))
	}))

	_, err := client.ListOntologies(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrParse)
	assert.Contains(t, err.Error(), "oops", "parse errors carry an excerpt around the failure offset")
}

func TestAttachDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"classes": 51234, "maxDepth": 17, "links": {"ontology": "http://api/ontologies/GO"}}
		]`))
	})
	mux.HandleFunc("/groups/OBO", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"acronym":"OBO","name":"OBO Foundry"}`))
	})
	client, srv := newTestClient(t, mux)

	metas := []*OntologyMeta{
		{ID: "http://api/ontologies/GO", Acronym: "GO", Group: []string{srv.URL + "/groups/OBO"}},
		{ID: "http://api/ontologies/XX", Acronym: "XX"},
	}
	client.AttachDetails(context.Background(), metas)

	require.NotNil(t, metas[0].Metric)
	assert.Equal(t, 51234, metas[0].Metric.Classes)
	require.Len(t, metas[0].Groups, 1)
	assert.Equal(t, "OBO Foundry", metas[0].Groups[0].Name)
	assert.Nil(t, metas[1].Metric)
}

func TestLatestSubmission(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ontologies/GO/latest_submission", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "prefLabelProperty")
		_, _ = w.Write([]byte(`{
			"@id": "http://api/ontologies/GO/submissions/42",
			"hasOntologyLanguage": "OWL",
			"prefLabelProperty": "http://example.org/prefName"
		}`))
	}))

	sub, raw, err := client.LatestSubmission(context.Background(), "GO")
	require.NoError(t, err)
	assert.Equal(t, "OWL", sub.HasOntologyLanguage)
	assert.Equal(t, "http://example.org/prefName", sub.PrefLabelProperty)
	assert.Contains(t, string(raw), "hasOntologyLanguage")
	_ = srv
}

func TestFilenameFromHeader(t *testing.T) {
	assert.Equal(t, "go.owl.zip", filenameFromHeader(`attachment; filename="go.owl.zip"`))
	assert.Equal(t, "go.obo", filenameFromHeader(`attachment; filename=go.obo`))
	assert.Equal(t, "", filenameFromHeader(""))
	assert.Equal(t, "", filenameFromHeader("attachment"))
}

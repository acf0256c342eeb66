package bioportal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
)

// pagedHandler serves /page/N from the given per-page bodies, where each body
// may reference the next page via the %s placeholder for the server base URL.
func pagedHandler(t *testing.T, bodies map[int]string) (*Client, *httptest.Server) {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	for n, body := range bodies {
		mux.HandleFunc(fmt.Sprintf("/page/%d", n), func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.ReplaceAll(body, "%s", srv.URL)))
		})
	}
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient("key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry(1))), srv
}

func TestWalkPages_AllPages(t *testing.T) {
	client, srv := pagedHandler(t, map[int]string{
		1: `{"page":1,"pageCount":3,"links":{"nextPage":"%s/page/2"},"collection":[{"id":"a"},{"id":"b"}]}`,
		2: `{"page":2,"pageCount":3,"links":{"nextPage":"%s/page/3"},"collection":[{"id":"c"}]}`,
		3: `{"page":3,"pageCount":3,"links":{"nextPage":null},"collection":[{"id":"d"}]}`,
	})

	records, result, err := client.WalkPages(context.Background(), srv.URL+"/page/1")
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, 3, result.LastPage)
	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, 4, result.Records)
	assert.True(t, result.Complete())
	assert.JSONEq(t, `{"id":"a"}`, string(records[0]))
	assert.JSONEq(t, `{"id":"d"}`, string(records[3]))
}

func TestWalkPages_EmptyMiddlePageContinues(t *testing.T) {
	client, srv := pagedHandler(t, map[int]string{
		1: `{"page":1,"pageCount":3,"links":{"nextPage":"%s/page/2"},"collection":[{"id":"a"}]}`,
		2: `{"page":2,"pageCount":3,"links":{"nextPage":"%s/page/3"},"collection":[]}`,
		3: `{"page":3,"pageCount":3,"links":{"nextPage":null},"collection":[{"id":"b"}]}`,
	})

	records, result, err := client.WalkPages(context.Background(), srv.URL+"/page/1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.True(t, result.Complete())
}

func TestWalkPages_EmptyFirstPageWarnsAndContinues(t *testing.T) {
	client, srv := pagedHandler(t, map[int]string{
		1: `{"page":1,"pageCount":2,"links":{"nextPage":"%s/page/2"},"collection":[]}`,
		2: `{"page":2,"pageCount":2,"links":{"nextPage":null},"collection":[{"id":"a"}]}`,
	})

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	records, result, err := client.WalkPages(context.Background(), srv.URL+"/page/1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.True(t, result.Complete())
	assert.Contains(t, buf.String(), "Page was downloaded empty")
	assert.Contains(t, buf.String(), "page=1")
}

func TestWalkPages_MidWalkRetrievalErrorKeepsAccumulated(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/page/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `{"page":1,"pageCount":3,"links":{"nextPage":"%s/page/2"},"collection":[{"id":"a"},{"id":"b"}]}`, srv.URL)
	})
	mux.HandleFunc("/page/2", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClient("key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry(1)))

	records, result, err := client.WalkPages(context.Background(), srv.URL+"/page/1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Len(t, records, 2, "records from completed pages survive a mid-walk failure")
	assert.Equal(t, 1, result.LastPage)
	assert.False(t, result.Complete())
}

func TestWalkPages_MidWalkParseErrorKeepsAccumulated(t *testing.T) {
	client, srv := pagedHandler(t, map[int]string{
		1: `{"page":1,"pageCount":2,"links":{"nextPage":"%s/page/2"},"collection":[{"id":"a"}]}`,
		2: `{"page": not json`,
	})

	records, result, err := client.WalkPages(context.Background(), srv.URL+"/page/1")
	require.NoError(t, err, "a mid-walk parse failure degrades to a shortfall")
	assert.Len(t, records, 1)
	assert.Equal(t, 1, result.LastPage)
	assert.Equal(t, 2, result.PageCount)
	assert.False(t, result.Complete())
}

func TestWalkPages_FirstPageErrorFails(t *testing.T) {
	client, srv := pagedHandler(t, map[int]string{
		1: `{"page": broken`,
	})

	_, _, err := client.WalkPages(context.Background(), srv.URL+"/page/1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrParse)
}

func TestWalkResult_Complete(t *testing.T) {
	assert.True(t, WalkResult{}.Complete(), "an undeclared page count cannot be short")
	assert.True(t, WalkResult{LastPage: 3, PageCount: 3}.Complete())
	assert.False(t, WalkResult{LastPage: 2, PageCount: 3}.Complete())
}

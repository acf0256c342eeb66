package download

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/bioportal"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/fileio"
	"github.com/JULIELab/julielab-bioportal-ontology-tools/pkg/retry"
)

// fakePortal simulates the remote API for a set of acronyms. Download
// requests are counted per acronym so tests can assert idempotency.
type fakePortal struct {
	srv             *httptest.Server
	downloadHits    map[string]*int32
	denied          map[string]bool
	failSubmissions map[string]*int32 // remaining failures before success
}

func newFakePortal(t *testing.T, acronyms ...string) *fakePortal {
	t.Helper()
	fp := &fakePortal{
		downloadHits:    make(map[string]*int32),
		denied:          make(map[string]bool),
		failSubmissions: make(map[string]*int32),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ontologies", func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, acronym := range acronyms {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(&buf, `{"@id":"%s/ontologies/%s","acronym":"%s","name":"Ontology %s"}`,
				fp.srv.URL, acronym, acronym, acronym)
		}
		buf.WriteByte(']')
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	for _, acronym := range acronyms {
		acronym := acronym
		fp.downloadHits[acronym] = new(int32)
		base := "/ontologies/" + acronym
		mux.HandleFunc(base+"/latest_submission", func(w http.ResponseWriter, _ *http.Request) {
			if fp.denied[acronym] {
				http.Error(w, "access restricted", http.StatusForbidden)
				return
			}
			if remaining := fp.failSubmissions[acronym]; remaining != nil && atomic.AddInt32(remaining, -1) >= 0 {
				http.Error(w, "bad gateway", http.StatusBadGateway)
				return
			}
			fmt.Fprintf(w, `{"submissionId":1,"hasOntologyLanguage":"OBO"}`)
		})
		for _, sub := range []string{"/submissions", "/projects", "/analytics"} {
			mux.HandleFunc(base+sub, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[]`))
			})
		}
		mux.HandleFunc(base+"/download", func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(fp.downloadHits[acronym], 1)
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.obo"`, acronym))
			fmt.Fprintf(w, "ontology content for %s", acronym)
		})
	}

	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakePortal) hits(acronym string) int32 {
	return atomic.LoadInt32(fp.downloadHits[acronym])
}

func (fp *fakePortal) client() *bioportal.Client {
	return bioportal.NewClient("key",
		bioportal.WithBaseURL(fp.srv.URL),
		bioportal.WithRetryConfig(retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 2.5}))
}

func newTestDownloader(t *testing.T, fp *fakePortal) *Downloader {
	t.Helper()
	d, err := New(fp.client(), Options{
		InfoDir:         filepath.Join(t.TempDir(), "info"),
		DataDir:         filepath.Join(t.TempDir(), "data"),
		Workers:         3,
		RetrierAttempts: 3,
		RetrierInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return d
}

func TestRun_SyncsAllArtifacts(t *testing.T) {
	fp := newFakePortal(t, "GO", "MESH")
	d := newTestDownloader(t, fp)

	stats, err := d.Run(context.Background(), nil)
	require.NoError(t, err)

	downloaded, _, _, _, errCount := stats.Counts()
	assert.Equal(t, 2, downloaded)
	assert.Zero(t, errCount)

	for _, acronym := range []string{"GO", "MESH"} {
		for _, suffix := range []string{".meta.json.gz", ".sub.json.gz", ".subs.json.gz", ".pro.json.gz", ".ana.json.gz"} {
			assert.True(t, d.info.Done(acronym+suffix), "missing info artifact %s%s", acronym, suffix)
		}
		content, err := fileio.ReadFile(d.data.Path(acronym + ".obo.gz"))
		require.NoError(t, err)
		assert.Equal(t, "ontology content for "+acronym, string(content))
	}
	assert.True(t, d.info.Done(OntologyListFile), "catalog list must be persisted")
}

func TestRun_IdempotentRerun(t *testing.T) {
	fp := newFakePortal(t, "GO")
	d := newTestDownloader(t, fp)

	_, err := d.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int32(1), fp.hits("GO"))

	d2, err := New(fp.client(), Options{InfoDir: d.info.Root(), DataDir: d.data.Root()})
	require.NoError(t, err)
	_, err = d2.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fp.hits("GO"), "a completed resource must not be downloaded again")
}

func TestRun_AllowListRestricts(t *testing.T) {
	fp := newFakePortal(t, "GO", "MESH", "NCIT")
	d := newTestDownloader(t, fp)

	_, err := d.Run(context.Background(), map[string]struct{}{"MESH": {}})
	require.NoError(t, err)

	assert.Equal(t, int32(0), fp.hits("GO"))
	assert.Equal(t, int32(1), fp.hits("MESH"))
	assert.Equal(t, int32(0), fp.hits("NCIT"))
}

func TestRun_FailureIsolation(t *testing.T) {
	fp := newFakePortal(t, "A", "B", "C", "D", "E")
	fp.denied["C"] = true
	d := newTestDownloader(t, fp)

	stats, err := d.Run(context.Background(), nil)
	require.NoError(t, err)

	downloaded, _, denied, _, errCount := stats.Counts()
	assert.Equal(t, 4, downloaded, "the denied resource must not poison the batch")
	assert.Equal(t, 1, denied)
	assert.Zero(t, errCount)
	assert.Contains(t, stats.Report(), "access restrictions (1): C")

	assert.False(t, d.ontologyFileDone("C"), "denied resource leaves no data artifacts")
	assert.True(t, d.ontologyFileDone("A"))
}

func TestRun_TransientFailureRecoversInBackground(t *testing.T) {
	fp := newFakePortal(t, "GO")
	// Inline retries allow 2 attempts; 3 failures exhaust them and push the
	// resource into the background tier, which then succeeds.
	failures := int32(3)
	fp.failSubmissions["GO"] = &failures
	d := newTestDownloader(t, fp)

	stats, err := d.Run(context.Background(), nil)
	require.NoError(t, err)

	_, _, _, _, errCount := stats.Counts()
	assert.Zero(t, errCount, "a background success clears the error bucket")
	assert.True(t, d.ontologyFileDone("GO"))
	state, ok := d.retrier.State("GO")
	require.True(t, ok, "resource must have passed through the background tier")
	assert.Equal(t, StateDone, state)
}

func TestExpandZip(t *testing.T) {
	buildZip := func(t *testing.T, members map[string]string) *bytes.Buffer {
		t.Helper()
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		for name, content := range members {
			w, err := zw.Create(name)
			require.NoError(t, err)
			_, err = w.Write([]byte(content))
			require.NoError(t, err)
		}
		require.NoError(t, zw.Close())
		return &buf
	}

	t.Run("single member collapses to plain file", func(t *testing.T) {
		fp := newFakePortal(t)
		d := newTestDownloader(t, fp)
		archive := buildZip(t, map[string]string{"go.obo": "term data"})

		require.NoError(t, d.expandZip("GO", "obo", "go.zip", archive))

		content, err := fileio.ReadFile(d.data.Path("GO.obo.gz"))
		require.NoError(t, err)
		assert.Equal(t, "term data", string(content))
	})

	t.Run("multi member expands into directory with marker", func(t *testing.T) {
		fp := newFakePortal(t)
		d := newTestDownloader(t, fp)
		archive := buildZip(t, map[string]string{
			"ncit.owl":      "main ontology",
			"imports/a.owl": "import a",
		})

		require.NoError(t, d.expandZip("NCIT", "owl", "ncit.zip", archive))

		dir := d.data.Path("NCIT")
		marker, err := os.ReadFile(filepath.Join(dir, FilenameMarker))
		require.NoError(t, err)
		assert.Equal(t, "ncit.zip", string(marker))

		content, err := fileio.ReadFile(filepath.Join(dir, "ncit.owl.gz"))
		require.NoError(t, err)
		assert.Equal(t, "main ontology", string(content))
		content, err = fileio.ReadFile(filepath.Join(dir, "a.owl.gz"))
		require.NoError(t, err)
		assert.Equal(t, "import a", string(content))
	})
}

func TestCleanupRemovesPartialArtifacts(t *testing.T) {
	fp := newFakePortal(t)
	d := newTestDownloader(t, fp)

	require.NoError(t, fileio.WriteFile(d.data.Path("GO.obo.gz"), []byte("partial")))
	require.NoError(t, os.MkdirAll(d.data.Path("GO"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(d.data.Path("GO"), "member.gz"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(d.data.Path("GO.owl.gz.tmp"), []byte("partial"), 0o644))
	require.True(t, d.ontologyFileDone("GO"))

	d.cleanup("GO")
	assert.False(t, d.ontologyFileDone("GO"))
	assert.NoFileExists(t, d.data.Path("GO.owl.gz.tmp"))
}

func TestRun_StaleTempFileDoesNotCountAsCheckpoint(t *testing.T) {
	fp := newFakePortal(t, "GO")
	d := newTestDownloader(t, fp)

	// Leftover of an atomic write interrupted by a hard crash. It must
	// neither pass for a completed download nor survive the rerun.
	require.NoError(t, os.MkdirAll(d.data.Root(), 0o755))
	tmp := d.data.Path("GO.obo.gz.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0o644))
	require.False(t, d.ontologyFileDone("GO"))

	stats, err := d.Run(context.Background(), nil)
	require.NoError(t, err)

	downloaded, _, _, _, errCount := stats.Counts()
	assert.Equal(t, 1, downloaded)
	assert.Zero(t, errCount)
	assert.EqualValues(t, 1, fp.hits("GO"))

	content, err := fileio.ReadFile(d.data.Path("GO.obo.gz"))
	require.NoError(t, err)
	assert.Equal(t, "ontology content for GO", string(content))
	assert.NoFileExists(t, tmp)
}

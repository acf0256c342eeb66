package download

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stats accumulates the outcome of one download run. All methods are safe
// for concurrent use; the worker pool and the background retrier both write
// into the same instance.
type Stats struct {
	mu sync.Mutex

	runID   string
	started time.Time

	downloaded  []string
	summaryOnly []string
	denied      []string
	withoutFile []string
	errors      map[string]string
}

// NewStats returns an empty accumulator tagged with a fresh run ID.
func NewStats() *Stats {
	return &Stats{
		runID:   uuid.NewString(),
		started: time.Now(),
		errors:  make(map[string]string),
	}
}

// RunID returns the identifier tagging this run's log lines and report.
func (s *Stats) RunID() string {
	return s.runID
}

// AddDownloaded records a fully synced resource.
func (s *Stats) AddDownloaded(acronym string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloaded = append(s.downloaded, acronym)
}

// AddSummaryOnly records a catalog entry that carries no downloadable
// artifacts and was skipped.
func (s *Stats) AddSummaryOnly(acronym string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaryOnly = append(s.summaryOnly, acronym)
}

// AddDenied records a resource the server refused access to.
func (s *Stats) AddDenied(acronym string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied = append(s.denied, acronym)
}

// AddWithoutFile records a resource whose latest submission has no file.
func (s *Stats) AddWithoutFile(acronym string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withoutFile = append(s.withoutFile, acronym)
}

// AddError records a resource that failed with the given error. A later
// success through the background retrier clears it via RemoveError.
func (s *Stats) AddError(acronym string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[acronym] = err.Error()
}

// RemoveError drops a previously recorded error, typically after the
// background retrier eventually succeeded for the resource.
func (s *Stats) RemoveError(acronym string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errors, acronym)
}

// Counts returns the bucket sizes for logging.
func (s *Stats) Counts() (downloaded, summaryOnly, denied, withoutFile, errors int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.downloaded), len(s.summaryOnly), len(s.denied), len(s.withoutFile), len(s.errors)
}

// Report renders the human-readable summary of the run.
func (s *Stats) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Download report for run %s (started %s, took %s)\n",
		s.runID, s.started.Format(time.RFC3339), time.Since(s.started).Round(time.Second))
	fmt.Fprintf(&b, "Successfully downloaded ontologies (%d): %s\n",
		len(s.downloaded), joinSorted(s.downloaded))
	fmt.Fprintf(&b, "Ontologies only available as summaries (%d): %s\n",
		len(s.summaryOnly), joinSorted(s.summaryOnly))
	fmt.Fprintf(&b, "Ontologies with access restrictions (%d): %s\n",
		len(s.denied), joinSorted(s.denied))
	fmt.Fprintf(&b, "Ontologies without a downloadable file (%d): %s\n",
		len(s.withoutFile), joinSorted(s.withoutFile))
	fmt.Fprintf(&b, "Ontologies with download errors (%d):\n", len(s.errors))
	for _, acronym := range sortedKeys(s.errors) {
		fmt.Fprintf(&b, "  %s: %s\n", acronym, s.errors[acronym])
	}
	return b.String()
}

func joinSorted(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

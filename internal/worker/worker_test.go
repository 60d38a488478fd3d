package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/fincorpus/internal/checkpoint"
	"github.com/JakeFAU/fincorpus/internal/crawler"
	"github.com/JakeFAU/fincorpus/internal/extract"
	"github.com/JakeFAU/fincorpus/internal/label"
	"github.com/JakeFAU/fincorpus/internal/manifest"
	"github.com/JakeFAU/fincorpus/internal/output"
	"github.com/JakeFAU/fincorpus/internal/papers"
	"github.com/JakeFAU/fincorpus/internal/progress"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// scriptedPaginator emits one zakat line per DOI, honoring the progress it is
// handed, and cancels the run after cancelAfter emissions when set.
type scriptedPaginator struct {
	dois        []string
	cap         int
	cancelAfter int
	cancel      context.CancelFunc
}

func (s *scriptedPaginator) Run(ctx context.Context, query string, p *checkpoint.QueryProgress, sink papers.Sink) (papers.Stats, error) {
	var stats papers.Stats
	if p.Written >= s.cap {
		stats.Capped = true
		return stats, nil
	}
	for _, doi := range s.dois {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !p.MarkSeen(doi) {
			continue
		}
		stats.Works++
		if err := sink.Emit("zakat", fmt.Sprintf("%s sentence about zakat for %s.", query, doi)); err != nil {
			continue
		}
		p.Written++
		stats.Emitted++
		sink.Snapshot()
		if s.cancelAfter > 0 && stats.Emitted == s.cancelAfter {
			s.cancel()
		}
		if p.Written >= s.cap {
			stats.Capped = true
			break
		}
	}
	sink.Snapshot()
	return stats, nil
}

func TestQueryRunnerResumesAcrossRuns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outPath := filepath.Join(dir, "train.txt")
	store := checkpoint.NewStore(checkpoint.DefaultPath(outPath))

	var dois []string
	for i := 1; i <= 10; i++ {
		dois = append(dois, fmt.Sprintf("10.1/%d", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	pag := &scriptedPaginator{dois: dois, cap: 50, cancelAfter: 3, cancel: cancel}

	w, err := output.Open(outPath, false)
	require.NoError(t, err)
	tracker := progress.NewTracker("run-a", "papers", fixedClock{})
	_, err = NewQueryRunner(pag, w, store, tracker, nil).Run(ctx, []string{"zakat"}, false)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, w.Close())
	require.Len(t, readLines(t, outPath), 3)
	assert.Equal(t, progress.OutcomeCanceled, tracker.Snapshot().Sources[0].Outcome)

	pag.cancelAfter = 0
	w, err = output.Open(outPath, true)
	require.NoError(t, err)
	summary, err := NewQueryRunner(pag, w, store, nil, nil).Run(context.Background(), []string{"zakat"}, true)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, 7, summary.Lines)

	lines := readLines(t, outPath)
	require.Len(t, lines, 10)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("__label__zakat zakat sentence about zakat for 10.1/%d.", i+1), line)
	}

	ledger, err := checkpoint.LoadQueryLedger(store, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.Progress("zakat").Written)
	assert.Len(t, ledger.Progress("zakat").SeenDOIs, 10)
}

func TestQueryRunnerWithoutResumeStartsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outPath := filepath.Join(dir, "train.txt")
	store := checkpoint.NewStore(checkpoint.DefaultPath(outPath))
	seeded := checkpoint.NewQueryLedger()
	seeded.Progress("zakat").Written = 50
	require.NoError(t, store.Save(seeded))

	w, err := output.Open(outPath, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	pag := &scriptedPaginator{dois: []string{"10.1/a"}, cap: 50}
	summary, err := NewQueryRunner(pag, w, store, nil, nil).Run(context.Background(), []string{"zakat", "wakaf"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sources)
	assert.Equal(t, 2, summary.Lines)
}

func TestQueryRunnerRejectsUnknownSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"_schema":"other/v9"}`), 0o600))

	runner := NewQueryRunner(&scriptedPaginator{cap: 1}, &memWriter{}, checkpoint.NewStore(statePath), nil, nil)
	_, err := runner.Run(context.Background(), []string{"zakat"}, true)
	require.ErrorIs(t, err, checkpoint.ErrUnsupportedSchema)
}

func TestQueryRunnerSwallowsCheckpointFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	// The parent of the state path is a regular file, so every save fails.
	store := checkpoint.NewStore(filepath.Join(blocker, "state.json"))

	mw := &memWriter{}
	pag := &scriptedPaginator{dois: []string{"10.1/a", "10.1/b"}, cap: 50}
	summary, err := NewQueryRunner(pag, mw, store, nil, nil).Run(context.Background(), []string{"zakat"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Lines)
	assert.Len(t, mw.lines, 2)
}

func TestQueryOutcome(t *testing.T) {
	t.Parallel()

	assert.Equal(t, progress.OutcomeCanceled, queryOutcome(papers.Stats{}, context.Canceled))
	assert.Equal(t, progress.OutcomeFailed, queryOutcome(papers.Stats{}, errors.New("x")))
	assert.Equal(t, progress.OutcomeAbandoned, queryOutcome(papers.Stats{Abandoned: true}, nil))
	assert.Equal(t, progress.OutcomeCapped, queryOutcome(papers.Stats{Capped: true}, nil))
	assert.Equal(t, progress.OutcomeCompleted, queryOutcome(papers.Stats{}, nil))
}

type memWriter struct {
	lines []string
	fail  bool
}

func (m *memWriter) Write(name, text string) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.lines = append(m.lines, output.Format(name, text))
	return nil
}

type pageFetcher struct {
	pages map[string]string
}

func (f *pageFetcher) Fetch(_ context.Context, rawURL string) (crawler.FetchResponse, error) {
	body, ok := f.pages[rawURL]
	if !ok {
		return crawler.FetchResponse{URL: rawURL, StatusCode: http.StatusNotFound}, nil
	}
	return crawler.FetchResponse{
		URL:         rawURL,
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
	}, nil
}

func html(body string) string {
	return "<html><body><main>" + body + "</main></body></html>"
}

const listrikSentence = "Saya membayar listrik rumah setiap bulan lewat aplikasi."

func newSiteRunner(t *testing.T, pages map[string]string, global manifest.Global, w LineWriter, store *checkpoint.Store) *SiteRunner {
	t.Helper()
	table, err := label.Preset(label.PresetWeb)
	require.NoError(t, err)
	m := &manifest.Manifest{Global: global}
	frontier := crawler.NewFrontier(&pageFetcher{pages: pages}, nil, nil)
	return NewSiteRunner(
		frontier,
		extract.New(extract.Config{}, nil),
		m.Filter(table),
		w,
		store,
		progress.NewTracker("run-s", "sites", fixedClock{}),
		SiteConfig{},
		nil,
	)
}

func consumerEntry(seed string, limit int) manifest.Entry {
	return manifest.Entry{
		Seed:     crawler.Seed{URL: seed, Limit: limit},
		Category: label.CategoryConsumer,
	}
}

func TestSiteRunnerLabelsAndRecordsProcessedPages(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://bank.example.id/": html(`<p>` + listrikSentence + `</p>
			<a href="/tips">Tips</a><a href="https://other.example.com/">Elsewhere</a>`),
		"https://bank.example.id/tips": html(`<p>Halaman ini berisi informasi umum untuk nasabah kami.</p>`),
	}
	dir := t.TempDir()
	outPath := filepath.Join(dir, "train.txt")
	store := checkpoint.NewStore(checkpoint.DefaultPath(outPath))

	w, err := output.Open(outPath, false)
	require.NoError(t, err)
	runner := newSiteRunner(t, pages, manifest.Global{}, w, store)
	summary, err := runner.Run(context.Background(), []manifest.Entry{consumerEntry("https://bank.example.id/", 2)}, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 1, summary.Lines)
	assert.Equal(t, []string{"__label__utilitas " + listrikSentence}, readLines(t, outPath))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var state struct {
		Schema        string   `json:"schema"`
		ProcessedURLs []string `json:"processed_urls"`
	}
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, checkpoint.CrawlSchema, state.Schema)
	assert.Equal(t, []string{"https://bank.example.id/", "https://bank.example.id/tips"}, state.ProcessedURLs)

	// A resumed run revisits the pages but writes nothing new.
	w, err = output.Open(outPath, true)
	require.NoError(t, err)
	runner = newSiteRunner(t, pages, manifest.Global{}, w, store)
	summary, err = runner.Run(context.Background(), []manifest.Entry{consumerEntry("https://bank.example.id/", 2)}, true)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Zero(t, summary.Lines)
	assert.Len(t, readLines(t, outPath), 1)
}

func TestSiteRunnerCapsLinesPerPage(t *testing.T) {
	t.Parallel()

	var body strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&body, "<p>Tagihan listrik nomor %d sudah dibayar lunas kemarin.</p>", i)
	}
	pages := map[string]string{"https://pln.example.id/": html(body.String())}

	mw := &memWriter{}
	runner := newSiteRunner(t, pages, manifest.Global{}, mw, nil)
	_, err := runner.Run(context.Background(), []manifest.Entry{consumerEntry("https://pln.example.id/", 1)}, false)
	require.NoError(t, err)
	require.Len(t, mw.lines, DefaultMaxLinesPerPage)
	assert.Equal(t, "__label__utilitas Tagihan listrik nomor 0 sudah dibayar lunas kemarin.", mw.lines[0])
}

func TestSiteRunnerKeywordGates(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://ojk.example.id/": html(`<p>` + listrikSentence + `</p>
			<p>Kami membayar listrik kantor pusat setiap bulan.</p><a href="/laporan">Laporan</a>`),
		"https://ojk.example.id/laporan": html(`<p>Laporan tahunan mencatat tagihan listrik yang besar.</p>`),
	}
	global := manifest.Global{
		ExcludeIfContains: []string{"laporan tahunan"},
		PreferKeywords:    []string{"saya"},
	}
	mw := &memWriter{}
	runner := newSiteRunner(t, pages, global, mw, nil)
	entry := manifest.Entry{Seed: crawler.Seed{URL: "https://ojk.example.id/", Limit: 2}, Category: "regulator"}
	_, err := runner.Run(context.Background(), []manifest.Entry{entry}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"__label__utilitas " + listrikSentence}, mw.lines)
}

func TestSiteRunnerHonorsSiteLineCap(t *testing.T) {
	t.Parallel()

	var body strings.Builder
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&body, "<p>Tagihan listrik nomor %d sudah dibayar lunas kemarin.</p>", i)
	}
	pages := map[string]string{"https://pln.example.id/": html(body.String())}
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "state.json"))

	mw := &memWriter{}
	entry := consumerEntry("https://pln.example.id/", 1)
	entry.MaxLines = 3
	runner := newSiteRunner(t, pages, manifest.Global{}, mw, store)
	_, err := runner.Run(context.Background(), []manifest.Entry{entry}, false)
	require.NoError(t, err)
	assert.Len(t, mw.lines, 3)

	ledger, err := checkpoint.LoadCrawlLedger(store, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, ledger.Site("https://pln.example.id/").Written)

	runner = newSiteRunner(t, pages, manifest.Global{}, mw, store)
	summary, err := runner.Run(context.Background(), []manifest.Entry{entry}, true)
	require.NoError(t, err)
	assert.Zero(t, summary.Lines)
	assert.Len(t, mw.lines, 3)
}

// snapshotWriter copies the state file as it stands when line `at` is
// written, which is what an interrupted run would leave behind.
type snapshotWriter struct {
	memWriter
	statePath string
	at        int
	state     []byte
	lines     []string
}

func (w *snapshotWriter) Write(name, text string) error {
	if err := w.memWriter.Write(name, text); err != nil {
		return err
	}
	if len(w.memWriter.lines) == w.at {
		w.state, _ = os.ReadFile(w.statePath)
		w.lines = append([]string(nil), w.memWriter.lines...)
	}
	return nil
}

func TestSiteRunnerInterruptedPageIsNotRelabeled(t *testing.T) {
	t.Parallel()

	var body strings.Builder
	for _, n := range []string{"satu", "dua", "tiga"} {
		fmt.Fprintf(&body, "<p>Tagihan listrik nomor %s sudah dibayar lunas kemarin.</p>", n)
	}
	pages := map[string]string{"https://pln.example.id/": html(body.String())}
	dir := t.TempDir()
	store := checkpoint.NewStore(filepath.Join(dir, "state.json"))

	sw := &snapshotWriter{statePath: store.Path(), at: 2}
	runner := newSiteRunner(t, pages, manifest.Global{}, sw, store)
	_, err := runner.Run(context.Background(), []manifest.Entry{consumerEntry("https://pln.example.id/", 1)}, false)
	require.NoError(t, err)
	require.Len(t, sw.lines, 2)
	require.NotEmpty(t, sw.state, "state must be saved before the page's lines are written")

	resumed := checkpoint.NewStore(filepath.Join(dir, "resumed.json"))
	require.NoError(t, os.WriteFile(resumed.Path(), sw.state, 0o600))
	ledger, err := checkpoint.LoadCrawlLedger(resumed, nil)
	require.NoError(t, err)
	assert.True(t, ledger.Processed("https://pln.example.id/"))
	assert.GreaterOrEqual(t, ledger.Site("https://pln.example.id/").Written, 1)

	mw := &memWriter{lines: append([]string(nil), sw.lines...)}
	runner = newSiteRunner(t, pages, manifest.Global{}, mw, resumed)
	summary, err := runner.Run(context.Background(), []manifest.Entry{consumerEntry("https://pln.example.id/", 1)}, true)
	require.NoError(t, err)
	assert.Zero(t, summary.Lines)

	seen := make(map[string]bool)
	for _, line := range mw.lines {
		assert.False(t, seen[line], "duplicate line %q", line)
		seen[line] = true
	}
}

// counterValue sums a counter family from the default registry, filtered by
// one label pair when label is non-empty.
func counterValue(t *testing.T, family, label, value string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := label == ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					match = true
				}
			}
			if match {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

// Runs serially so the checkpoint counter is not touched by other tests.
func TestSiteRunnerCountsWriteFailuresSeparately(t *testing.T) {
	pages := map[string]string{"https://bank.example.id/": html(`<p>` + listrikSentence + `</p>`)}
	store := checkpoint.NewStore(filepath.Join(t.TempDir(), "state.json"))
	runner := newSiteRunner(t, pages, manifest.Global{}, &memWriter{fail: true}, store)

	beforeWrites := counterValue(t, "corpus_write_failures_total", "source", "sites")
	beforeCheckpoints := counterValue(t, "corpus_checkpoint_failures_total", "", "")

	summary, err := runner.Run(context.Background(), []manifest.Entry{consumerEntry("https://bank.example.id/", 1)}, false)
	require.NoError(t, err)
	assert.Zero(t, summary.Lines)

	assert.Equal(t, beforeWrites+1, counterValue(t, "corpus_write_failures_total", "source", "sites"))
	assert.Equal(t, beforeCheckpoints, counterValue(t, "corpus_checkpoint_failures_total", "", ""))

	ledger, err := checkpoint.LoadCrawlLedger(store, nil)
	require.NoError(t, err)
	assert.Zero(t, ledger.Site("https://bank.example.id/").Written)
}

func TestSiteRunnerContinuesAfterInvalidSeed(t *testing.T) {
	t.Parallel()

	pages := map[string]string{"https://bank.example.id/": html(`<p>` + listrikSentence + `</p>`)}
	mw := &memWriter{}
	runner := newSiteRunner(t, pages, manifest.Global{}, mw, nil)
	summary, err := runner.Run(context.Background(), []manifest.Entry{
		consumerEntry("not a url", 1),
		consumerEntry("https://bank.example.id/", 1),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sources)
	assert.Len(t, mw.lines, 1)
}

func TestSiteRunnerStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := newSiteRunner(t, map[string]string{}, manifest.Global{}, &memWriter{}, nil)
	_, err := runner.Run(ctx, []manifest.Entry{consumerEntry("https://bank.example.id/", 1)}, false)
	require.ErrorIs(t, err, context.Canceled)
}

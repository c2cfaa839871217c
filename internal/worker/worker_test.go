package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/crawler"
	collyfetcher "github.com/JakeFAU/distcrawl/internal/fetcher/colly"
	"github.com/JakeFAU/distcrawl/internal/fetcher/stream"
	md5hash "github.com/JakeFAU/distcrawl/internal/hash/md5"
	"github.com/JakeFAU/distcrawl/internal/orchestrator"
	"github.com/JakeFAU/distcrawl/internal/site"
	"github.com/JakeFAU/distcrawl/internal/storage/scratch"
)

type fakeAssigner struct {
	seeds []string
	err   error
}

func (f *fakeAssigner) Seeds(context.Context, string) ([]string, error) {
	return f.seeds, f.err
}

type countingReporter struct {
	mu       sync.Mutex
	attempts int
	fails    int
	batches  []crawler.Batch
}

func (r *countingReporter) Submit(_ context.Context, batch crawler.Batch) (crawler.IngestAck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	r.batches = append(r.batches, batch)
	if r.attempts <= r.fails {
		return crawler.IngestAck{}, fmt.Errorf("%w: transient error", crawler.ErrReportDelivery)
	}
	return crawler.IngestAck{Status: "ok", InsertedCount: len(batch)}, nil
}

type fakeCrawler struct {
	outcomes map[string][]crawler.Outcome
	crawled  []string
}

func (f *fakeCrawler) Kind() crawler.ProfileKind {
	return crawler.ProfileArxiv
}

func (f *fakeCrawler) Crawl(_ context.Context, seed string) []crawler.Outcome {
	f.crawled = append(f.crawled, seed)
	return f.outcomes[seed]
}

type fakeStore struct {
	purged   int
	purgeErr error
}

func (s *fakeStore) Dir() string {
	return "scratch"
}

func (s *fakeStore) Put(string, io.Reader) (string, error) {
	return "", nil
}

func (s *fakeStore) Purge() error {
	s.purged++
	return s.purgeErr
}

func TestReportRetriesUntilDelivered(t *testing.T) {
	t.Parallel()

	for _, failures := range []int{0, 1, 3, 5, 10} {
		reporter := &countingReporter{fails: failures}
		runner := New(Config{Identity: "worker1"}, &fakeAssigner{}, nil, nil, reporter, zap.NewNop())

		result := runner.Run(context.Background())

		want := min(failures+1, DefaultMaxReportAttempts)
		assert.Equal(t, want, reporter.attempts, "failures=%d", failures)
		assert.Equal(t, want, result.Attempts, "failures=%d", failures)
		assert.Equal(t, failures < DefaultMaxReportAttempts, result.Delivered, "failures=%d", failures)
		assert.Equal(t, StateDone, runner.State())
	}
}

func TestReportDroppedAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	reporter := &countingReporter{fails: 100}
	batch := []crawler.Outcome{{URL: "https://arxiv.org/pdf/1", Status: "error: boom"}}
	runner := New(
		Config{Identity: "worker1"},
		&fakeAssigner{seeds: []string{"https://arxiv.org/list"}},
		&fakeCrawler{outcomes: map[string][]crawler.Outcome{"https://arxiv.org/list": batch}},
		&fakeStore{},
		reporter,
		zap.NewNop(),
	)

	result := runner.Run(context.Background())

	require.Equal(t, ResultReportDropped, result.Outcome)
	require.False(t, result.Delivered)
	require.Equal(t, 4, reporter.attempts)
	for _, sent := range reporter.batches {
		require.Equal(t, crawler.Batch(batch), sent, "every attempt resends the same batch")
	}
}

func TestAssignmentFailureSkipsReport(t *testing.T) {
	t.Parallel()

	reporter := &countingReporter{}
	seedCrawler := &fakeCrawler{}
	store := &fakeStore{}
	runner := New(
		Config{Identity: "worker1"},
		&fakeAssigner{err: fmt.Errorf("%w: connection refused", crawler.ErrAssignment)},
		seedCrawler,
		store,
		reporter,
		zap.NewNop(),
	)

	result := runner.Run(context.Background())

	require.Equal(t, ResultAssignmentFailed, result.Outcome)
	require.Zero(t, reporter.attempts)
	require.Empty(t, seedCrawler.crawled)
	require.Zero(t, store.purged)
}

func TestUnknownIdentityReportsEmptyBatch(t *testing.T) {
	t.Parallel()

	reporter := &countingReporter{}
	runner := New(
		Config{Identity: "undefined"},
		&fakeAssigner{seeds: []string{"https://example.com/a", "https://example.com/b"}},
		nil,
		nil,
		reporter,
		zap.NewNop(),
	)

	result := runner.Run(context.Background())

	require.True(t, result.Delivered)
	require.Equal(t, 2, result.Seeds)
	require.Equal(t, 1, reporter.attempts)
	require.NotNil(t, reporter.batches[0])
	require.Empty(t, reporter.batches[0])
}

func TestCleanupRunsOnceAfterAllSeedsEvenWhenItFails(t *testing.T) {
	t.Parallel()

	seeds := []string{"https://arxiv.org/a", "https://arxiv.org/b"}
	seedCrawler := &fakeCrawler{outcomes: map[string][]crawler.Outcome{
		seeds[0]: {{URL: seeds[0], Status: "error: 503 Service Unavailable"}},
		seeds[1]: {
			{URL: "https://arxiv.org/pdf/1", File: "f1", Fingerprint: "m1", Status: crawler.StatusSuccess},
			{URL: "https://arxiv.org/pdf/2", Status: "error: timeout"},
		},
	}}
	store := &fakeStore{purgeErr: errors.New("device busy")}
	reporter := &countingReporter{}

	result := New(Config{Identity: "worker1"}, &fakeAssigner{seeds: seeds}, seedCrawler, store, reporter, nil).
		Run(context.Background())

	require.Equal(t, seeds, seedCrawler.crawled)
	require.Equal(t, 1, store.purged)
	require.True(t, result.Delivered)
	require.Len(t, result.Batch, 3)
	require.Equal(t, seeds[0], result.Batch[0].URL)
}

type orchestratorStub struct {
	srv     *httptest.Server
	mu      sync.Mutex
	batches [][]crawler.Outcome
}

func newOrchestratorStub(t *testing.T, assignments map[string][]string) *orchestratorStub {
	t.Helper()
	stub := &orchestratorStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("/get_urls/{id}", func(w http.ResponseWriter, r *http.Request) {
		seeds, ok := assignments[r.PathValue("id")]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_, _ = w.Write([]byte(`{"error":"Worker not configured!"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string][]string{"urls": seeds})
	})
	mux.HandleFunc("/post_results/data", func(w http.ResponseWriter, r *http.Request) {
		var batch []crawler.Outcome
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		stub.mu.Lock()
		stub.batches = append(stub.batches, batch)
		stub.mu.Unlock()
		_ = json.NewEncoder(w).Encode(crawler.IngestAck{Status: "ok", InsertedCount: len(batch)})
	})
	stub.srv = httptest.NewServer(mux)
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *orchestratorStub) received() [][]crawler.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

func newArxivRunner(t *testing.T, siteURL, orchestratorURL string) (*Runner, *scratch.Store) {
	t.Helper()
	fetcher, err := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	require.NoError(t, err)
	store, err := scratch.New(scratch.Config{BaseDir: t.TempDir(), Name: "arxiv_pdfs"})
	require.NoError(t, err)

	profile := crawler.DefaultProfiles()[crawler.ProfileArxiv]
	profile.BaseURL = siteURL
	s, err := site.New(profile, site.Deps{
		Fetcher: fetcher,
		Stream:  stream.New(stream.Config{Timeout: 2 * time.Second}),
		Store:   store,
		Hasher:  md5hash.New(),
	})
	require.NoError(t, err)

	runner := New(
		Config{Identity: "worker1"},
		orchestrator.NewAssignmentClient(orchestratorURL, fetcher),
		crawler.NewSiteCrawler(s, nil),
		store,
		orchestrator.NewCollectorClient(orchestratorURL, fetcher),
		zap.NewNop(),
	)
	return runner, store
}

func TestArxivRunEndToEnd(t *testing.T) {
	t.Parallel()

	var siteURL string
	siteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/list/cs/new":
			_, _ = fmt.Fprintf(w, `<html><body>
				<a href="/pdf/2401.00001v1">pdf</a>
				<a href="%s/pdf/2401.00002v1">pdf</a>
				<a href="/abs/2401.00003v1">abstract</a>
			</body></html>`, siteURL)
		case "/pdf/2401.00001v1":
			_, _ = w.Write([]byte("%PDF-1 first"))
		case "/pdf/2401.00002v1":
			_, _ = w.Write([]byte("%PDF-1 second"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer siteSrv.Close()
	siteURL = siteSrv.URL

	stub := newOrchestratorStub(t, map[string][]string{"worker1": {siteURL + "/list/cs/new"}})
	runner, store := newArxivRunner(t, siteURL, stub.srv.URL)

	result := runner.Run(context.Background())

	require.True(t, result.Delivered)
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, 2, result.Ack.InsertedCount)
	batches := stub.received()
	require.Len(t, batches, 1)

	sent := batches[0]
	require.Len(t, sent, 2)
	urls := []string{sent[0].URL, sent[1].URL}
	require.ElementsMatch(t, []string{siteURL + "/pdf/2401.00001v1", siteURL + "/pdf/2401.00002v1"}, urls)
	for _, o := range sent {
		require.Equal(t, crawler.StatusSuccess, o.Status)
		require.Len(t, o.Fingerprint, 32)
		require.Equal(t, store.Dir(), filepath.Dir(o.File))
	}

	_, err := os.Stat(store.Dir())
	require.True(t, os.IsNotExist(err), "scratch directory must be removed after the run")
}

func TestArxivRunAllDownloadsFail(t *testing.T) {
	t.Parallel()

	siteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/list" {
			_, _ = w.Write([]byte(`<a href="/pdf/1">a</a><a href="/pdf/2">b</a>`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer siteSrv.Close()

	stub := newOrchestratorStub(t, map[string][]string{"worker1": {siteSrv.URL + "/list", siteSrv.URL + "/missing"}})
	runner, store := newArxivRunner(t, siteSrv.URL, stub.srv.URL)

	result := runner.Run(context.Background())

	require.True(t, result.Delivered)
	require.Len(t, result.Batch, 3)
	for _, o := range result.Batch {
		require.False(t, o.OK())
		require.Empty(t, o.File)
		require.Empty(t, o.Fingerprint)
	}
	require.Equal(t, siteSrv.URL+"/missing", result.Batch[2].URL, "a failed seed yields one outcome for the seed")

	_, err := os.Stat(store.Dir())
	require.True(t, os.IsNotExist(err))
}

func TestRunPushesMetrics(t *testing.T) {
	t.Parallel()

	pushed := make(chan string, 1)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case pushed <- r.URL.Path:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	runner := New(
		Config{Identity: "worker2", PushURL: gateway.URL},
		&fakeAssigner{},
		nil,
		nil,
		&countingReporter{},
		zap.NewNop(),
	)
	runner.Run(context.Background())

	require.Equal(t, "/metrics/job/distcrawl_worker/instance/worker2", <-pushed)
}

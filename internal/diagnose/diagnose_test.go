package diagnose

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie_sync/internal/config"
	"movie_sync/internal/domain"
)

type fakeProber struct {
	movies []domain.Movie
	err    error
	calls  int
}

func (f *fakeProber) Probe(context.Context, domain.Status, string) ([]domain.Movie, error) {
	f.calls++
	return f.movies, f.err
}

type fakeWorkspace struct {
	meErr     error
	dbTitle   string
	dbErr     error
	handles   []domain.RecordHandle
	listErr   error
	pageErr   error
	pageCalls int
	listCalls int
}

func (f *fakeWorkspace) Me(context.Context) (string, error) {
	return "movie-sync", f.meErr
}

func (f *fakeWorkspace) RetrieveDatabase(context.Context, string) (string, error) {
	return f.dbTitle, f.dbErr
}

func (f *fakeWorkspace) ListAll(context.Context, string) ([]domain.RecordHandle, error) {
	f.listCalls++
	return f.handles, f.listErr
}

func (f *fakeWorkspace) RetrievePage(context.Context, string) error {
	f.pageCalls++
	return f.pageErr
}

func testConfig() *config.Config {
	return &config.Config{
		Douban: config.DoubanConfig{UserID: "ahbei", Mode: "web"},
		Notion: config.NotionConfig{APIKey: "secret", DatabaseID: "db-1"},
		Sync:   config.SyncConfig{Status: domain.StatusWatched},
	}
}

func run(cfg *config.Config, p Prober, w Workspace) *Report {
	return New(cfg, p, w, slog.New(slog.NewTextHandler(io.Discard, nil))).Run(context.Background())
}

func TestRun_AllPass(t *testing.T) {
	prober := &fakeProber{movies: []domain.Movie{{Title: "A"}, {Title: "B"}, {Title: "C"}, {Title: "D"}}}
	ws := &fakeWorkspace{dbTitle: "豆瓣电影", handles: make([]domain.RecordHandle, 12)}

	r := run(testConfig(), prober, ws)

	require.Len(t, r.Checks, 4)
	assert.True(t, r.OK())
	assert.Equal(t, "4 entries on first page, e.g. A, B, C", r.Checks[1].Detail)
	assert.Equal(t, `"豆瓣电影" has 12 records`, r.Checks[3].Detail)
	assert.Zero(t, ws.pageCalls)
}

func TestRun_ParentPageOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Notion.DatabaseID = ""
	cfg.Notion.ParentPageID = "parent-1"
	ws := &fakeWorkspace{}

	r := run(cfg, &fakeProber{}, ws)

	assert.True(t, r.OK())
	assert.Equal(t, "notion parent page", r.Checks[3].Name)
	assert.Equal(t, 1, ws.pageCalls)
	assert.Zero(t, ws.listCalls)
	assert.Contains(t, r.Checks[1].Detail, "no entries")
}

func TestRun_NoTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Notion.DatabaseID = ""

	r := run(cfg, &fakeProber{}, &fakeWorkspace{})

	assert.False(t, r.OK())
	assert.False(t, r.Checks[0].OK)
}

func TestRun_SourceFailure(t *testing.T) {
	prober := &fakeProber{err: &domain.RemoteServiceError{Service: "douban", StatusCode: 403}}

	r := run(testConfig(), prober, &fakeWorkspace{dbTitle: "x"})

	assert.False(t, r.OK())
	assert.False(t, r.Checks[1].OK)
	assert.Contains(t, r.Checks[1].Detail, "403")
	assert.True(t, r.Checks[2].OK)
}

func TestRun_TokenFailureSkipsDatabase(t *testing.T) {
	ws := &fakeWorkspace{meErr: errors.New("unauthorized")}

	r := run(testConfig(), &fakeProber{}, ws)

	assert.False(t, r.OK())
	require.Len(t, r.Checks, 3)
	assert.Zero(t, ws.listCalls)
}

func TestRun_DatabaseFailure(t *testing.T) {
	ws := &fakeWorkspace{dbErr: &domain.RemoteServiceError{Service: "notion", StatusCode: 404, Code: "object_not_found"}}

	r := run(testConfig(), &fakeProber{}, ws)

	assert.False(t, r.OK())
	assert.Contains(t, r.Checks[3].Detail, "object_not_found")
}

func TestReport_Write(t *testing.T) {
	r := &Report{}
	r.add("config", true, "ok")
	r.add("douban", false, "boom")

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))

	assert.Equal(t, "[PASS] config: ok\n[FAIL] douban: boom\noverall: false\n", buf.String())
}

func TestConfigFailure(t *testing.T) {
	r := ConfigFailure(&domain.ConfigurationError{Key: "douban.user_id", Reason: "is required"})

	assert.False(t, r.OK())
	require.Len(t, r.Checks, 1)
	assert.Contains(t, r.Checks[0].Detail, "douban.user_id")
}

package report

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie_sync/internal/domain"
)

func jsonLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func TestLog_RecordProcessed(t *testing.T) {
	var buf bytes.Buffer
	r := NewLog(newBufferLogger(&buf))
	ctx := context.Background()

	r.OnRecordProcessed(ctx, 1, 2, &domain.Movie{ExternalID: "A1", Title: "Alpha"},
		domain.RecordResult{Outcome: domain.OutcomeAdded, Handle: &domain.RecordHandle{ID: "p1"}})
	r.OnRecordProcessed(ctx, 2, 2, &domain.Movie{ExternalID: "B2"},
		domain.RecordResult{Outcome: domain.OutcomeFailed, Err: errors.New("rejected")})

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "Alpha", lines[0]["title"])
	assert.Equal(t, "added", lines[0]["action"])
	assert.Equal(t, "p1", lines[0]["page_id"])

	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "B2", lines[1]["title"])
	assert.Equal(t, "rejected", lines[1]["error"])
	assert.NotContains(t, lines[1], "page_id")
}

func TestLog_RunComplete(t *testing.T) {
	var buf bytes.Buffer
	r := NewLog(newBufferLogger(&buf))

	r.OnRunComplete(context.Background(), &domain.SyncStats{Status: domain.StatusWish, Total: 3, Added: 1, Updated: 1, Failed: 1})

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "run complete", lines[0]["msg"])
	assert.Equal(t, "wish", lines[0]["status"])
	assert.EqualValues(t, 3, lines[0]["total"])
	assert.EqualValues(t, 1, lines[0]["failed"])
}

type recorder struct {
	records []string
	runs    int
}

func (r *recorder) OnRecordProcessed(_ context.Context, _, _ int, m *domain.Movie, _ domain.RecordResult) {
	r.records = append(r.records, m.ExternalID)
}

func (r *recorder) OnRunComplete(context.Context, *domain.SyncStats) {
	r.runs++
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b}
	ctx := context.Background()

	m.OnRecordProcessed(ctx, 1, 1, &domain.Movie{ExternalID: "A1"}, domain.RecordResult{Outcome: domain.OutcomeAdded})
	m.OnRunComplete(ctx, &domain.SyncStats{})

	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []string{"A1"}, r.records)
		assert.Equal(t, 1, r.runs)
	}
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Alpha", displayTitle(&domain.Movie{ExternalID: "1", Title: "Alpha", OriginalTitle: "A"}))
	assert.Equal(t, "A", displayTitle(&domain.Movie{ExternalID: "1", OriginalTitle: "A"}))
	assert.Equal(t, "1", displayTitle(&domain.Movie{ExternalID: "1"}))
}

package notion

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

const testAPIKey = "secret_test"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePage struct {
	ID         string
	DatabaseID string
	Props      map[string]any
}

// fakeNotion is an in-memory stand-in for the subset of the Notion API the
// client uses.
type fakeNotion struct {
	mu        sync.Mutex
	pages     []*fakePage
	databases map[string]string
	bodies    map[string][]map[string]any
	hits      map[string]int
	seq       int

	// maxPageSize caps query results regardless of the requested page_size.
	maxPageSize int
	// ignoreFilter makes queries return every page of the database.
	ignoreFilter bool
	// failWith forces every request to answer with this status.
	failWith int
}

func newFakeNotion(t *testing.T) (*fakeNotion, *httptest.Server) {
	t.Helper()
	f := &fakeNotion{
		databases: make(map[string]string),
		bodies:    make(map[string][]map[string]any),
		hits:      make(map[string]int),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestClient(srv *httptest.Server, pageSize int) *Client {
	return New(Config{
		BaseURL:  srv.URL,
		APIKey:   testAPIKey,
		Version:  "2022-06-28",
		Timeout:  5 * time.Second,
		PageSize: pageSize,
	}, discardLogger())
}

func (f *fakeNotion) hitCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func (f *fakeNotion) lastBody(key string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bodies[key]
	if len(b) == 0 {
		return nil
	}
	return b[len(b)-1]
}

func (f *fakeNotion) configure(fn func(f *fakeNotion)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeNotion) addDatabase(id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.databases[id] = title
}

func (f *fakeNotion) addPage(databaseID, externalID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := "page-" + strconv.Itoa(f.seq)
	f.pages = append(f.pages, &fakePage{
		ID:         id,
		DatabaseID: databaseID,
		Props: map[string]any{
			PropExternalID: map[string]any{
				"rich_text": []any{map[string]any{"text": map[string]any{"content": externalID}}},
			},
		},
	})
	return id
}

func (f *fakeNotion) pageCount(databaseID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pages {
		if p.DatabaseID == databaseID {
			n++
		}
	}
	return n
}

func (f *fakeNotion) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := routeKey(r.Method, r.URL.Path)
	f.hits[key]++

	if f.failWith != 0 {
		writeError(w, f.failWith, "internal_server_error", "forced failure")
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
		writeError(w, http.StatusUnauthorized, "unauthorized", "API token is invalid.")
		return
	}
	if r.Header.Get("Notion-Version") == "" {
		writeError(w, http.StatusBadRequest, "missing_version", "Notion-Version header failed validation")
		return
	}

	var body map[string]any
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
				return
			}
		}
	}
	f.bodies[key] = append(f.bodies[key], body)

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case key == "POST /databases":
		f.seq++
		id := "db-" + strconv.Itoa(f.seq)
		f.databases[id] = titleOf(body["title"])
		writeJSON(w, map[string]any{"object": "database", "id": id})

	case key == "GET /databases/:id":
		title, ok := f.databases[parts[1]]
		if !ok {
			writeError(w, http.StatusNotFound, "object_not_found", "Could not find database")
			return
		}
		writeJSON(w, map[string]any{
			"object": "database",
			"id":     parts[1],
			"title":  []any{map[string]any{"plain_text": title}},
		})

	case key == "POST /databases/:id/query":
		f.query(w, parts[1], body)

	case key == "POST /pages":
		parent, _ := body["parent"].(map[string]any)
		dbID, _ := parent["database_id"].(string)
		props, _ := body["properties"].(map[string]any)
		f.seq++
		p := &fakePage{ID: "page-" + strconv.Itoa(f.seq), DatabaseID: dbID, Props: props}
		f.pages = append(f.pages, p)
		writeJSON(w, map[string]any{"object": "page", "id": p.ID})

	case key == "PATCH /pages/:id":
		p := f.find(parts[1])
		if p == nil {
			writeError(w, http.StatusNotFound, "object_not_found", "Could not find page")
			return
		}
		props, _ := body["properties"].(map[string]any)
		for k, v := range props {
			p.Props[k] = v
		}
		writeJSON(w, map[string]any{"object": "page", "id": p.ID})

	case key == "GET /pages/:id":
		if f.find(parts[1]) == nil {
			writeError(w, http.StatusNotFound, "object_not_found", "Could not find page")
			return
		}
		writeJSON(w, map[string]any{"object": "page", "id": parts[1]})

	case key == "GET /users/:id" && parts[1] == "me":
		writeJSON(w, map[string]any{"object": "user", "id": "bot-1", "name": "movie-sync", "type": "bot"})

	default:
		writeError(w, http.StatusNotFound, "invalid_request_url", "Invalid request URL.")
	}
}

func (f *fakeNotion) query(w http.ResponseWriter, databaseID string, body map[string]any) {
	if _, ok := f.databases[databaseID]; !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database")
		return
	}

	want, filtered := "", false
	if filter, ok := body["filter"].(map[string]any); ok && !f.ignoreFilter {
		rt, _ := filter["rich_text"].(map[string]any)
		want, _ = rt["equals"].(string)
		filtered = true
	}

	var matched []*fakePage
	for _, p := range f.pages {
		if p.DatabaseID != databaseID {
			continue
		}
		if filtered && externalIDOf(p.Props) != want {
			continue
		}
		matched = append(matched, p)
	}

	size := 100
	if n, ok := body["page_size"].(float64); ok && n > 0 {
		size = int(n)
	}
	if f.maxPageSize > 0 && size > f.maxPageSize {
		size = f.maxPageSize
	}
	start := 0
	if c, ok := body["start_cursor"].(string); ok {
		start, _ = strconv.Atoi(c)
	}
	end := min(start+size, len(matched))

	results := make([]any, 0, end-start)
	for _, p := range matched[start:end] {
		results = append(results, map[string]any{
			"object": "page",
			"id":     p.ID,
			"properties": map[string]any{
				PropExternalID: map[string]any{
					"type":      "rich_text",
					"rich_text": []any{map[string]any{"plain_text": externalIDOf(p.Props)}},
				},
			},
		})
	}

	resp := map[string]any{"object": "list", "results": results, "has_more": end < len(matched), "next_cursor": nil}
	if end < len(matched) {
		resp["next_cursor"] = strconv.Itoa(end)
	}
	writeJSON(w, resp)
}

func (f *fakeNotion) find(id string) *fakePage {
	for _, p := range f.pages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func routeKey(method, path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 {
		parts[1] = ":id"
	}
	return method + " /" + strings.Join(parts, "/")
}

func externalIDOf(props map[string]any) string {
	prop, _ := props[PropExternalID].(map[string]any)
	return textOf(prop["rich_text"])
}

func titleOf(v any) string {
	return textOf(v)
}

func textOf(v any) string {
	items, _ := v.([]any)
	var b strings.Builder
	for _, it := range items {
		m, _ := it.(map[string]any)
		text, _ := m["text"].(map[string]any)
		content, _ := text["content"].(string)
		b.WriteString(content)
	}
	return b.String()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object":  "error",
		"status":  status,
		"code":    code,
		"message": message,
	})
}

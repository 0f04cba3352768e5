// Package diagnose runs read-only connectivity checks against the
// configured Douban account and Notion workspace.
package diagnose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"movie_sync/internal/config"
	"movie_sync/internal/domain"
)

const sampleTitles = 3

type Prober interface {
	Probe(ctx context.Context, status domain.Status, userID string) ([]domain.Movie, error)
}

type Workspace interface {
	Me(ctx context.Context) (string, error)
	RetrieveDatabase(ctx context.Context, databaseID string) (string, error)
	ListAll(ctx context.Context, databaseID string) ([]domain.RecordHandle, error)
	RetrievePage(ctx context.Context, pageID string) error
}

type Check struct {
	Name   string
	OK     bool
	Detail string
}

type Report struct {
	Checks []Check
}

// OK is true when every check passed.
func (r *Report) OK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return len(r.Checks) > 0
}

func (r *Report) add(name string, ok bool, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
}

// Write prints one PASS/FAIL line per check and the overall result.
func (r *Report) Write(w io.Writer) error {
	for _, c := range r.Checks {
		mark := "PASS"
		if !c.OK {
			mark = "FAIL"
		}
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", mark, c.Name, c.Detail); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "overall: %t\n", r.OK())
	return err
}

// ConfigFailure builds the report for a configuration that failed to load.
func ConfigFailure(err error) *Report {
	r := &Report{}
	r.add("config", false, "%v", err)
	return r
}

type Doctor struct {
	cfg       *config.Config
	source    Prober
	workspace Workspace
	logger    *slog.Logger
}

func New(cfg *config.Config, source Prober, workspace Workspace, logger *slog.Logger) *Doctor {
	return &Doctor{
		cfg:       cfg,
		source:    source,
		workspace: workspace,
		logger:    logger.With("component", "diagnose"),
	}
}

// Run executes every check. Nothing is written to either service.
func (d *Doctor) Run(ctx context.Context) *Report {
	r := &Report{}
	d.checkConfig(r)
	d.checkSource(ctx, r)
	d.checkWorkspace(ctx, r)
	d.logger.Info("diagnostics finished", "checks", len(r.Checks), "ok", r.OK())
	return r
}

func (d *Doctor) checkConfig(r *Report) {
	cfg := d.cfg
	target := "database " + cfg.Notion.DatabaseID
	if !cfg.Notion.DatabaseConfigured() {
		if cfg.Notion.ParentPageID == "" {
			r.add("config", false, "neither notion.database_id nor notion.parent_page_id is set")
			return
		}
		target = "new database under page " + cfg.Notion.ParentPageID
	}
	r.add("config", true, "user %s, status %s, mode %s, incremental %t, %s",
		cfg.Douban.UserID, cfg.Sync.Status, cfg.Douban.Mode, cfg.Sync.Incremental, target)
}

func (d *Doctor) checkSource(ctx context.Context, r *Report) {
	movies, err := d.source.Probe(ctx, d.cfg.Sync.Status, d.cfg.Douban.UserID)
	if err != nil {
		r.add("douban", false, "%v", err)
		return
	}
	if len(movies) == 0 {
		r.add("douban", true, "reachable, no entries for status %s", d.cfg.Sync.Status)
		return
	}

	titles := make([]string, 0, sampleTitles)
	for _, m := range movies[:min(sampleTitles, len(movies))] {
		titles = append(titles, m.Title)
	}
	r.add("douban", true, "%d entries on first page, e.g. %s", len(movies), strings.Join(titles, ", "))
}

func (d *Doctor) checkWorkspace(ctx context.Context, r *Report) {
	name, err := d.workspace.Me(ctx)
	if err != nil {
		r.add("notion token", false, "%v", err)
		return
	}
	r.add("notion token", true, "authenticated as %s", name)

	switch {
	case d.cfg.Notion.DatabaseConfigured():
		id := d.cfg.Notion.DatabaseID
		title, err := d.workspace.RetrieveDatabase(ctx, id)
		if err != nil {
			r.add("notion database", false, "%v", err)
			return
		}
		handles, err := d.workspace.ListAll(ctx, id)
		if err != nil {
			r.add("notion database", false, "%q: %v", title, err)
			return
		}
		r.add("notion database", true, "%q has %d records", title, len(handles))

	case d.cfg.Notion.ParentPageID != "":
		if err := d.workspace.RetrievePage(ctx, d.cfg.Notion.ParentPageID); err != nil {
			r.add("notion parent page", false, "%v", err)
			return
		}
		r.add("notion parent page", true, "page %s is shared with the integration", d.cfg.Notion.ParentPageID)
	}
}

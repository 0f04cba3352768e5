package notion

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"movie_sync/internal/domain"
)

// EnsureSchema creates a movie database under a parent page and returns its id.
// Every call creates a new database.
func (c *Client) EnsureSchema(ctx context.Context, parentPageID, name string) (string, error) {
	req := map[string]any{
		"parent":     map[string]any{"type": "page_id", "page_id": parentPageID},
		"title":      []map[string]any{textObject(name)},
		"properties": Schema(),
	}

	var db database
	if err := c.do(ctx, "POST", "/databases", req, &db); err != nil {
		return "", fmt.Errorf("create database: %w", err)
	}
	if db.ID == "" {
		return "", fmt.Errorf("create database: empty id in response")
	}

	c.logger.Info("created database", "database_id", db.ID, "parent_page_id", parentPageID, "name", name)
	return db.ID, nil
}

// FindByNaturalKey returns the first page whose natural key equals externalID,
// or nil. The server-side filter narrows the scan; the key is still compared
// exactly on every returned page.
func (c *Client) FindByNaturalKey(ctx context.Context, databaseID, externalID string) (*domain.RecordHandle, error) {
	filter := map[string]any{
		"property":  PropExternalID,
		"rich_text": map[string]any{"equals": externalID},
	}

	var found *domain.RecordHandle
	err := c.query(ctx, databaseID, filter, func(h domain.RecordHandle) bool {
		if h.ExternalID == externalID {
			found = &h
			return false
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("find by %s: %w", PropExternalID, err)
	}
	return found, nil
}

// ListAll returns every page of the database in store order.
func (c *Client) ListAll(ctx context.Context, databaseID string) ([]domain.RecordHandle, error) {
	var handles []domain.RecordHandle
	err := c.query(ctx, databaseID, nil, func(h domain.RecordHandle) bool {
		handles = append(handles, h)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return handles, nil
}

func (c *Client) Create(ctx context.Context, databaseID string, m *domain.Movie) (*domain.RecordHandle, error) {
	req := map[string]any{
		"parent":     map[string]any{"type": "database_id", "database_id": databaseID},
		"properties": BuildProperties(m),
	}
	setCover(req, m)

	var p page
	if err := c.do(ctx, "POST", "/pages", req, &p); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &domain.RecordHandle{ID: p.ID, ExternalID: m.ExternalID}, nil
}

// Update overwrites the mapped properties and the cover of a page. Values the
// movie does not have are not sent and keep their current content.
func (c *Client) Update(ctx context.Context, databaseID, pageID string, m *domain.Movie) (*domain.RecordHandle, error) {
	req := map[string]any{
		"properties": BuildProperties(m),
	}
	setCover(req, m)

	var p page
	if err := c.do(ctx, "PATCH", "/pages/"+url.PathEscape(pageID), req, &p); err != nil {
		return nil, fmt.Errorf("update page %s: %w", pageID, err)
	}
	id := p.ID
	if id == "" {
		id = pageID
	}
	return &domain.RecordHandle{ID: id, ExternalID: m.ExternalID}, nil
}

func setCover(req map[string]any, m *domain.Movie) {
	if m.PosterURL != "" {
		req["cover"] = map[string]any{"type": "external", "external": map[string]any{"url": m.PosterURL}}
	}
}

// Me returns the name of the integration the token belongs to.
func (c *Client) Me(ctx context.Context) (string, error) {
	var u user
	if err := c.do(ctx, "GET", "/users/me", nil, &u); err != nil {
		return "", fmt.Errorf("retrieve bot user: %w", err)
	}
	if u.Name == "" {
		return u.ID, nil
	}
	return u.Name, nil
}

// RetrievePage checks that a page exists and is shared with the integration.
func (c *Client) RetrievePage(ctx context.Context, pageID string) error {
	if err := c.do(ctx, "GET", "/pages/"+url.PathEscape(pageID), nil, nil); err != nil {
		return fmt.Errorf("retrieve page %s: %w", pageID, err)
	}
	return nil
}

// RetrieveDatabase returns the database title.
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (string, error) {
	var db database
	if err := c.do(ctx, "GET", "/databases/"+url.PathEscape(databaseID), nil, &db); err != nil {
		return "", fmt.Errorf("retrieve database %s: %w", databaseID, err)
	}
	var b strings.Builder
	for _, t := range db.Title {
		b.WriteString(t.PlainText)
	}
	return b.String(), nil
}

// query pages through a database query, calling fn per page until fn
// returns false or the results are exhausted.
func (c *Client) query(ctx context.Context, databaseID string, filter map[string]any, fn func(domain.RecordHandle) bool) error {
	path := "/databases/" + url.PathEscape(databaseID) + "/query"
	req := queryRequest{PageSize: c.pageSize, Filter: filter}

	for {
		var resp queryResponse
		if err := c.do(ctx, "POST", path, req, &resp); err != nil {
			return err
		}

		for _, p := range resp.Results {
			h := domain.RecordHandle{ID: p.ID}
			if prop, ok := p.Properties[PropExternalID]; ok {
				h.ExternalID = strings.TrimSpace(prop.plainText())
			}
			if !fn(h) {
				return nil
			}
		}

		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return nil
		}
		req.StartCursor = *resp.NextCursor
	}
}

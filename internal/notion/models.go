package notion

import "strings"

type page struct {
	Object     string              `json:"object"`
	ID         string              `json:"id"`
	URL        string              `json:"url"`
	Properties map[string]property `json:"properties"`
}

type property struct {
	Type     string     `json:"type"`
	Title    []textItem `json:"title"`
	RichText []textItem `json:"rich_text"`
}

type textItem struct {
	PlainText string `json:"plain_text"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text"`
}

func (p property) plainText() string {
	items := p.RichText
	if p.Type == "title" {
		items = p.Title
	}
	var b strings.Builder
	for _, it := range items {
		switch {
		case it.PlainText != "":
			b.WriteString(it.PlainText)
		case it.Text != nil:
			b.WriteString(it.Text.Content)
		}
	}
	return b.String()
}

type queryRequest struct {
	PageSize    int            `json:"page_size"`
	StartCursor string         `json:"start_cursor,omitempty"`
	Filter      map[string]any `json:"filter,omitempty"`
}

type queryResponse struct {
	Results    []page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type database struct {
	ID    string     `json:"id"`
	Title []textItem `json:"title"`
}

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

package douban

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// collectionResponse is the JSON collection API response. Items stay raw so
// one malformed entry does not spoil the rest of the page.
type collectionResponse struct {
	Start       int               `json:"start"`
	Count       int               `json:"count"`
	Total       int               `json:"total"`
	Collections []json.RawMessage `json:"collections"`
}

type collectionItem struct {
	Status    string   `json:"status"`
	Comment   string   `json:"comment"`
	CreatedAt string   `json:"created_at"`
	Rating    *rating  `json:"rating"`
	Subject   *subject `json:"subject"`
}

type rating struct {
	Value flexString `json:"value"`
}

type subject struct {
	ID              flexString `json:"id"`
	Title           string     `json:"title"`
	OriginalTitle   string     `json:"original_title"`
	Year            flexString `json:"year"`
	Genres          []string   `json:"genres"`
	Directors       []person   `json:"directors"`
	Casts           []person   `json:"casts"`
	Countries       []string   `json:"countries"`
	MainlandPubdate string     `json:"mainland_pubdate"`
	Pubdates        []string   `json:"pubdates"`
	Durations       []string   `json:"durations"`
	Alt             string     `json:"alt"`
	Images          images     `json:"images"`
	Summary         string     `json:"summary"`
}

type person struct {
	Name string `json:"name"`
}

type images struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

func (f flexString) Float() float64 {
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return 0
	}
	return v
}

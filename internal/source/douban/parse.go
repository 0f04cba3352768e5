package douban

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"movie_sync/internal/domain"
)

var (
	subjectIDRe = regexp.MustCompile(`/subject/(\d+)`)
	ratingRe    = regexp.MustCompile(`rating(\d)-t`)
	dateRe      = regexp.MustCompile(`^(\d{4})(?:-(\d{2})(?:-(\d{2}))?)?`)
	minutesRe   = regexp.MustCompile(`(\d+)\s*分钟`)
	intRe       = regexp.MustCompile(`\d+`)
	yearParenRe = regexp.MustCompile(`\((\d{4})\)`)
)

// listPage is one parsed collection page.
type listPage struct {
	Movies []domain.Movie
	// Next is the absolute url of the following page, "" on the last page.
	Next string
	// Skipped holds one *domain.ParseError per unusable entry.
	Skipped []error
}

// parseListPage parses a collection page rendered with mode=grid.
func parseListPage(html []byte, pageURL string, status domain.Status) (listPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return listPage{}, err
	}

	var page listPage
	doc.Find("div.grid-view div.item").Each(func(i int, s *goquery.Selection) {
		m, err := parseListItem(s, status)
		if err != nil {
			page.Skipped = append(page.Skipped, err)
			return
		}
		page.Movies = append(page.Movies, m)
	})

	if href, ok := doc.Find("div.paginator span.next a").First().Attr("href"); ok {
		page.Next = resolveURL(pageURL, strings.TrimSpace(href))
	}

	return page, nil
}

func parseListItem(s *goquery.Selection, status domain.Status) (domain.Movie, error) {
	link := s.Find("li.title a").First()
	href := strings.TrimSpace(link.AttrOr("href", ""))
	if href == "" {
		href = strings.TrimSpace(s.Find("div.pic a").First().AttrOr("href", ""))
	}

	titleText := normSpace(link.Find("em").First().Text())
	if titleText == "" {
		titleText = normSpace(s.Find("div.pic a").First().AttrOr("title", ""))
	}

	id := subjectID(href)
	if id == "" {
		return domain.Movie{}, &domain.ParseError{Entry: titleText, Reason: "no subject id in " + strconv.Quote(href)}
	}

	title, original := splitTitle(titleText)
	if title == "" {
		return domain.Movie{}, &domain.ParseError{Entry: id, Reason: "empty title"}
	}

	m := domain.Movie{
		ExternalID:    id,
		Title:         title,
		OriginalTitle: original,
		URL:           href,
		PosterURL:     strings.TrimSpace(s.Find("div.pic img").First().AttrOr("src", "")),
		Comment:       normSpace(s.Find("span.comment").First().Text()),
		RatingDate:    isoDate(normSpace(s.Find("span.date").First().Text())),
		Status:        status,
	}

	s.Find("li span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		class := span.AttrOr("class", "")
		if sub := ratingRe.FindStringSubmatch(class); sub != nil {
			m.Rating, _ = strconv.ParseFloat(sub[1], 64)
			return false
		}
		return true
	})

	applyIntro(&m, normSpace(s.Find("li.intro").First().Text()))

	m.Normalize()
	return m, nil
}

// applyIntro extracts release date, year and runtime from the " / " separated
// intro line. The remaining tokens (people, regions, genres) are not reliably
// distinguishable there; detail pages fill them.
func applyIntro(m *domain.Movie, intro string) {
	for _, tok := range strings.Split(intro, "/") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if m.Year == "" {
			if sub := dateRe.FindStringSubmatch(tok); sub != nil {
				m.Year = sub[1]
				m.ReleaseDate = isoDate(tok)
				continue
			}
		}
		if m.DurationMinutes == 0 {
			if sub := minutesRe.FindStringSubmatch(tok); sub != nil {
				m.DurationMinutes, _ = strconv.Atoi(sub[1])
			}
		}
	}
}

// detail is the subset of a subject page merged into a list entry.
type detail struct {
	Year        string
	Directors   []string
	Cast        []string
	Genres      []string
	Regions     []string
	ReleaseDate string
	Runtime     int
	Summary     string
	PosterURL   string
}

func parseDetailPage(html []byte) (detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return detail{}, err
	}

	var d detail
	if sub := yearParenRe.FindStringSubmatch(doc.Find("h1 span.year").First().Text()); sub != nil {
		d.Year = sub[1]
	}

	info := doc.Find("#info")
	d.Directors = texts(info.Find(`a[rel="v:directedBy"]`))
	d.Cast = texts(info.Find(`a[rel="v:starring"]`))
	d.Genres = texts(info.Find(`span[property="v:genre"]`))

	if rel := info.Find(`span[property="v:initialReleaseDate"]`).First(); rel.Length() > 0 {
		d.ReleaseDate = isoDate(rel.AttrOr("content", normSpace(rel.Text())))
	}

	if rt := info.Find(`span[property="v:runtime"]`).First(); rt.Length() > 0 {
		v := rt.AttrOr("content", "")
		if v == "" {
			v = intRe.FindString(rt.Text())
		}
		d.Runtime, _ = strconv.Atoi(v)
	}

	for _, line := range strings.Split(info.Text(), "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "制片国家/地区:"); ok {
			for _, r := range strings.Split(rest, "/") {
				if r = strings.TrimSpace(r); r != "" {
					d.Regions = append(d.Regions, r)
				}
			}
			break
		}
	}

	summary := doc.Find("span.all.hidden").First()
	if summary.Length() == 0 {
		summary = doc.Find(`span[property="v:summary"]`).First()
	}
	d.Summary = normLines(summary.Text())

	d.PosterURL = strings.TrimSpace(doc.Find("#mainpic img").First().AttrOr("src", ""))

	return d, nil
}

// merge fills m from d. Detail values win for fields the list page cannot
// carry; the user's own data (rating, comment, dates rated) is untouched.
func (d detail) merge(m *domain.Movie) {
	if len(d.Directors) > 0 {
		m.Directors = d.Directors
	}
	if len(d.Cast) > 0 {
		m.Cast = d.Cast
	}
	if len(d.Genres) > 0 {
		m.Genres = d.Genres
	}
	if len(d.Regions) > 0 {
		m.Regions = d.Regions
	}
	if d.Summary != "" {
		m.Summary = d.Summary
	}
	if d.Runtime > 0 {
		m.DurationMinutes = d.Runtime
	}
	if d.ReleaseDate != "" {
		m.ReleaseDate = d.ReleaseDate
	}
	if m.Year == "" {
		m.Year = d.Year
	}
	if m.PosterURL == "" {
		m.PosterURL = d.PosterURL
	}
	m.Normalize()
}

func subjectID(href string) string {
	if sub := subjectIDRe.FindStringSubmatch(href); sub != nil {
		return sub[1]
	}
	return ""
}

// splitTitle splits "肖申克的救赎 / The Shawshank Redemption" into display and
// original title.
func splitTitle(s string) (string, string) {
	title, original, _ := strings.Cut(s, " / ")
	return strings.TrimSpace(title), strings.TrimSpace(original)
}

// isoDate returns the YYYY-MM-DD prefix of s, or "" when s has no full date.
func isoDate(s string) string {
	sub := dateRe.FindStringSubmatch(strings.TrimSpace(s))
	if sub == nil || sub[2] == "" || sub[3] == "" {
		return ""
	}
	return sub[1] + "-" + sub[2] + "-" + sub[3]
}

func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := normSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normLines collapses each line's whitespace and drops blank lines.
func normLines(s string) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = normSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

func resolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

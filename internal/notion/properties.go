package notion

import (
	"regexp"
	"strconv"
	"strings"

	"movie_sync/internal/domain"
)

// Property names of the movie database.
const (
	PropTitle         = "电影名称"
	PropExternalID    = "豆瓣ID"
	PropStatus        = "状态"
	PropOriginalTitle = "原始名称"
	PropRating        = "评分"
	PropYear          = "上映年份"
	PropGenres        = "类型"
	PropDirectors     = "导演"
	PropCast          = "演员"
	PropRegions       = "地区"
	PropReleaseDate   = "上映日期"
	PropDuration      = "时长"
	PropURL           = "豆瓣链接"
	PropPoster        = "海报"
	PropSummary       = "简介"
	PropComment       = "用户评论"
	PropRatingDate    = "评分日期"
)

const maxTextLen = 2000

var statusLabels = map[domain.Status]string{
	domain.StatusWatched:    "已看",
	domain.StatusWish:       "想看",
	domain.StatusInProgress: "在看",
}

// StatusLabel maps a status to its select option; unknown values map to 已看.
func StatusLabel(s domain.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[domain.StatusWatched]
}

// field is one row of the movie-to-database mapping. value returns the
// property payload and whether the property should be written at all.
type field struct {
	name   string
	schema map[string]any
	value  func(m *domain.Movie) (map[string]any, bool)
}

var fields = []field{
	{
		name:   PropTitle,
		schema: map[string]any{"title": map[string]any{}},
		value: func(m *domain.Movie) (map[string]any, bool) {
			return map[string]any{"title": richText(m.Title)}, true
		},
	},
	{
		name:   PropOriginalTitle,
		schema: map[string]any{"rich_text": map[string]any{}},
		value:  textValue(func(m *domain.Movie) string { return m.OriginalTitle }),
	},
	{
		name:   PropExternalID,
		schema: map[string]any{"rich_text": map[string]any{}},
		value: func(m *domain.Movie) (map[string]any, bool) {
			return map[string]any{"rich_text": richText(m.ExternalID)}, true
		},
	},
	{
		name: PropStatus,
		schema: map[string]any{"select": map[string]any{"options": []map[string]any{
			{"name": statusLabels[domain.StatusWatched], "color": "green"},
			{"name": statusLabels[domain.StatusWish], "color": "blue"},
			{"name": statusLabels[domain.StatusInProgress], "color": "yellow"},
		}}},
		value: func(m *domain.Movie) (map[string]any, bool) {
			return map[string]any{"select": map[string]any{"name": StatusLabel(m.Status)}}, true
		},
	},
	{
		name:   PropRating,
		schema: numberSchema(),
		value: func(m *domain.Movie) (map[string]any, bool) {
			if m.Rating <= 0 {
				return nil, false
			}
			return map[string]any{"number": m.Rating}, true
		},
	},
	{
		name:   PropYear,
		schema: numberSchema(),
		value: func(m *domain.Movie) (map[string]any, bool) {
			year, ok := ParseNonNegativeInt(m.Year)
			if !ok {
				return nil, false
			}
			return map[string]any{"number": year}, true
		},
	},
	{
		name:   PropGenres,
		schema: map[string]any{"multi_select": map[string]any{"options": []any{}}},
		value:  multiSelectValue(func(m *domain.Movie) []string { return m.Genres }),
	},
	{
		name:   PropDirectors,
		schema: map[string]any{"rich_text": map[string]any{}},
		value:  textValue(func(m *domain.Movie) string { return strings.Join(m.Directors, ", ") }),
	},
	{
		name:   PropCast,
		schema: map[string]any{"rich_text": map[string]any{}},
		value:  textValue(func(m *domain.Movie) string { return strings.Join(m.Cast, ", ") }),
	},
	{
		name:   PropRegions,
		schema: map[string]any{"multi_select": map[string]any{"options": []any{}}},
		value:  multiSelectValue(func(m *domain.Movie) []string { return m.Regions }),
	},
	{
		name:   PropReleaseDate,
		schema: map[string]any{"date": map[string]any{}},
		value:  dateValue(func(m *domain.Movie) string { return m.ReleaseDate }),
	},
	{
		name:   PropDuration,
		schema: numberSchema(),
		value: func(m *domain.Movie) (map[string]any, bool) {
			if m.DurationMinutes <= 0 {
				return nil, false
			}
			return map[string]any{"number": m.DurationMinutes}, true
		},
	},
	{
		name:   PropURL,
		schema: map[string]any{"url": map[string]any{}},
		value: func(m *domain.Movie) (map[string]any, bool) {
			if m.URL == "" {
				return nil, false
			}
			return map[string]any{"url": m.URL}, true
		},
	},
	{
		name:   PropPoster,
		schema: map[string]any{"files": map[string]any{}},
		value: func(m *domain.Movie) (map[string]any, bool) {
			if m.PosterURL == "" {
				return nil, false
			}
			return map[string]any{"files": []map[string]any{{
				"type":     "external",
				"name":     truncate(m.Title+"海报", 100),
				"external": map[string]any{"url": m.PosterURL},
			}}}, true
		},
	},
	{
		name:   PropSummary,
		schema: map[string]any{"rich_text": map[string]any{}},
		value:  textValue(func(m *domain.Movie) string { return m.Summary }),
	},
	{
		name:   PropComment,
		schema: map[string]any{"rich_text": map[string]any{}},
		value:  textValue(func(m *domain.Movie) string { return m.Comment }),
	},
	{
		name:   PropRatingDate,
		schema: map[string]any{"date": map[string]any{}},
		value:  dateValue(func(m *domain.Movie) string { return m.RatingDate }),
	},
}

// BuildProperties maps a movie to the page property payload. Title, natural
// key and status are always present; every other property is omitted when
// the movie has no usable value for it.
func BuildProperties(m *domain.Movie) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := f.value(m); ok {
			props[f.name] = v
		}
	}
	return props
}

// Schema returns the database property definitions.
func Schema() map[string]any {
	schema := make(map[string]any, len(fields))
	for _, f := range fields {
		schema[f.name] = f.schema
	}
	return schema
}

// ParseNonNegativeInt accepts plain decimal digits only.
func ParseNonNegativeInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func numberSchema() map[string]any {
	return map[string]any{"number": map[string]any{"format": "number"}}
}

func textValue(get func(m *domain.Movie) string) func(m *domain.Movie) (map[string]any, bool) {
	return func(m *domain.Movie) (map[string]any, bool) {
		s := get(m)
		if s == "" {
			return nil, false
		}
		return map[string]any{"rich_text": richText(s)}, true
	}
}

func multiSelectValue(get func(m *domain.Movie) []string) func(m *domain.Movie) (map[string]any, bool) {
	return func(m *domain.Movie) (map[string]any, bool) {
		var opts []map[string]any
		seen := make(map[string]struct{})
		for _, v := range get(m) {
			name := optionName(v)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			opts = append(opts, map[string]any{"name": name})
		}
		if len(opts) == 0 {
			return nil, false
		}
		return map[string]any{"multi_select": opts}, true
	}
}

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

func dateValue(get func(m *domain.Movie) string) func(m *domain.Movie) (map[string]any, bool) {
	return func(m *domain.Movie) (map[string]any, bool) {
		d := isoDateRe.FindString(strings.TrimSpace(get(m)))
		if d == "" {
			return nil, false
		}
		return map[string]any{"date": map[string]any{"start": d}}, true
	}
}

// richText splits s into text objects of at most maxTextLen characters each.
func richText(s string) []map[string]any {
	runes := []rune(s)
	out := make([]map[string]any, 0, len(runes)/maxTextLen+1)
	for len(runes) > maxTextLen {
		out = append(out, textObject(string(runes[:maxTextLen])))
		runes = runes[maxTextLen:]
	}
	return append(out, textObject(string(runes)))
}

func textObject(s string) map[string]any {
	return map[string]any{"type": "text", "text": map[string]any{"content": s}}
}

// optionName makes a select option name acceptable: no commas, at most 100 chars.
func optionName(s string) string {
	s = strings.ReplaceAll(s, ",", " ")
	return truncate(strings.TrimSpace(s), 100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

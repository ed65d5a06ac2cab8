package domain

import (
	"strings"
	"unicode/utf8"
)

const MaxQueryLength = 200

// SearchQuery - обрезанная по краям строка запроса, она же ключ кеша.
type SearchQuery string

func NewSearchQuery(raw string) (SearchQuery, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", ErrEmptyQuery
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", ErrQueryTooLong
	}
	return SearchQuery(q), nil
}

func (q SearchQuery) String() string {
	return string(q)
}

func (q SearchQuery) IsABN() bool {
	return IsABN(string(q))
}

// Key - ключ кеша на клиенте, никакой нормализации кроме trim
func Key(raw string) string {
	return strings.TrimSpace(raw)
}

type SearchResponse struct {
	Results []ABNEntity `json:"results"`
	Query   string      `json:"query"`
	Count   int         `json:"count"`
}

func NewSearchResponse(query string, results []ABNEntity) *SearchResponse {
	if results == nil {
		results = []ABNEntity{}
	}
	return &SearchResponse{
		Results: results,
		Query:   query,
		Count:   len(results),
	}
}

// Consistent - count совпадает с длиной results. На клиенте count только информативный.
func (r *SearchResponse) Consistent() bool {
	return r.Count == len(r.Results)
}

func (r *SearchResponse) IsEmpty() bool {
	return len(r.Results) == 0
}

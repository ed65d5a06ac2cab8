package view

import (
	"fmt"

	"github.com/kitbuilder587/abn-search/internal/domain"
	"github.com/kitbuilder587/abn-search/internal/query"
)

const (
	DefaultTitle       = "Australian Business Number Search"
	DefaultDescription = "Search for any registered Australian business by ABN or business name"
	DefaultPlaceholder = "Enter ABN or business name..."

	LoadingMessage = "Searching ABN registry..."
	EmptyTitle     = "No results found"
	EmptyMessage   = "No businesses found matching search term. Try a different search term."
	ErrorTitle     = "Something went wrong"
	ErrorFallback  = "An unexpected error occurred while searching."
)

var InfoBadges = []string{"Real-time data", "Official ABR registry", "Free to use"}

type Page struct {
	Title       string
	Description string
	Placeholder string
	Badges      []string

	Query   string
	State   State
	Summary string
	Cards   []Card

	ErrorMessage string
	// запрос можно повторить (кнопка Try Again)
	CanRetry bool
}

func NewPage(snap query.Snapshot) Page {
	p := Page{
		Title:       DefaultTitle,
		Description: DefaultDescription,
		Placeholder: DefaultPlaceholder,
		Badges:      InfoBadges,
		Query:       snap.Query,
		State:       Select(snap.Query, snap.Result),
	}

	switch p.State {
	case StateError:
		p.ErrorMessage = ErrorMessage(snap.Result.Err)
		p.CanRetry = true
	case StateResults:
		resp := snap.Result.Data
		p.Cards = make([]Card, 0, len(resp.Results))
		for _, e := range resp.Results {
			p.Cards = append(p.Cards, NewCard(e))
		}
		q := resp.Query
		if q == "" {
			q = snap.Query
		}
		p.Summary = Summary(len(resp.Results), q)
	}

	return p
}

// Summary считает по results, а не по count из ответа.
func Summary(n int, q string) string {
	noun := "results"
	if n == 1 {
		noun = "result"
	}
	return fmt.Sprintf("Found %d %s for \"%s\"", n, noun, q)
}

func ErrorMessage(err *domain.APIError) string {
	if err == nil || err.Message == "" {
		return ErrorFallback
	}
	return err.Message
}

func (p Page) IsIdle() bool {
	return p.State == StateIdle
}

func (p Page) IsLoading() bool {
	return p.State == StateLoading
}

func (p Page) IsError() bool {
	return p.State == StateError
}

func (p Page) IsEmpty() bool {
	return p.State == StateEmpty
}

func (p Page) HasResults() bool {
	return p.State == StateResults
}

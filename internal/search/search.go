package search

import (
	"context"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

// SearchClient - клиент API поиска. Любая ошибка - *domain.APIError.
type SearchClient interface {
	Search(ctx context.Context, query string) (*domain.SearchResponse, error)
}

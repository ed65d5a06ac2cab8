package repository

import (
	"context"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

// ABNRepository - чтение реестра для поиска.
type ABNRepository interface {
	Search(ctx context.Context, query string, limit int) ([]domain.ABNEntity, error)
	GetByABN(ctx context.Context, abn string) (*domain.ABNEntity, error)
}

// RecordStore - запись bulk-выгрузки ABR, одна транзакция на батч.
type RecordStore interface {
	UpsertBatch(ctx context.Context, records []domain.ABRRecord) error
}

package query

import (
	"context"
	"errors"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

// MaxRetries - сколько раз повторяем после первой неудачи.
const MaxRetries = 1

// ShouldRetry: 4xx и битые ответы не повторяем никогда, остальное - не больше MaxRetries раз.
func ShouldRetry(failureCount int, err error) bool {
	if err == nil || failureCount > MaxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return domain.AsAPIError(err).Retryable()
}

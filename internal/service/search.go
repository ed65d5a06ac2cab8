package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/abn-search/internal/cache"
	"github.com/kitbuilder587/abn-search/internal/domain"
	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/repository"
)

const (
	kindABN  = "abn"
	kindName = "name"
)

type SearchService interface {
	Search(ctx context.Context, raw string) (*domain.SearchResponse, error)
	Lookup(ctx context.Context, abn string) (*domain.ABNEntity, error)
}

type SearchConfig struct {
	MaxResults    int
	CacheTTL      time.Duration
	SearchTimeout time.Duration
}

type SearchServiceDeps struct {
	Repo    repository.ABNRepository
	Cache   cache.Cache
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Config  SearchConfig
}

type searchService struct {
	repo    repository.ABNRepository
	cache   cache.Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
	config  SearchConfig
}

func NewSearchService(deps SearchServiceDeps) SearchService {
	if deps.Config.MaxResults <= 0 {
		deps.Config.MaxResults = 20
	}
	if deps.Config.CacheTTL == 0 {
		deps.Config.CacheTTL = 5 * time.Minute
	}
	if deps.Config.SearchTimeout == 0 {
		deps.Config.SearchTimeout = 5 * time.Second
	}
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &searchService{
		repo:    deps.Repo,
		cache:   deps.Cache,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		config:  deps.Config,
	}
}

func (s *searchService) Search(ctx context.Context, raw string) (*domain.SearchResponse, error) {
	q, err := domain.NewSearchQuery(raw)
	if err != nil {
		s.recordSearch(kindName, "validation_error", 0)
		return nil, err
	}

	kind := kindName
	if q.IsABN() {
		kind = kindABN
		// похоже на ABN, но контрольная сумма не сходится - в реестре такого быть не может
		if !domain.ValidateABNChecksum(q.String()) {
			s.logger.Debug("abn checksum mismatch", zap.String("query", q.String()))
			s.recordSearch(kind, "success", 0)
			return domain.NewSearchResponse(q.String(), nil), nil
		}
	}

	key := cacheKey(q)
	if resp, ok := s.fromCache(ctx, key); ok {
		resp.Query = q.String()
		s.recordSearch(kind, "success", resp.Count)
		return resp, nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.config.SearchTimeout)
	defer cancel()

	start := time.Now()
	results, err := s.repo.Search(searchCtx, q.String(), s.config.MaxResults)
	if s.metrics != nil {
		s.metrics.RecordRepositoryQuery("search", time.Since(start))
	}
	if err != nil {
		s.logger.Error("repository search failed",
			zap.String("kind", kind),
			zap.Int("query_length", len(q.String())),
			zap.Error(err),
		)
		s.recordSearch(kind, "error", 0)
		return nil, fmt.Errorf("search repository: %w", err)
	}

	resp := domain.NewSearchResponse(q.String(), results)
	s.toCache(ctx, key, resp)

	s.logger.Debug("search completed",
		zap.String("kind", kind),
		zap.Int("results", resp.Count),
		zap.Duration("duration", time.Since(start)),
	)
	s.recordSearch(kind, "success", resp.Count)

	return resp, nil
}

func (s *searchService) Lookup(ctx context.Context, abn string) (*domain.ABNEntity, error) {
	n := domain.NormalizeABN(abn)
	if !domain.IsABN(n) {
		return nil, domain.ErrInvalidABN
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SearchTimeout)
	defer cancel()

	start := time.Now()
	entity, err := s.repo.GetByABN(ctx, n)
	if s.metrics != nil {
		s.metrics.RecordRepositoryQuery("get_by_abn", time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *searchService) fromCache(ctx context.Context, key string) (*domain.SearchResponse, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	if !ok {
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}
		return nil, false
	}

	var resp domain.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		s.logger.Warn("corrupted cache entry", zap.String("key", key), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}
		return nil, false
	}

	if s.metrics != nil {
		s.metrics.RecordCacheHit()
	}
	return &resp, true
}

func (s *searchService) toCache(ctx context.Context, key string, resp *domain.SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("marshal response for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, data, s.config.CacheTTL); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *searchService) recordSearch(kind, status string, results int) {
	if s.metrics != nil {
		s.metrics.RecordSearch(kind, status, results)
	}
}

func cacheKey(q domain.SearchQuery) string {
	normalized := normalizeQuery(q.String())
	if q.IsABN() {
		normalized = domain.NormalizeABN(normalized)
	}
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("search:%x", hash[:8])
}

func normalizeQuery(q string) string {
	q = strings.ToLower(q)
	q = strings.TrimSpace(q)
	return strings.Join(strings.Fields(q), " ")
}

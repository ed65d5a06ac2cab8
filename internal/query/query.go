package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kitbuilder587/abn-search/internal/domain"
	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/search"
)

const (
	defaultStaleTime = 5 * time.Minute
	// сверх StaleTime: столько неактивная запись еще живет в кеше
	defaultCacheGrace = 5 * time.Minute
)

type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Result - состояние запроса по одному ключу. Err всегда типизированный.
type Result struct {
	Query     string
	Status    Status
	Data      *domain.SearchResponse
	Err       *domain.APIError
	UpdatedAt time.Time
	// Fetching - идет запрос, при этом Data может быть от прошлого успешного
	Fetching bool
}

type Options struct {
	StaleTime time.Duration
	// CacheTime - через сколько после ответа запись удаляется; по умолчанию StaleTime + 5m
	CacheTime time.Duration
	// RetryDelay - пауза перед повтором; 0 значит сразу (так в тестах)
	RetryDelay time.Duration
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type entry struct {
	status    Status
	data      *domain.SearchResponse
	err       *domain.APIError
	updatedAt time.Time
	fetching  bool
	// seq последнего выданного запроса; коммитить может только он
	seq uint64
}

// Client - кеш результатов поиска по ключу запроса. Одинаковые запросы в полете
// склеиваются, устаревшие ответы выбрасываются.
type Client struct {
	search     search.SearchClient
	staleTime  time.Duration
	cacheTime  time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	seq       uint64
	lastSweep time.Time
	group     singleflight.Group
}

func New(client search.SearchClient, opts Options) *Client {
	if opts.StaleTime == 0 {
		opts.StaleTime = defaultStaleTime
	}
	if opts.CacheTime < opts.StaleTime {
		opts.CacheTime = opts.StaleTime + defaultCacheGrace
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		search:     client,
		staleTime:  opts.StaleTime,
		cacheTime:  opts.CacheTime,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		now:        time.Now,
		entries:    make(map[string]*entry),
	}
}

// Observe возвращает то, что сейчас лежит в кеше, без запросов.
func (c *Client) Observe(raw string) Result {
	key := domain.Key(raw)
	if key == "" {
		return Result{Status: StatusIdle}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	return c.snapshot(key)
}

// Fetch отдает свежий результат из кеша или ждет запрос. Пустой запрос - idle.
func (c *Client) Fetch(ctx context.Context, raw string) Result {
	key := domain.Key(raw)
	if key == "" {
		return Result{Status: StatusIdle}
	}

	c.mu.Lock()
	c.sweep()
	e := c.entries[key]
	if e != nil && e.status == StatusSuccess && !e.fetching {
		if c.now().Sub(e.updatedAt) < c.staleTime {
			res := c.snapshot(key)
			c.mu.Unlock()
			return res
		}
		if c.metrics != nil {
			c.metrics.RecordStaleResult()
		}
	}
	c.mu.Unlock()

	return c.run(ctx, key)
}

// Refetch игнорирует свежесть и запрос в полете: новый запрос получает новый seq,
// ответ старого будет выброшен.
func (c *Client) Refetch(ctx context.Context, raw string) Result {
	key := domain.Key(raw)
	if key == "" {
		return Result{Status: StatusIdle}
	}

	c.group.Forget(key)
	return c.run(ctx, key)
}

func (c *Client) Invalidate(raw string) {
	key := domain.Key(raw)
	if key == "" {
		return
	}

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}

func (c *Client) run(ctx context.Context, key string) Result {
	flight := func() (any, error) {
		seq := c.begin(key)
		// запрос переживает отмену ctx вызывающего, результат ляжет в кеш
		data, apiErr := c.fetchWithRetry(context.WithoutCancel(ctx), key)
		c.commit(key, seq, data, apiErr)
		return nil, nil
	}

	for {
		select {
		case <-c.group.DoChan(key, flight):
		case <-ctx.Done():
			return c.Observe(key)
		}

		// наш запрос перебил Refetch, его ответ выброшен: ждем более новый
		res := c.Observe(key)
		if !res.Fetching {
			return res
		}
	}
}

func (c *Client) begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	c.seq++
	e.seq = c.seq
	e.fetching = true
	if e.status != StatusSuccess {
		e.status = StatusPending
	}
	return e.seq
}

func (c *Client) commit(key string, seq uint64, data *domain.SearchResponse, apiErr *domain.APIError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || seq < e.seq {
		c.logger.Debug("dropping superseded response",
			zap.String("query", key),
			zap.Uint64("seq", seq),
		)
		return
	}

	e.fetching = false
	e.updatedAt = c.now()
	if apiErr != nil {
		e.status = StatusError
		e.err = apiErr
		return
	}
	e.status = StatusSuccess
	e.data = data
	e.err = nil
}

func (c *Client) fetchWithRetry(ctx context.Context, key string) (*domain.SearchResponse, *domain.APIError) {
	failures := 0
	for {
		data, err := c.search.Search(ctx, key)
		if err == nil {
			return data, nil
		}

		apiErr := domain.AsAPIError(err)
		failures++
		if !ShouldRetry(failures, err) {
			c.logger.Info("search failed",
				zap.String("query", key),
				zap.String("code", apiErr.Code),
				zap.Int("status", apiErr.StatusCode),
				zap.Int("attempts", failures),
			)
			return nil, apiErr
		}

		c.logger.Debug("retrying search",
			zap.String("query", key),
			zap.String("code", apiErr.Code),
			zap.Duration("delay", c.retryDelay),
		)
		if c.metrics != nil {
			c.metrics.RecordClientRetry()
		}

		if c.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, domain.NetworkError(ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}
	}
}

// sweep удаляет записи, к которым не было ответов дольше cacheTime.
// Проход не чаще раза в cacheTime. Вызывается под c.mu.
func (c *Client) sweep() {
	now := c.now()
	if now.Sub(c.lastSweep) < c.cacheTime {
		return
	}
	c.lastSweep = now

	for key, e := range c.entries {
		if !e.fetching && now.Sub(e.updatedAt) >= c.cacheTime {
			delete(c.entries, key)
		}
	}
}

// snapshot вызывается под c.mu
func (c *Client) snapshot(key string) Result {
	e, ok := c.entries[key]
	if !ok {
		return Result{Query: key, Status: StatusIdle}
	}
	return Result{
		Query:     key,
		Status:    e.status,
		Data:      e.data,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Fetching:  e.fetching,
	}
}

package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

// Step - сценарий одного вызова Search.
type Step struct {
	Data  *domain.SearchResponse
	Err   error
	Delay time.Duration
	// если задан, вызов ждет пока канал закроют (или отменят ctx)
	Gate <-chan struct{}
}

// Client - SearchClient для тестов. Шаги берутся по очереди, сначала из ByQuery
// для конкретного запроса, потом из Steps. Последний шаг повторяется.
type Client struct {
	Entities []domain.ABNEntity
	Steps    []Step
	ByQuery  map[string][]Step

	CallCount int
	Queries   []string

	mu       sync.Mutex
	stepIdx  int
	queryIdx map[string]int
}

func New() *Client {
	return &Client{
		ByQuery:  make(map[string][]Step),
		queryIdx: make(map[string]int),
	}
}

func (c *Client) WithEntities(entities ...domain.ABNEntity) *Client {
	c.Entities = entities
	return c
}

func (c *Client) WithSteps(steps ...Step) *Client {
	c.Steps = append(c.Steps, steps...)
	return c
}

func (c *Client) WithError(err error) *Client {
	return c.WithSteps(Step{Err: err})
}

func (c *Client) OnQuery(query string, steps ...Step) *Client {
	c.ByQuery[query] = append(c.ByQuery[query], steps...)
	return c
}

func (c *Client) Search(ctx context.Context, query string) (*domain.SearchResponse, error) {
	c.mu.Lock()
	c.CallCount++
	c.Queries = append(c.Queries, query)
	step, ok := c.nextStep(query)
	entities := c.Entities
	c.mu.Unlock()

	if ok && step.Gate != nil {
		select {
		case <-ctx.Done():
			return nil, domain.NetworkError(ctx.Err())
		case <-step.Gate:
		}
	}
	if ok && step.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, domain.NetworkError(ctx.Err())
		case <-time.After(step.Delay):
		}
	}

	if ok && step.Err != nil {
		return nil, step.Err
	}
	if ok && step.Data != nil {
		return step.Data, nil
	}

	return domain.NewSearchResponse(query, match(entities, query)), nil
}

func (c *Client) nextStep(query string) (Step, bool) {
	if steps := c.ByQuery[query]; len(steps) > 0 {
		i := c.queryIdx[query]
		if i < len(steps)-1 {
			c.queryIdx[query] = i + 1
		}
		return steps[i], true
	}
	if len(c.Steps) > 0 {
		i := c.stepIdx
		if i < len(c.Steps)-1 {
			c.stepIdx = i + 1
		}
		return c.Steps[i], true
	}
	return Step{}, false
}

func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.Queries = nil
	c.stepIdx = 0
	c.queryIdx = make(map[string]int)
}

func match(entities []domain.ABNEntity, query string) []domain.ABNEntity {
	needle := strings.ToLower(strings.TrimSpace(query))
	var out []domain.ABNEntity
	for _, e := range entities {
		if e.ABN == domain.NormalizeABN(needle) || strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	return out
}

package telegram

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/query"
	"github.com/kitbuilder587/abn-search/internal/ratelimit"
	"github.com/kitbuilder587/abn-search/internal/search/mock"
)

type panicSender struct{}

func (panicSender) Send(int64, string) error { panic("send exploded") }
func (panicSender) SendTyping(int64) {}

func newTestBot(t *testing.T, sender Sender) (*Bot, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 100})
	t.Cleanup(limiter.Stop)

	b := &Bot{
		logger:      zap.NewNop(),
		metrics:     m,
		rateLimiter: limiter,
	}
	b.handler = NewHandler(HandlerDeps{
		Sender:  sender,
		Client:  query.New(mock.New().WithEntities(testEntities()...), query.Options{}),
		Limiter: limiter,
		Logger:  zap.NewNop(),
		Metrics: m,
	})
	return b, m
}

func TestBot_HandleMessageRecordsKind(t *testing.T) {
	tests := []struct {
		text string
		kind string
	}{
		{"example", "search"},
		{"/help", "help"},
		{"/abn 51 824 753 556", "abn"},
		{"/nope", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b, m := newTestBot(t, &MockSender{})

			b.handleMessage(context.Background(), createTestMessage(1, tt.text))

			if got := testutil.ToFloat64(m.BotUpdatesTotal.WithLabelValues(tt.kind, "processed")); got != 1 {
				t.Errorf("updates{%s,processed} = %v, want 1", tt.kind, got)
			}
		})
	}
}

func TestBot_HandleMessageRecoversPanic(t *testing.T) {
	b, m := newTestBot(t, panicSender{})

	b.handleMessage(context.Background(), createTestMessage(1, "/help"))

	if got := testutil.ToFloat64(m.BotUpdatesTotal.WithLabelValues("help", "panic")); got != 1 {
		t.Errorf("updates{help,panic} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BotUpdatesTotal.WithLabelValues("help", "processed")); got != 0 {
		t.Errorf("updates{help,processed} = %v, want 0", got)
	}
}

func TestBot_DispatchWaitsForHandlers(t *testing.T) {
	sender := &MockSender{}
	b, _ := newTestBot(t, sender)

	for i := int64(1); i <= 3; i++ {
		b.dispatch(context.Background(), createTestMessage(i, "/start"))
	}
	b.wg.Wait()

	if n := len(sender.Texts()); n != 3 {
		t.Errorf("sent %d messages, want 3", n)
	}
}

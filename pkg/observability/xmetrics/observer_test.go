package xmetrics

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// nilObserver 返回 nil context 和 nil Span，用于验证兜底逻辑。
type nilObserver struct{}

func (nilObserver) Start(context.Context, SpanOptions) (context.Context, Span) { return nil, nil } //nolint:staticcheck // 测试兜底
func (nilObserver) Record(context.Context, Event)                              {}

type recordingObserver struct {
	NoopObserver
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) Record(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestStartFallbacks(t *testing.T) {
	//nolint:staticcheck // 测试 nil ctx
	ctx, span := Start(nil, nil, SpanOptions{})
	assert.NotNil(t, ctx)
	assert.IsType(t, NoopSpan{}, span)

	base := context.Background()
	ctx, span = Start(base, nilObserver{}, SpanOptions{})
	assert.Equal(t, base, ctx)
	assert.IsType(t, NoopSpan{}, span)

	ctx, span = Start(base, NoopObserver{}, SpanOptions{})
	assert.Equal(t, base, ctx)
	assert.NotPanics(t, func() { span.End(Result{}) })
}

func TestRecord(t *testing.T) {
	assert.NotPanics(t, func() {
		Record(context.Background(), nil, Event{Name: "x"})
		Record(context.Background(), NoopObserver{}, Event{Name: "x"})
	})

	r := &recordingObserver{}
	//nolint:staticcheck // 测试 nil ctx
	Record(nil, r, Event{Component: "c", Name: "hit", Attrs: []Attr{String("k", "v")}})
	require.Len(t, r.events, 1)
	assert.Equal(t, "hit", r.events[0].Name)
	assert.Equal(t, []Attr{{Key: "k", Value: "v"}}, r.events[0].Attrs)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Internal", KindInternal.String())
	assert.Equal(t, "Client", KindClient.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestResolveStatus(t *testing.T) {
	assert.Equal(t, StatusOK, resolveStatus(Result{}))
	assert.Equal(t, StatusError, resolveStatus(Result{Err: assert.AnError}))
	assert.Equal(t, StatusOK, resolveStatus(Result{Status: StatusOK, Err: assert.AnError}))
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "github.com/ak652231/TraceQ-sub001/pkg/platform/audit"
)

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []audit.Message
	delivered []audit.Message
	markErr   error
}

func (f *fakeOutbox) FetchPending(_ context.Context, limit int) ([]audit.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(limit, len(f.pending))
	out := make([]audit.Message, n)
	copy(out, f.pending[:n])
	return out, nil
}

func (f *fakeOutbox) MarkDelivered(_ context.Context, msgs []audit.Message, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.delivered = append(f.delivered, msgs...)
	f.pending = f.pending[len(msgs):]
	return nil
}

type fakeStream struct {
	mu       sync.Mutex
	produced []audit.Message
	err      error
}

func (f *fakeStream) Produce(_ context.Context, msgs []audit.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.produced = append(f.produced, msgs...)
	return nil
}

func (f *fakeStream) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.produced)
}

func messages(n int) []audit.Message {
	out := make([]audit.Message, n)
	for i := range out {
		out[i] = audit.Message{ID: fmt.Sprintf("r1:%d", i+1), Key: "r1", Type: "status_changed"}
	}
	return out
}

func TestFlush(t *testing.T) {
	ctx := context.Background()

	t.Run("produces then marks a batch", func(t *testing.T) {
		outbox := &fakeOutbox{pending: messages(3)}
		stream := &fakeStream{}
		m := NewMetrics(prometheus.NewRegistry())
		r := New(outbox, stream, WithBatchSize(2), WithMetrics(m))

		n, err := r.Flush(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, outbox.delivered, 2)
		assert.Len(t, outbox.pending, 1)
		assert.Equal(t, float64(2), testutil.ToFloat64(m.RelayedTotal))
	})

	t.Run("produce failure leaves the batch pending", func(t *testing.T) {
		outbox := &fakeOutbox{pending: messages(2)}
		m := NewMetrics(prometheus.NewRegistry())
		r := New(outbox, &fakeStream{err: errors.New("broker down")}, WithMetrics(m))

		_, err := r.Flush(ctx)
		require.Error(t, err)
		assert.Len(t, outbox.pending, 2)
		assert.Empty(t, outbox.delivered)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.FailedTotal.WithLabelValues("produce")))
	})

	t.Run("mark failure redelivers on the next poll", func(t *testing.T) {
		outbox := &fakeOutbox{pending: messages(1), markErr: errors.New("db gone")}
		stream := &fakeStream{}
		r := New(outbox, stream)

		_, err := r.Flush(ctx)
		require.Error(t, err)
		outbox.markErr = nil
		_, err = r.Flush(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stream.count())
		assert.Equal(t, stream.produced[0].ID, stream.produced[1].ID)
	})

	t.Run("empty outbox is a no-op", func(t *testing.T) {
		r := New(&fakeOutbox{}, &fakeStream{})
		n, err := r.Flush(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	outbox := &fakeOutbox{pending: messages(5)}
	stream := &fakeStream{}
	r := New(outbox, stream, WithBatchSize(2), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return stream.count() == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

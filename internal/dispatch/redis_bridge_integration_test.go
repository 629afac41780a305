//go:build integration

package dispatch_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/ak652231/TraceQ-sub001/internal/dispatch"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/circuit"
	"github.com/ak652231/TraceQ-sub001/pkg/testutil/containers"
)

type BridgeSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestBridgeSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(BridgeSuite))
}

func (s *BridgeSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *BridgeSuite) startBridge(ctx context.Context, hub *dispatch.Hub, channel string) *dispatch.Bridge {
	bridge := dispatch.NewBridge(s.redis.Client, hub, dispatch.WithChannel(channel))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bridge.Run(ctx)
	}()
	s.T().Cleanup(func() { <-done })
	// Run confirms the subscription before consuming; give it a moment.
	s.Require().Eventually(func() bool {
		n, err := s.redis.Client.PubSubNumSub(context.Background(), channel).Result()
		return err == nil && n[channel] > 0
	}, 5*time.Second, 20*time.Millisecond)
	return bridge
}

func (s *BridgeSuite) TestCrossInstanceDelivery() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	channel := "traceq:test:" + id.NewUserID().String()

	// instance A has no connections; instance B holds the user's socket
	hubA := dispatch.NewHub()
	hubB := dispatch.NewHub()
	user := id.NewUserID()
	conn := hubB.Register(user)

	bridgeA := s.startBridge(ctx, hubA, channel)
	s.startBridge(ctx, hubB, channel)

	s.Require().NoError(bridgeA.Publish(ctx, user, "notification", map[string]string{"new_status": "Solved"}))

	select {
	case frame := <-conn.Send:
		var env dispatch.Envelope
		s.Require().NoError(json.Unmarshal(frame, &env))
		s.Equal("notification", env.Event)
		s.JSONEq(`{"new_status":"Solved"}`, string(env.Data))
	case <-time.After(5 * time.Second):
		s.Fail("frame not delivered across instances")
	}
}

func (s *BridgeSuite) TestBroadcastReachesEveryInstance() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	channel := "traceq:test:" + id.NewUserID().String()

	hubA := dispatch.NewHub()
	hubB := dispatch.NewHub()
	onA := hubA.Register(id.NewUserID())
	onB := hubB.Register(id.NewUserID())

	bridgeA := s.startBridge(ctx, hubA, channel)
	s.startBridge(ctx, hubB, channel)

	s.Require().NoError(bridgeA.Publish(ctx, id.UserID{}, "announcement", map[string]string{"message": "all"}))

	for _, conn := range []*dispatch.Conn{onA, onB} {
		select {
		case frame := <-conn.Send:
			var env dispatch.Envelope
			s.Require().NoError(json.Unmarshal(frame, &env))
			s.Equal("announcement", env.Event)
		case <-time.After(5 * time.Second):
			s.Failf("broadcast not delivered", "connection %s", conn.ID)
		}
	}
}

func (s *BridgeSuite) TestFallsBackToLocalWhenRedisFails() {
	ctx := context.Background()
	// a client pointed at a closed port stands in for an unreachable Redis
	broken := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer broken.Close()

	m := dispatch.NewMetricsWithRegisterer(prometheus.NewRegistry())
	hub := dispatch.NewHub()
	user := id.NewUserID()
	conn := hub.Register(user)
	bridge := dispatch.NewBridge(broken, hub,
		dispatch.WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2))),
		dispatch.WithBridgeMetrics(m),
	)

	for i := 0; i < 3; i++ {
		s.Require().NoError(bridge.Publish(ctx, user, "notification", map[string]int{"n": i}))
	}
	s.Len(conn.Send, 3)
	s.Equal(float64(3), testutil.ToFloat64(m.BridgeTotal.WithLabelValues("local_fallback")))
	s.Equal(float64(1), testutil.ToFloat64(m.BridgeOpen))
}

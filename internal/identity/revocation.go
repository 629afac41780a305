package identity

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var revocationCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "traceq_token_revocation_check_duration_ms",
	Help:    "Latency of token revocation checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const revokedKeyPrefix = "traceq:revoked:"

// Revocations is a Redis-backed deny list of token ids shared by every
// instance. Entries expire with the token they revoke.
type Revocations struct {
	client *redis.Client
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{client: client}
}

// Revoke denies tokenID for ttl. A non-positive ttl means the token has
// already expired and nothing is stored.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether tokenID is on the deny list.
func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	start := time.Now()
	defer func() {
		revocationCheckDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if tokenID == "" {
		return false, nil
	}
	err := r.client.Get(ctx, revokedKeyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

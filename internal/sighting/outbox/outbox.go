// Package outbox exposes the report event log as a relay source.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	audit "github.com/ak652231/TraceQ-sub001/pkg/platform/audit"
)

// EventStore is the slice of the sighting store the relay needs.
type EventStore interface {
	FetchUnpublished(ctx context.Context, limit int) ([]models.ReportEvent, error)
	MarkPublished(ctx context.Context, keys []models.EventKey, at time.Time) error
}

// Source adapts EventStore to audit.Source.
type Source struct {
	store EventStore
}

func New(store EventStore) *Source {
	return &Source{store: store}
}

// FetchPending implements audit.Source. Messages are keyed by report id.
func (s *Source) FetchPending(ctx context.Context, limit int) ([]audit.Message, error) {
	events, err := s.store.FetchUnpublished(ctx, limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]audit.Message, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal report event: %w", err)
		}
		msgs = append(msgs, audit.Message{
			ID:         MessageID(e.Key()),
			Key:        e.SightingReportID.String(),
			Type:       string(e.Kind),
			Payload:    payload,
			OccurredAt: e.At,
		})
	}
	return msgs, nil
}

// MarkDelivered implements audit.Source.
func (s *Source) MarkDelivered(ctx context.Context, msgs []audit.Message, at time.Time) error {
	keys := make([]models.EventKey, 0, len(msgs))
	for _, m := range msgs {
		key, err := ParseMessageID(m.ID)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	return s.store.MarkPublished(ctx, keys, at)
}

// MessageID is "<report id>:<revision>", the consumer dedupe key.
func MessageID(key models.EventKey) string {
	return key.SightingReportID.String() + ":" + strconv.FormatInt(key.Revision, 10)
}

// ParseMessageID reverses MessageID.
func ParseMessageID(s string) (models.EventKey, error) {
	reportPart, revPart, ok := strings.Cut(s, ":")
	if !ok {
		return models.EventKey{}, fmt.Errorf("malformed outbox message id %q", s)
	}
	reportID, err := id.ParseSightingReportID(reportPart)
	if err != nil {
		return models.EventKey{}, fmt.Errorf("malformed outbox message id %q: %w", s, err)
	}
	rev, err := strconv.ParseInt(revPart, 10, 64)
	if err != nil || rev < 1 {
		return models.EventKey{}, fmt.Errorf("malformed outbox message id %q", s)
	}
	return models.EventKey{SightingReportID: reportID, Revision: rev}, nil
}

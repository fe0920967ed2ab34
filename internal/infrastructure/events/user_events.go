// Package events carries user index updates over RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/search"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

const (
	TypeUserUpserted = "user.upserted"
	TypeUserDeleted  = "user.deleted"
)

// ErrMalformed marks a message that can never be applied and must not be requeued.
var ErrMalformed = errors.New("malformed user event")

// UserEvent is the JSON payload put on the user events queue.
type UserEvent struct {
	Type       string               `json:"type"`
	UserID     string               `json:"user_id"`
	User       *search.UserDocument `json:"user,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// JSONPublisher is satisfied by helpers.RabbitPublisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Publisher turns index updates into queued events.
type Publisher struct {
	pub JSONPublisher
}

func NewPublisher(pub JSONPublisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) Index(ctx context.Context, u *entity.User) error {
	doc := search.NewUserDocument(u)
	return p.pub.PublishJSON(ctx, UserEvent{
		Type:       TypeUserUpserted,
		UserID:     u.ID,
		User:       &doc,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Publisher) Remove(ctx context.Context, userID string) error {
	return p.pub.PublishJSON(ctx, UserEvent{
		Type:       TypeUserDeleted,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	})
}

// Sink receives decoded events; search.UserIndex implements it.
type Sink interface {
	Put(ctx context.Context, doc search.UserDocument) error
	Remove(ctx context.Context, userID string) error
}

// Apply decodes body and forwards it to sink. Errors wrapping ErrMalformed
// are permanent; any other error is worth a retry.
func Apply(ctx context.Context, sink Sink, body []byte) error {
	ev, err := decode(body)
	if err != nil {
		return err
	}
	return dispatch(ctx, sink, ev)
}

func decode(body []byte) (UserEvent, error) {
	var ev UserEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.UserID == "" {
		return ev, fmt.Errorf("%w: missing user_id", ErrMalformed)
	}
	switch ev.Type {
	case TypeUserUpserted:
		if ev.User == nil {
			return ev, fmt.Errorf("%w: upsert without user", ErrMalformed)
		}
	case TypeUserDeleted:
	default:
		return ev, fmt.Errorf("%w: unknown type %q", ErrMalformed, ev.Type)
	}
	return ev, nil
}

func dispatch(ctx context.Context, sink Sink, ev UserEvent) error {
	if ev.Type == TypeUserDeleted {
		return sink.Remove(ctx, ev.UserID)
	}
	return sink.Put(ctx, *ev.User)
}

// SequenceWindow is how long the consumer remembers the last event applied
// per user. Requeued deliveries come back well inside it.
const SequenceWindow = 15 * time.Minute

// sequencer rejects an event that occurred before the last one applied
// for the same user, so a requeued upsert cannot resurrect a deleted user.
type sequencer struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func newSequencer(window time.Duration) *sequencer {
	return &sequencer{last: map[string]time.Time{}, window: window, now: time.Now}
}

func (s *sequencer) stale(ev UserEvent) bool {
	if ev.OccurredAt.IsZero() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.last[ev.UserID]
	return ok && ev.OccurredAt.Before(last)
}

func (s *sequencer) record(ev UserEvent) {
	if ev.OccurredAt.IsZero() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.last[ev.UserID]; !ok || ev.OccurredAt.After(last) {
		s.last[ev.UserID] = ev.OccurredAt
	}
	cutoff := s.now().Add(-s.window)
	for id, at := range s.last {
		if at.Before(cutoff) {
			delete(s.last, id)
		}
	}
}

// Handler applies deliveries to sink: malformed events are dropped, failed
// ones requeued, and events older than the last one applied for the same
// user acknowledged without effect.
func Handler(sink Sink, logger *logrus.Logger) helpers.DeliveryHandler {
	seq := newSequencer(SequenceWindow)
	return func(ctx context.Context, body []byte) helpers.Disposition {
		ev, err := decode(body)
		if err != nil {
			logger.WithError(err).Warn("dropping user event")
			return helpers.Drop
		}
		if seq.stale(ev) {
			logger.WithFields(logrus.Fields{"type": ev.Type, "user_id": ev.UserID}).Debug("skipping superseded user event")
			return helpers.Ack
		}
		if err := dispatch(ctx, sink, ev); err != nil {
			logger.WithError(err).WithField("user_id", ev.UserID).Warn("user event failed; requeueing")
			return helpers.Requeue
		}
		seq.record(ev)
		return helpers.Ack
	}
}

package trackingnumbers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/trackgen/internal/broker/messages"
	"github.com/BearBump/trackgen/internal/cache"
	"github.com/BearBump/trackgen/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL = 24 * time.Hour

	// Число попыток "get -> setnx" при проигранной гонке, когда запись успела исчезнуть.
	maxAttempts = 3
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Observer receives generator events; internal/metrics implements it.
type Observer interface {
	ObserveLookup(result string)
	ObserveGenerated(repaired bool)
	ObserveLostRace()
}

// Lookup results passed to Observer.ObserveLookup.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupCorrupt = "corrupt"
	LookupError   = "error"
)

// Service issues tracking numbers idempotently: one number per cache key per TTL window.
type Service struct {
	cache cache.Store
	ttl   time.Duration

	keyIncludesName bool
	collapse        bool
	group           singleflight.Group

	newID func() (uuid.UUID, error)
	now   func() time.Time

	producer Producer
	topic    string
	observer Observer
	log      *slog.Logger
}

func New(c cache.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		cache:    c,
		ttl:      ttl,
		newID:    uuid.NewRandom,
		now:      time.Now,
		observer: nopObserver{},
		log:      slog.Default(),
	}
}

// WithKeyIncludesCustomerName makes customer_name part of the idempotency key.
func (s *Service) WithKeyIncludesCustomerName(v bool) *Service {
	s.keyIncludesName = v
	return s
}

// WithCollapse shares one in-flight generation between concurrent callers of this process
// that hit the same key.
func (s *Service) WithCollapse(v bool) *Service {
	s.collapse = v
	return s
}

func (s *Service) WithProducer(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDSource(newID func() (uuid.UUID, error)) *Service {
	s.newID = newID
	return s
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) Key(req models.TrackingRequest) string {
	return CacheKey(req, s.keyIncludesName)
}

// Generate returns the tracking number stored for req's key, or generates and stores a new one.
// Store failures match ErrCacheUnavailable.
func (s *Service) Generate(ctx context.Context, req models.TrackingRequest) (*models.IssuedTracking, error) {
	key := s.Key(req)
	if !s.collapse {
		return s.generate(ctx, key, req)
	}

	// Общий вызов не должен отменяться из-за отмены контекста первого клиента.
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.generate(context.WithoutCancel(ctx), key, req)
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*models.IssuedTracking)
	return &out, nil
}

func (s *Service) generate(ctx context.Context, key string, req models.TrackingRequest) (*models.IssuedTracking, error) {
	lostRace := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		raw, found, err := s.cache.Get(ctx, key)
		if err != nil {
			s.observer.ObserveLookup(LookupError)
			s.log.Error("idempotency lookup failed", "key", key, "err", err)
			return nil, storeError(err, "lookup idempotency entry")
		}

		repair := false
		if found {
			entry, derr := decodeEntry(raw)
			if derr == nil {
				s.observer.ObserveLookup(LookupHit)
				return &models.IssuedTracking{
					TrackingNumber: entry.TrackingNumber,
					CreatedAt:      entry.CreatedAt,
					Replayed:       true,
				}, nil
			}
			s.observer.ObserveLookup(LookupCorrupt)
			if lostRace {
				// значение только что записал другой писатель, не затираем его
				s.log.Error("idempotency entry written by concurrent caller is corrupted", "key", key, "err", derr)
				return nil, derr
			}
			s.log.Warn("corrupted idempotency entry, regenerating", "key", key, "err", derr)
			repair = true
		} else {
			s.observer.ObserveLookup(LookupMiss)
		}

		entry, err := s.newEntry(req)
		if err != nil {
			return nil, err
		}
		value := encodeEntry(entry)

		if repair {
			if err := s.cache.SetWithTTL(ctx, key, value, s.ttl); err != nil {
				s.log.Error("idempotency overwrite failed", "key", key, "err", err)
				return nil, storeError(err, "overwrite idempotency entry")
			}
			return s.issued(ctx, req, entry, true), nil
		}

		stored, err := s.cache.SetIfAbsentWithTTL(ctx, key, value, s.ttl)
		if err != nil {
			s.log.Error("idempotency store failed", "key", key, "err", err)
			return nil, storeError(err, "store idempotency entry")
		}
		if stored {
			return s.issued(ctx, req, entry, false), nil
		}

		s.observer.ObserveLostRace()
		s.log.Debug("lost idempotency race, re-reading", "key", key, "attempt", attempt+1)
		lostRace = true
	}

	return nil, errors.Wrapf(ErrCacheUnavailable, "idempotency entry for %s did not settle after %d attempts", key, maxAttempts)
}

// newEntry reads the clock exactly once; the same instant is stored and returned.
func (s *Service) newEntry(req models.TrackingRequest) (models.CacheEntry, error) {
	id, err := s.newID()
	if err != nil {
		return models.CacheEntry{}, errors.Wrap(err, "generate random id")
	}
	return models.CacheEntry{
		TrackingNumber: trackingNumber(id, req.OriginCountry, req.DestinationCountry),
		CreatedAt:      s.now().UTC(),
	}, nil
}

func (s *Service) issued(ctx context.Context, req models.TrackingRequest, e models.CacheEntry, repaired bool) *models.IssuedTracking {
	s.observer.ObserveGenerated(repaired)
	s.log.Info("tracking number issued",
		"tracking_number", e.TrackingNumber,
		"origin", req.OriginCountry,
		"destination", req.DestinationCountry,
		"repaired", repaired,
	)
	s.publish(ctx, req, e, repaired)
	return &models.IssuedTracking{TrackingNumber: e.TrackingNumber, CreatedAt: e.CreatedAt}
}

// publish is best-effort: the number is already stored, a broker failure is only logged.
func (s *Service) publish(ctx context.Context, req models.TrackingRequest, e models.CacheEntry, repaired bool) {
	if s.producer == nil || s.topic == "" {
		return
	}
	b, err := json.Marshal(messages.TrackingNumberIssued{
		TrackingNumber:     e.TrackingNumber,
		CreatedAt:          e.CreatedAt,
		OriginCountry:      req.OriginCountry,
		DestinationCountry: req.DestinationCountry,
		CustomerID:         req.CustomerID.String(),
		CustomerSlug:       req.CustomerSlug,
		Repaired:           repaired,
	})
	if err != nil {
		s.log.Error("marshal issued message", "err", err)
		return
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(e.TrackingNumber), b); err != nil {
		s.log.Warn("publish issued message failed", "tracking_number", e.TrackingNumber, "err", err)
	}
}

type nopObserver struct{}

func (nopObserver) ObserveLookup(string)  {}
func (nopObserver) ObserveGenerated(bool) {}
func (nopObserver) ObserveLostRace()      {}

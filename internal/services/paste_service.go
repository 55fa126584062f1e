package services

import (
	"context"
	"errors"
	"time"

	"github.com/johnwmail/npaste/config"
	"github.com/johnwmail/npaste/internal/events"
	"github.com/johnwmail/npaste/internal/metrics"
	"github.com/johnwmail/npaste/models"
	"github.com/johnwmail/npaste/storage"
	"github.com/johnwmail/npaste/utils"
	"go.uber.org/zap"
)

// MaxIDAttempts caps identifier generation per create
const MaxIDAttempts = 10

const publishTimeout = 2 * time.Second

// PasteService handles paste business logic
type PasteService struct {
	store      storage.PasteStore
	config     *config.Config
	publisher  events.Publisher
	logger     *zap.Logger
	generateID func(length int) (string, error)
}

// NewPasteService creates a new paste service. publisher may be nil.
func NewPasteService(store storage.PasteStore, cfg *config.Config, publisher events.Publisher, logger *zap.Logger) *PasteService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &PasteService{
		store:      store,
		config:     cfg,
		publisher:  publisher,
		logger:     logger,
		generateID: utils.GenerateID,
	}
}

// SetIDGenerator replaces the identifier source
func (s *PasteService) SetIDGenerator(fn func(length int) (string, error)) {
	s.generateID = fn
}

// CreatePaste validates req, allocates an unused id and stores the paste
// with created_at = now.
func (s *PasteService) CreatePaste(ctx context.Context, req models.CreatePasteRequest, now time.Time) (*models.CreatePasteResponse, error) {
	if !utils.IsValidContent(req.Content) {
		return nil, &ValidationError{Field: "content", Message: "content is required and must be a non-empty string"}
	}
	if !utils.IsValidTTL(req.TTLSeconds) {
		return nil, &ValidationError{Field: "ttl_seconds", Message: "ttl_seconds must be an integer >= 1"}
	}
	if !utils.IsValidMaxViews(req.MaxViews) {
		return nil, &ValidationError{Field: "max_views", Message: "max_views must be an integer >= 1"}
	}
	content := req.Content.(string)
	ttlSeconds, _ := utils.ParsePositiveInt(req.TTLSeconds)
	maxViews, _ := utils.ParsePositiveInt(req.MaxViews)

	// The Exists probe only saves a wasted write; the store's unique key is
	// what guarantees uniqueness, so a rejected insert also costs an attempt.
	for attempt := 1; attempt <= MaxIDAttempts; attempt++ {
		id, err := s.generateID(s.config.IDLength)
		if err != nil {
			s.logger.Fatal("random source unavailable", zap.Error(err))
			return nil, err
		}

		start := time.Now()
		exists, err := s.store.Exists(ctx, id)
		metrics.ObserveStore("exists", start, err)
		if err != nil {
			s.logger.Error("failed to check paste id", zap.String("paste_id", id), zap.Error(err))
			return nil, storeError("exists", err)
		}
		if exists {
			metrics.IDCollisions.Inc()
			s.logger.Debug("paste id collision", zap.String("paste_id", id), zap.Int("attempt", attempt))
			continue
		}

		paste := models.NewPaste(id, content, ttlSeconds, maxViews, now)
		start = time.Now()
		err = s.store.Create(ctx, paste)
		metrics.ObserveStore("create", start, err)
		if errors.Is(err, storage.ErrDuplicateID) {
			metrics.IDCollisions.Inc()
			s.logger.Debug("paste id taken at insert", zap.String("paste_id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.logger.Error("failed to store paste", zap.String("paste_id", id), zap.Error(err))
			return nil, storeError("create", err)
		}

		metrics.PastesCreated.Inc()
		s.publish(ctx, events.Event{
			Type:      events.PasteCreated,
			PasteID:   id,
			MaxViews:  maxViews,
			ExpiresAt: paste.ExpiresAtISO(),
		})
		return &models.CreatePasteResponse{
			ID:  id,
			URL: s.config.ShareURL(id),
		}, nil
	}

	s.logger.Error("exhausted paste id attempts", zap.Int("attempts", MaxIDAttempts))
	return nil, ErrResourceExhausted
}

// GetPaste records one view of id at now and returns the updated record.
// Absent ids yield ErrNotFound, expired or used-up pastes ErrUnavailable.
func (s *PasteService) GetPaste(ctx context.Context, id string, now time.Time) (*models.Paste, error) {
	if !utils.IsValidID(id) {
		metrics.PasteRetrievals.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}

	start := time.Now()
	paste, err := s.store.RecordView(ctx, id, now)
	switch {
	case err == nil:
		metrics.ObserveStore("record_view", start, nil)
	case errors.Is(err, storage.ErrNotFound):
		metrics.ObserveStore("record_view", start, nil)
		metrics.PasteRetrievals.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	case errors.Is(err, storage.ErrUnavailable):
		metrics.ObserveStore("record_view", start, nil)
		metrics.PasteRetrievals.WithLabelValues("unavailable").Inc()
		return nil, ErrUnavailable
	default:
		metrics.ObserveStore("record_view", start, err)
		metrics.PasteRetrievals.WithLabelValues("error").Inc()
		s.logger.Error("failed to record paste view", zap.String("paste_id", id), zap.Error(err))
		return nil, storeError("record view", err)
	}

	metrics.PasteRetrievals.WithLabelValues("served").Inc()
	s.publish(ctx, events.Event{
		Type:       events.PasteViewed,
		PasteID:    id,
		ViewsCount: paste.ViewsCount,
		MaxViews:   paste.MaxViews,
	})
	return paste, nil
}

// ListPastes returns every stored paste, newest first
func (s *PasteService) ListPastes(ctx context.Context) ([]*models.Paste, error) {
	start := time.Now()
	pastes, err := s.store.List(ctx)
	metrics.ObserveStore("list", start, err)
	if err != nil {
		s.logger.Error("failed to list pastes", zap.Error(err))
		return nil, storeError("list", err)
	}
	return pastes, nil
}

// DeletePaste removes id whatever its availability
func (s *PasteService) DeletePaste(ctx context.Context, id string) error {
	if !utils.IsValidID(id) {
		return ErrNotFound
	}

	start := time.Now()
	err := s.store.Delete(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.ObserveStore("delete", start, nil)
		return ErrNotFound
	}
	metrics.ObserveStore("delete", start, err)
	if err != nil {
		s.logger.Error("failed to delete paste", zap.String("paste_id", id), zap.Error(err))
		return storeError("delete", err)
	}

	metrics.PastesDeleted.Inc()
	s.publish(ctx, events.Event{Type: events.PasteDeleted, PasteID: id})
	return nil
}

// Healthy pings the store
func (s *PasteService) Healthy(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return storeError("ping", err)
	}
	return nil
}

// publish delivers an event without failing the caller
func (s *PasteService) publish(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", event.Type), zap.String("paste_id", event.PasteID), zap.Error(err))
	}
}

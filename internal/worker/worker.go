// Package worker runs the async consumers: order-completion ingestion and
// background model training.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/silaiwala/darzi/internal/domain"
	"github.com/silaiwala/darzi/internal/predictor"
	"github.com/silaiwala/darzi/internal/training"
)

// Worker consumes orders.completed and training.requested events.
type Worker struct {
	repo      domain.Repository
	bus       domain.EventBus
	pipeline  *training.Pipeline
	predictor *predictor.Predictor
	now       func() time.Time

	subs []domain.Subscription
}

// New creates a worker over the shared repository, bus, and model plumbing.
func New(repo domain.Repository, bus domain.EventBus, pipeline *training.Pipeline, pred *predictor.Predictor) *Worker {
	return &Worker{
		repo:      repo,
		bus:       bus,
		pipeline:  pipeline,
		predictor: pred,
		now:       time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// Start subscribes to the worker topics. Handlers run until Stop.
func (w *Worker) Start(ctx context.Context) error {
	orderSub, err := w.bus.Subscribe(ctx, domain.TopicOrderCompleted, w.handleOrderCompleted)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", domain.TopicOrderCompleted, err)
	}
	w.subs = append(w.subs, orderSub)

	trainSub, err := w.bus.Subscribe(ctx, domain.TopicTrainingRequested, w.handleTrainingRequested)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", domain.TopicTrainingRequested, err)
	}
	w.subs = append(w.subs, trainSub)

	slog.Info("worker started",
		"topics", []string{domain.TopicOrderCompleted, domain.TopicTrainingRequested},
	)
	return nil
}

// Stop unsubscribes from all topics.
func (w *Worker) Stop() {
	for _, sub := range w.subs {
		_ = sub.Unsubscribe()
	}
	w.subs = nil
}

func (w *Worker) handleOrderCompleted(ctx context.Context, msg *domain.Message) error {
	var oc domain.OrderCompletion
	if err := json.Unmarshal(msg.Payload, &oc); err != nil {
		slog.Error("invalid order completion payload",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if err := w.RecordCompletion(ctx, &oc); err != nil {
		slog.Error("failed to record order completion",
			"message_id", msg.ID,
			"service_id", oc.ServiceID,
			"error", err,
		)
		return err
	}
	return nil
}

// RecordCompletion appends a pricing record for a finished order and updates
// the customer's profile stats. Also called directly by the HTTP ingestion
// endpoint.
func (w *Worker) RecordCompletion(ctx context.Context, oc *domain.OrderCompletion) error {
	if oc.ServiceID == 0 || oc.AreaID == 0 {
		return fmt.Errorf("%w: service_id and area_id are required", domain.ErrInvalidInput)
	}
	quantity := oc.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	svc, err := w.repo.GetService(ctx, oc.ServiceID)
	if err != nil {
		return fmt.Errorf("load service %d: %w", oc.ServiceID, err)
	}

	successRate := 1.0
	if oc.Cancelled {
		successRate = 0.0
	}

	now := w.now().UTC()

	segment := domain.TierRegular
	if oc.CustomerID != nil {
		if profile, err := w.updateCustomerProfile(ctx, *oc.CustomerID, oc.TotalPrice); err != nil {
			slog.Warn("failed to update customer profile",
				"customer_id", *oc.CustomerID,
				"error", err,
			)
		} else {
			segment = profile.LoyaltyTier
		}
	}

	rec := &domain.PricingRecord{
		ID:              uuid.New().String(),
		ServiceID:       oc.ServiceID,
		AreaID:          oc.AreaID,
		CustomerID:      oc.CustomerID,
		BasePrice:       oc.UnitPrice,
		FinalPrice:      oc.TotalPrice,
		OrderVolume:     quantity,
		Season:          domain.SeasonForMonth(int(now.Month())),
		CustomerSegment: segment,
		ComplexityScore: svc.ComplexityScore(),
		SuccessRate:     successRate,
		CreatedAt:       now,
	}

	if err := w.repo.SavePricingRecord(ctx, rec); err != nil {
		return fmt.Errorf("save pricing record: %w", err)
	}

	slog.Info("order completion recorded",
		"record_id", rec.ID,
		"service_id", rec.ServiceID,
		"area_id", rec.AreaID,
		"final_price", rec.FinalPrice,
		"success_rate", rec.SuccessRate,
	)
	return nil
}

// updateCustomerProfile bumps order stats and re-derives the loyalty tier.
// Creates the profile from order history when missing.
func (w *Worker) updateCustomerProfile(ctx context.Context, customerID int64, orderValue float64) (*domain.CustomerProfile, error) {
	profile, err := w.repo.GetCustomerProfile(ctx, customerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if profile == nil {
		count, err := w.repo.CountCustomerOrders(ctx, customerID)
		if err != nil {
			return nil, err
		}
		avg, err := w.repo.AvgCustomerOrderValue(ctx, customerID)
		if err != nil {
			return nil, err
		}
		profile = domain.NewCustomerProfile(customerID, int(count), avg)
	}

	// Running average over the new order count
	total := profile.AverageOrderValue * float64(profile.TotalOrders)
	profile.TotalOrders++
	profile.AverageOrderValue = (total + orderValue) / float64(profile.TotalOrders)
	profile.LoyaltyTier = domain.DeriveLoyaltyTier(profile.TotalOrders)
	profile.UpdatedAt = w.now().UTC()

	if err := w.repo.SaveCustomerProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (w *Worker) handleTrainingRequested(ctx context.Context, msg *domain.Message) error {
	slog.Info("background training requested", "message_id", msg.ID)

	result, err := w.pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			slog.Warn("background training skipped: not enough records")
			return nil
		}
		slog.Error("background training failed", "error", err)
		return err
	}

	w.predictor.Reload()

	slog.Info("background training complete",
		"model", result.BestModel,
		"samples", result.Samples,
	)
	return nil
}

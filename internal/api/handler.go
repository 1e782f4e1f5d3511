package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/silaiwala/darzi/internal/domain"
	"github.com/silaiwala/darzi/internal/pricing"
	"github.com/silaiwala/darzi/internal/predictor"
	"github.com/silaiwala/darzi/internal/rules"
	"github.com/silaiwala/darzi/internal/training"
	"github.com/silaiwala/darzi/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	engine     *rules.Engine
	calculator *pricing.Calculator
	optimizer  *pricing.Optimizer
	pipeline   *training.Pipeline
	predictor  *predictor.Predictor
	ingestor   *worker.Worker
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, calc *pricing.Calculator, opt *pricing.Optimizer, pipeline *training.Pipeline, pred *predictor.Predictor, ingestor *worker.Worker, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		engine:     engine,
		calculator: calc,
		optimizer:  opt,
		pipeline:   pipeline,
		predictor:  pred,
		ingestor:   ingestor,
		version:    version,
	}
}

// CalculateRequest is the request body for POST /pricing/calculate.
type CalculateRequest struct {
	ServiceID    int64                `json:"service_id"`
	AreaID       int64                `json:"area_id"`
	CustomerID   *int64               `json:"customer_id,omitempty"`
	OrderContext *domain.OrderContext `json:"order_context,omitempty"`
}

// Calculate handles POST /pricing/calculate requests.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ServiceID == 0 || req.AreaID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "service_id and area_id are required",
		})
		return
	}

	result, err := h.calculator.Calculate(ctx, req.ServiceID, req.AreaID, req.CustomerID, req.OrderContext)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ServicePricing handles GET /services/{id}/pricing: the dynamic price for
// every active area.
func (h *Handler) ServicePricing(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.calculator.PriceAllAreas(r.Context(), serviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Recommendations handles GET /services/{id}/recommendations.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.optimizer.OptimizeService(r.Context(), serviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Train handles POST /model/train. With ?async=true the run is handed to the
// background worker via the event bus.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Query().Get("async") == "true" {
		if err := h.bus.Publish(ctx, domain.TopicTrainingRequested, nil); err != nil {
			slog.Error("failed to publish training request", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to schedule training",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "scheduled",
		})
		return
	}

	result, err := h.pipeline.Run(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	// Live pricing picks up the new artifact on next predict
	h.predictor.Reload()

	writeJSON(w, http.StatusOK, result)
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Condition domain.RuleCondition `json:"condition"`
	Action    domain.RuleAction    `json:"action"`
	Priority  int                  `json:"priority"`
	IsActive  bool                 `json:"isActive"`
}

// CreateRule validates a rule, loads it into the engine, and persists it.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and name are required",
		})
		return
	}

	now := time.Now().UTC()
	rule := &domain.PricingRule{
		ID:        req.ID,
		Name:      req.Name,
		Condition: req.Condition,
		Action:    req.Action,
		Priority:  req.Priority,
		IsActive:  req.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Validate by attempting to load
	if err := h.engine.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		slog.Error("failed to save rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule": rule,
	})
}

// ReloadRules reloads all active rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbRules, err := h.repo.ListActiveRules(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// CustomerProfile handles GET /customers/{id}/profile. Profiles are created
// lazily from order history on first access.
func (h *Handler) CustomerProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.repo.GetCustomerProfile(ctx, customerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeError(w, err)
		return
	}

	if profile == nil {
		count, err := h.repo.CountCustomerOrders(ctx, customerID)
		if err != nil {
			writeError(w, err)
			return
		}
		avg, err := h.repo.AvgCustomerOrderValue(ctx, customerID)
		if err != nil {
			writeError(w, err)
			return
		}

		profile = domain.NewCustomerProfile(customerID, int(count), avg)
		if err := h.repo.SaveCustomerProfile(ctx, profile); err != nil {
			writeError(w, err)
			return
		}
		slog.Info("customer profile created",
			"customer_id", customerID,
			"tier", profile.LoyaltyTier,
		)
	}

	writeJSON(w, http.StatusOK, profile)
}

// OrderCompleted handles POST /orders/completed: appends a pricing record
// and updates the customer's profile.
func (h *Handler) OrderCompleted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var oc domain.OrderCompletion
	if err := json.NewDecoder(r.Body).Decode(&oc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.ingestor.RecordCompletion(ctx, &oc); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"status": "recorded",
	})
}

// History handles GET /history with service_id, area_id, and limit filters.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := domain.RecordFilter{Limit: 100}
	if v := r.URL.Query().Get("service_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid service_id",
			})
			return
		}
		filter.ServiceID = id
	}
	if v := r.URL.Query().Get("area_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid area_id",
			})
			return
		}
		filter.AreaID = id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid limit",
			})
			return
		}
		filter.Limit = limit
	}

	records, err := h.repo.ListPricingRecords(ctx, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": param + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

// writeError maps domain sentinel errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNoBasePricing), errors.Is(err, domain.ErrInsufficientData):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

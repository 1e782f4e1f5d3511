package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/silaiwala/darzi/internal/bus"
	"github.com/silaiwala/darzi/internal/cache"
	"github.com/silaiwala/darzi/internal/domain"
	"github.com/silaiwala/darzi/internal/features"
	"github.com/silaiwala/darzi/internal/predictor"
	"github.com/silaiwala/darzi/internal/pricing"
	"github.com/silaiwala/darzi/internal/repository"
	"github.com/silaiwala/darzi/internal/rules"
	"github.com/silaiwala/darzi/internal/training"
	"github.com/silaiwala/darzi/internal/worker"
)

// createTestServer wires a full server over a temp sqlite database with a
// seeded catalog.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: t.TempDir() + "/darzi-api-test.db",
	})
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	if err := repo.SaveService(ctx, &domain.Service{
		ID:            1,
		Name:          "kurta stitching",
		Category:      "traditional",
		Difficulty:    domain.DifficultyBasic,
		EstimatedDays: 3,
		IsActive:      true,
	}); err != nil {
		t.Fatalf("failed to seed service: %v", err)
	}
	if err := repo.SaveArea(ctx, &domain.PricingArea{ID: 1, Name: "city center", Multiplier: 1.0, IsActive: true}); err != nil {
		t.Fatalf("failed to seed area: %v", err)
	}
	if err := repo.SaveBasePrice(ctx, &domain.ServicePricing{ServiceID: 1, AreaID: 1, BasePrice: 1000}); err != nil {
		t.Fatalf("failed to seed base price: %v", err)
	}

	lru := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	engine := rules.NewEngine()
	store := predictor.NewStore(t.TempDir())
	pred := predictor.New(store, engine)
	builder := features.NewBuilder(repo)

	// Pin to an off-peak month for deterministic seasonal behavior
	march := func() time.Time {
		return time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	}
	calc := pricing.NewCalculator(repo, lru, eventBus, builder, pred).WithClock(march)
	opt := pricing.NewOptimizer(repo, builder, pred)
	pipeline := training.NewPipeline(repo, store)
	ingestor := worker.New(repo, eventBus, pipeline, pred).WithClock(march)

	return NewServer(cfg, repo, lru, eventBus, engine, calc, opt, pipeline, pred, ingestor, "test-v1")
}

func strPtr(s string) *string { return &s }

// neutralContext keeps every garment factor at 1.0 so the fallback formula
// returns the base price unchanged.
func neutralContext() *domain.OrderContext {
	return &domain.OrderContext{GarmentLength: strPtr("short")}
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestCalculateEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulCalculation", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/pricing/calculate", CalculateRequest{
			ServiceID:    1,
			AreaID:       1,
			OrderContext: neutralContext(),
		})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.PricingResult
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.BasePrice != 1000 {
			t.Errorf("expected base price 1000, got %f", resp.BasePrice)
		}
		// No model trained: neutral fallback returns the base price
		if resp.CalculatedPrice != 1000 {
			t.Errorf("expected calculated price 1000, got %f", resp.CalculatedPrice)
		}
		if resp.ConfidenceScore != 0.3 {
			t.Errorf("expected fallback confidence 0.3, got %f", resp.ConfidenceScore)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/pricing/calculate", CalculateRequest{ServiceID: 1})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/pricing/calculate", bytes.NewBufferString("{not json"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownService", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/pricing/calculate", CalculateRequest{ServiceID: 99, AreaID: 1})
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("NoBasePricing", func(t *testing.T) {
		// Seed an area with no base price for service 1
		repo := server.Handler().repo
		if err := repo.SaveArea(context.Background(), &domain.PricingArea{ID: 2, Name: "suburbs", Multiplier: 0.9, IsActive: true}); err != nil {
			t.Fatalf("failed to seed area: %v", err)
		}

		rr := doJSON(t, server, http.MethodPost, "/pricing/calculate", CalculateRequest{ServiceID: 1, AreaID: 2})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestServicePricingEndpoint(t *testing.T) {
	server := createTestServer(t)

	rr := doJSON(t, server, http.MethodGet, "/services/1/pricing", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp pricing.ServicePricing
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Prices) != 1 {
		t.Errorf("expected 1 priced area, got %d", len(resp.Prices))
	}

	rr = doJSON(t, server, http.MethodGet, "/services/99/pricing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown service, got %d", rr.Code)
	}

	rr = doJSON(t, server, http.MethodGet, "/services/abc/pricing", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for non-numeric id, got %d", rr.Code)
	}
}

func TestRecommendationsEndpointNoModel(t *testing.T) {
	server := createTestServer(t)

	rr := doJSON(t, server, http.MethodGet, "/services/1/recommendations", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp pricing.OptimizationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	// Without a trained model there is nothing to recommend
	if len(resp.OptimizedPrices) != 0 {
		t.Errorf("expected no optimized prices without a model, got %d", len(resp.OptimizedPrices))
	}
}

func TestTrainEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("InsufficientData", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/model/train", nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422 with no history, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("Async", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/model/train?async=true", nil)
		if rr.Code != http.StatusAccepted {
			t.Errorf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("TrainsWithHistory", func(t *testing.T) {
		repo := server.Handler().repo
		ctx := context.Background()
		for i := 0; i < 30; i++ {
			base := 500.0 + float64(i%10)*100
			err := repo.SavePricingRecord(ctx, &domain.PricingRecord{
				ID:              fmt.Sprintf("api-rec-%d", i),
				ServiceID:       1,
				AreaID:          1,
				BasePrice:       base,
				FinalPrice:      1.3 * base,
				OrderVolume:     i%8 + 1,
				Season:          domain.SeasonNormal,
				CustomerSegment: domain.TierRegular,
				ComplexityScore: 1.0,
				SuccessRate:     1.0,
				CreatedAt:       time.Date(2026, time.Month(i%12+1), 1, 0, 0, 0, 0, time.UTC),
			})
			if err != nil {
				t.Fatalf("failed to seed record: %v", err)
			}
		}

		rr := doJSON(t, server, http.MethodPost, "/model/train", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp training.Result
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.BestModel == "" {
			t.Error("expected best model in response")
		}
		if resp.Samples != 30 {
			t.Errorf("expected 30 samples, got %d", resp.Samples)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateRule", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", CreateRuleRequest{
			ID:   "peak-surge",
			Name: "peak season surge",
			Condition: domain.RuleCondition{
				Field:    "is_peak_season",
				Operator: domain.OpEquals,
				Value:    true,
			},
			Action: domain.RuleAction{
				Type:  domain.ActionMultiply,
				Value: 1.2,
			},
			Priority: 10,
			IsActive: true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateInvalidRule", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules", CreateRuleRequest{
			ID:   "broken",
			Name: "broken rule",
			Condition: domain.RuleCondition{
				Field:    "is_peak_season",
				Operator: "regex", // not in the operator vocabulary
				Value:    true,
			},
			Action: domain.RuleAction{Type: domain.ActionMultiply, Value: 1.1},
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("ListRules", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/rules", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("expected 1 loaded rule, got %d", resp.Count)
		}
	})

	t.Run("GetRule", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/rules/peak-surge", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		rr = doJSON(t, server, http.MethodGet, "/rules/missing", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("ReloadRules", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("expected 1 reloaded rule, got %d", resp.Count)
		}
	})
}

func TestOrderCompletedAndHistory(t *testing.T) {
	server := createTestServer(t)

	customerID := int64(5)
	rr := doJSON(t, server, http.MethodPost, "/orders/completed", domain.OrderCompletion{
		ServiceID:  1,
		AreaID:     1,
		CustomerID: &customerID,
		UnitPrice:  1200,
		TotalPrice: 2400,
		Quantity:   2,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	t.Run("History", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/history?service_id=1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Count   int                     `json:"count"`
			Records []*domain.PricingRecord `json:"records"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Fatalf("expected 1 record, got %d", resp.Count)
		}
		if resp.Records[0].FinalPrice != 2400 {
			t.Errorf("expected final price 2400, got %f", resp.Records[0].FinalPrice)
		}
	})

	t.Run("HistoryInvalidFilter", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/history?service_id=abc", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CustomerProfile", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/customers/5/profile", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var profile domain.CustomerProfile
		if err := json.Unmarshal(rr.Body.Bytes(), &profile); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if profile.CustomerID != 5 {
			t.Errorf("expected customer 5, got %d", profile.CustomerID)
		}
		if profile.TotalOrders != 1 {
			t.Errorf("expected 1 total order, got %d", profile.TotalOrders)
		}
	})

	t.Run("InvalidOrder", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/orders/completed", domain.OrderCompletion{AreaID: 1})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	rr := doJSON(t, server, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected status healthy, got %s", resp["status"])
	}
	if resp["version"] != "test-v1" {
		t.Errorf("expected version test-v1, got %s", resp["version"])
	}

	rr = doJSON(t, server, http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/silaiwala/darzi/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "darzi-test.db"),
	}
	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetService", func(t *testing.T) {
		svc := &domain.Service{
			ID:            1,
			Name:          "Bridal lehenga",
			Category:      "bridal",
			Difficulty:    domain.DifficultyExpert,
			EstimatedDays: 14,
			IsActive:      true,
			CreatedAt:     time.Now().UTC(),
		}
		if err := repo.SaveService(ctx, svc); err != nil {
			t.Fatalf("SaveService failed: %v", err)
		}

		got, err := repo.GetService(ctx, 1)
		if err != nil {
			t.Fatalf("GetService failed: %v", err)
		}
		if got.Name != svc.Name || got.Difficulty != svc.Difficulty || got.EstimatedDays != 14 {
			t.Errorf("GetService = %+v, want %+v", got, svc)
		}
		if !got.IsActive {
			t.Error("IsActive lost in round trip")
		}

		if _, err := repo.GetService(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetService missing: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("SaveAndGetArea", func(t *testing.T) {
		area := &domain.PricingArea{ID: 1, Name: "Gulshan", Multiplier: 1.1, IsActive: true}
		if err := repo.SaveArea(ctx, area); err != nil {
			t.Fatalf("SaveArea failed: %v", err)
		}
		if err := repo.SaveArea(ctx, &domain.PricingArea{ID: 2, Name: "Old City", Multiplier: 0.9, IsActive: false}); err != nil {
			t.Fatalf("SaveArea failed: %v", err)
		}

		got, err := repo.GetArea(ctx, 1)
		if err != nil {
			t.Fatalf("GetArea failed: %v", err)
		}
		if got.Multiplier != 1.1 {
			t.Errorf("Multiplier = %v, want 1.1", got.Multiplier)
		}

		active, err := repo.ListActiveAreas(ctx)
		if err != nil {
			t.Fatalf("ListActiveAreas failed: %v", err)
		}
		if len(active) != 1 || active[0].ID != 1 {
			t.Errorf("ListActiveAreas = %+v, want only area 1", active)
		}
	})

	t.Run("BasePriceUpsert", func(t *testing.T) {
		sp := &domain.ServicePricing{ServiceID: 1, AreaID: 1, BasePrice: 5000}
		if err := repo.SaveBasePrice(ctx, sp); err != nil {
			t.Fatalf("SaveBasePrice failed: %v", err)
		}

		price, err := repo.GetBasePrice(ctx, 1, 1)
		if err != nil {
			t.Fatalf("GetBasePrice failed: %v", err)
		}
		if price != 5000 {
			t.Errorf("base price = %v, want 5000", price)
		}

		sp.BasePrice = 5500
		if err := repo.SaveBasePrice(ctx, sp); err != nil {
			t.Fatalf("SaveBasePrice update failed: %v", err)
		}
		price, _ = repo.GetBasePrice(ctx, 1, 1)
		if price != 5500 {
			t.Errorf("base price after update = %v, want 5500", price)
		}

		if _, err := repo.GetBasePrice(ctx, 1, 99); !errors.Is(err, domain.ErrNoBasePricing) {
			t.Errorf("GetBasePrice missing: err = %v, want ErrNoBasePricing", err)
		}
	})

	t.Run("CustomerProfileUpsert", func(t *testing.T) {
		now := time.Now().UTC()
		profile := &domain.CustomerProfile{
			CustomerID:         42,
			LoyaltyTier:        domain.TierRegular,
			DiscountPercentage: 0,
			TotalOrders:        12,
			AverageOrderValue:  1800,
			PaymentReliability: 0.92,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := repo.SaveCustomerProfile(ctx, profile); err != nil {
			t.Fatalf("SaveCustomerProfile failed: %v", err)
		}

		got, err := repo.GetCustomerProfile(ctx, 42)
		if err != nil {
			t.Fatalf("GetCustomerProfile failed: %v", err)
		}
		if got.LoyaltyTier != domain.TierRegular || got.TotalOrders != 12 {
			t.Errorf("GetCustomerProfile = %+v", got)
		}

		profile.TotalOrders = 20
		profile.LoyaltyTier = domain.TierVIP
		if err := repo.SaveCustomerProfile(ctx, profile); err != nil {
			t.Fatalf("SaveCustomerProfile update failed: %v", err)
		}
		got, _ = repo.GetCustomerProfile(ctx, 42)
		if got.LoyaltyTier != domain.TierVIP {
			t.Errorf("LoyaltyTier after update = %q, want vip", got.LoyaltyTier)
		}

		if _, err := repo.GetCustomerProfile(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("missing profile: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("RulesRoundTripAndOrdering", func(t *testing.T) {
		now := time.Now().UTC()
		mk := func(id, name string, priority int, active bool) *domain.PricingRule {
			return &domain.PricingRule{
				ID:   id,
				Name: name,
				Condition: domain.RuleCondition{
					Field:    "fabric_type",
					Operator: domain.OpEquals,
					Value:    "silk",
				},
				Action:    domain.RuleAction{Type: domain.ActionMultiply, Value: 1.2},
				Priority:  priority,
				IsActive:  active,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}
		for _, r := range []*domain.PricingRule{
			mk("rule-b", "b rule", 5, true),
			mk("rule-a", "a rule", 5, true),
			mk("rule-c", "c rule", 10, true),
			mk("rule-d", "d rule", 99, false),
		} {
			if err := repo.SaveRule(ctx, r); err != nil {
				t.Fatalf("SaveRule failed: %v", err)
			}
		}

		got, err := repo.GetRule(ctx, "rule-a")
		if err != nil {
			t.Fatalf("GetRule failed: %v", err)
		}
		if got.Condition.Field != "fabric_type" || got.Action.Type != domain.ActionMultiply {
			t.Errorf("rule round trip lost condition/action: %+v", got)
		}

		active, err := repo.ListActiveRules(ctx)
		if err != nil {
			t.Fatalf("ListActiveRules failed: %v", err)
		}
		if len(active) != 3 {
			t.Fatalf("ListActiveRules = %d rules, want 3", len(active))
		}
		order := []string{active[0].ID, active[1].ID, active[2].ID}
		want := []string{"rule-c", "rule-a", "rule-b"}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("rule order = %v, want %v", order, want)
			}
		}
	})

	t.Run("PricingRecordsAndAggregates", func(t *testing.T) {
		customer := int64(42)
		now := time.Now().UTC()
		records := []*domain.PricingRecord{
			{ID: "rec-1", ServiceID: 1, AreaID: 1, CustomerID: &customer, BasePrice: 1000, FinalPrice: 1200, OrderVolume: 1, Season: domain.SeasonNormal, CustomerSegment: "regular", ComplexityScore: 2, SuccessRate: 1, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "rec-2", ServiceID: 1, AreaID: 1, CustomerID: &customer, BasePrice: 1000, FinalPrice: 1400, OrderVolume: 2, Season: domain.SeasonWedding, CustomerSegment: "regular", ComplexityScore: 2, SuccessRate: 1, CreatedAt: now.Add(-time.Hour)},
			{ID: "rec-3", ServiceID: 2, AreaID: 1, BasePrice: 800, FinalPrice: 900, OrderVolume: 1, Season: domain.SeasonNormal, CustomerSegment: "new", ComplexityScore: 1, SuccessRate: 0, CreatedAt: now},
		}
		for _, rec := range records {
			if err := repo.SavePricingRecord(ctx, rec); err != nil {
				t.Fatalf("SavePricingRecord failed: %v", err)
			}
		}

		all, err := repo.ListPricingRecords(ctx, domain.RecordFilter{})
		if err != nil {
			t.Fatalf("ListPricingRecords failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("records = %d, want 3", len(all))
		}
		if all[0].ID != "rec-3" {
			t.Errorf("newest first: got %s", all[0].ID)
		}
		if all[0].CustomerID != nil {
			t.Error("rec-3 customer should be nil")
		}

		filtered, err := repo.ListPricingRecords(ctx, domain.RecordFilter{ServiceID: 1, AreaID: 1, Limit: 1})
		if err != nil {
			t.Fatalf("filtered list failed: %v", err)
		}
		if len(filtered) != 1 || filtered[0].ID != "rec-2" {
			t.Errorf("filtered = %+v, want [rec-2]", filtered)
		}

		n, err := repo.CountPricingRecords(ctx, 1, 1)
		if err != nil || n != 2 {
			t.Errorf("CountPricingRecords = %d (%v), want 2", n, err)
		}

		orders, err := repo.CountCustomerOrders(ctx, customer)
		if err != nil || orders != 2 {
			t.Errorf("CountCustomerOrders = %d (%v), want 2", orders, err)
		}

		avg, err := repo.AvgCustomerOrderValue(ctx, customer)
		if err != nil || avg != 1300 {
			t.Errorf("AvgCustomerOrderValue = %v (%v), want 1300", avg, err)
		}

		avg, err = repo.AvgCustomerOrderValue(ctx, 404)
		if err != nil || avg != 0 {
			t.Errorf("AvgCustomerOrderValue no history = %v (%v), want 0", avg, err)
		}
	})

	t.Run("DynamicPricingUpsert", func(t *testing.T) {
		expires := time.Now().UTC().Add(24 * time.Hour)
		dp := &domain.DynamicPricing{
			ServiceID:       1,
			AreaID:          1,
			PricingVersion:  domain.PricingVersion,
			BasePrice:       5000,
			CalculatedPrice: 6200,
			ConfidenceScore: 0.7,
			FactorsApplied:  map[string]string{"fabric": "silk fabric"},
			IsActive:        true,
			CreatedAt:       time.Now().UTC(),
			ExpiresAt:       &expires,
		}
		if err := repo.UpsertDynamicPricing(ctx, dp); err != nil {
			t.Fatalf("UpsertDynamicPricing failed: %v", err)
		}

		got, err := repo.GetDynamicPricing(ctx, 1, 1, domain.PricingVersion)
		if err != nil {
			t.Fatalf("GetDynamicPricing failed: %v", err)
		}
		if got.CalculatedPrice != 6200 {
			t.Errorf("CalculatedPrice = %v, want 6200", got.CalculatedPrice)
		}
		if got.FactorsApplied["fabric"] != "silk fabric" {
			t.Errorf("FactorsApplied = %v", got.FactorsApplied)
		}
		if got.ExpiresAt == nil {
			t.Error("ExpiresAt lost in round trip")
		}

		// Second upsert for the same key overwrites the row.
		dp.CalculatedPrice = 5800
		dp.ConfidenceScore = 0.3
		if err := repo.UpsertDynamicPricing(ctx, dp); err != nil {
			t.Fatalf("UpsertDynamicPricing overwrite failed: %v", err)
		}
		got, err = repo.GetDynamicPricing(ctx, 1, 1, domain.PricingVersion)
		if err != nil {
			t.Fatalf("GetDynamicPricing after overwrite failed: %v", err)
		}
		if got.CalculatedPrice != 5800 || got.ConfidenceScore != 0.3 {
			t.Errorf("row not overwritten: %+v", got)
		}

		if _, err := repo.GetDynamicPricing(ctx, 1, 1, "v9.9"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("unknown version: err = %v, want ErrNotFound", err)
		}
	})
}

func TestRebind(t *testing.T) {
	r := &SQLRepository{driver: "postgres"}
	got := r.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	r.driver = "sqlite"
	passthrough := "SELECT * FROM t WHERE a = ?"
	if got := r.rebind(passthrough); got != passthrough {
		t.Errorf("sqlite rebind altered query: %q", got)
	}
}

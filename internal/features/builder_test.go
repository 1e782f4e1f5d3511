package features

import (
	"context"
	"testing"
	"time"

	"github.com/silaiwala/darzi/internal/domain"
)

// stubRepo implements domain.Repository with in-memory state for the
// customer-profile paths the builder touches.
type stubRepo struct {
	profiles    map[int64]*domain.CustomerProfile
	orderCounts map[int64]int64
	orderAvgs   map[int64]float64
	saved       []*domain.CustomerProfile
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		profiles:    make(map[int64]*domain.CustomerProfile),
		orderCounts: make(map[int64]int64),
		orderAvgs:   make(map[int64]float64),
	}
}

func (s *stubRepo) SaveService(context.Context, *domain.Service) error { return nil }
func (s *stubRepo) GetService(context.Context, int64) (*domain.Service, error) {
	return nil, domain.ErrNotFound
}
func (s *stubRepo) SaveArea(context.Context, *domain.PricingArea) error { return nil }
func (s *stubRepo) GetArea(context.Context, int64) (*domain.PricingArea, error) {
	return nil, domain.ErrNotFound
}
func (s *stubRepo) ListActiveAreas(context.Context) ([]*domain.PricingArea, error) {
	return nil, nil
}
func (s *stubRepo) SaveBasePrice(context.Context, *domain.ServicePricing) error { return nil }
func (s *stubRepo) GetBasePrice(context.Context, int64, int64) (float64, error) {
	return 0, domain.ErrNoBasePricing
}

func (s *stubRepo) SaveCustomerProfile(_ context.Context, p *domain.CustomerProfile) error {
	s.profiles[p.CustomerID] = p
	s.saved = append(s.saved, p)
	return nil
}

func (s *stubRepo) GetCustomerProfile(_ context.Context, customerID int64) (*domain.CustomerProfile, error) {
	p, ok := s.profiles[customerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *stubRepo) SaveRule(context.Context, *domain.PricingRule) error { return nil }
func (s *stubRepo) GetRule(context.Context, string) (*domain.PricingRule, error) {
	return nil, domain.ErrNotFound
}
func (s *stubRepo) ListActiveRules(context.Context) ([]*domain.PricingRule, error) {
	return nil, nil
}
func (s *stubRepo) SavePricingRecord(context.Context, *domain.PricingRecord) error { return nil }
func (s *stubRepo) ListPricingRecords(context.Context, domain.RecordFilter) ([]*domain.PricingRecord, error) {
	return nil, nil
}
func (s *stubRepo) CountPricingRecords(context.Context, int64, int64) (int64, error) {
	return 0, nil
}

func (s *stubRepo) CountCustomerOrders(_ context.Context, customerID int64) (int64, error) {
	return s.orderCounts[customerID], nil
}

func (s *stubRepo) AvgCustomerOrderValue(_ context.Context, customerID int64) (float64, error) {
	return s.orderAvgs[customerID], nil
}

func (s *stubRepo) UpsertDynamicPricing(context.Context, *domain.DynamicPricing) error { return nil }
func (s *stubRepo) GetDynamicPricing(context.Context, int64, int64, string) (*domain.DynamicPricing, error) {
	return nil, domain.ErrNotFound
}
func (s *stubRepo) Ping(context.Context) error { return nil }
func (s *stubRepo) Close() error               { return nil }

func testService() *domain.Service {
	return &domain.Service{
		ID:            1,
		Name:          "Three-piece suit",
		Category:      "suits",
		Difficulty:    domain.DifficultyExpert,
		EstimatedDays: 10,
		IsActive:      true,
	}
}

func testArea() *domain.PricingArea {
	return &domain.PricingArea{ID: 2, Name: "Clifton", Multiplier: 1.2, IsActive: true}
}

func fixedClock(month time.Month) func() time.Time {
	return func() time.Time {
		return time.Date(2026, month, 15, 12, 0, 0, 0, time.UTC)
	}
}

func TestBuildDefaults(t *testing.T) {
	b := NewBuilder(newStubRepo()).WithClock(fixedClock(time.March))

	fc, err := b.Build(context.Background(), testService(), testArea(), nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if fc.FabricType != "cotton" {
		t.Errorf("FabricType = %q, want cotton", fc.FabricType)
	}
	if fc.GarmentLength != "medium" {
		t.Errorf("GarmentLength = %q, want medium", fc.GarmentLength)
	}
	if fc.OrderVolume != 1 {
		t.Errorf("OrderVolume = %d, want 1", fc.OrderVolume)
	}
	if fc.UrgencyLevel != domain.UrgencyNormal {
		t.Errorf("UrgencyLevel = %q, want normal", fc.UrgencyLevel)
	}
	if fc.IsPeakSeason {
		t.Error("IsPeakSeason = true for March")
	}
	if fc.CurrentMonth != 3 {
		t.Errorf("CurrentMonth = %d, want 3", fc.CurrentMonth)
	}
	if fc.SuccessRate != DefaultSuccessRate {
		t.Errorf("SuccessRate = %v, want %v", fc.SuccessRate, DefaultSuccessRate)
	}
	if fc.HasCustomer {
		t.Error("HasCustomer = true without customer id")
	}
}

func TestBuildComplexityScore(t *testing.T) {
	b := NewBuilder(newStubRepo()).WithClock(fixedClock(time.March))

	// Expert (4.0) with estimated days > 7 adds 0.5.
	fc, err := b.Build(context.Background(), testService(), testArea(), nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if fc.ComplexityScore != 4.5 {
		t.Errorf("ComplexityScore = %v, want 4.5", fc.ComplexityScore)
	}
}

func TestBuildPeakSeason(t *testing.T) {
	b := NewBuilder(newStubRepo()).WithClock(fixedClock(time.November))

	fc, err := b.Build(context.Background(), testService(), testArea(), nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !fc.IsPeakSeason {
		t.Error("IsPeakSeason = false for November")
	}
}

func TestBuildOrderContextOverrides(t *testing.T) {
	b := NewBuilder(newStubRepo()).WithClock(fixedClock(time.March))

	qty := 12
	cost := 450.0
	urgency := domain.UrgencyRush
	fabric := "silk"
	special := true
	oc := &domain.OrderContext{
		Quantity:            &qty,
		FabricCost:          &cost,
		Urgency:             &urgency,
		FabricType:          &fabric,
		SpecialRequirements: &special,
	}

	fc, err := b.Build(context.Background(), testService(), testArea(), nil, oc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if fc.OrderVolume != 12 {
		t.Errorf("OrderVolume = %d, want 12", fc.OrderVolume)
	}
	if fc.FabricCost != 450 {
		t.Errorf("FabricCost = %v, want 450", fc.FabricCost)
	}
	if fc.UrgencyLevel != domain.UrgencyRush {
		t.Errorf("UrgencyLevel = %q, want rush", fc.UrgencyLevel)
	}
	if fc.FabricType != "silk" {
		t.Errorf("FabricType = %q, want silk", fc.FabricType)
	}
	if !fc.SpecialRequirements {
		t.Error("SpecialRequirements = false")
	}
	// Untouched fields keep their defaults.
	if fc.GarmentLength != "medium" {
		t.Errorf("GarmentLength = %q, want medium", fc.GarmentLength)
	}
}

func TestBuildIgnoresInvalidOverrides(t *testing.T) {
	b := NewBuilder(newStubRepo()).WithClock(fixedClock(time.March))

	qty := 0
	cost := -10.0
	oc := &domain.OrderContext{Quantity: &qty, FabricCost: &cost}

	fc, err := b.Build(context.Background(), testService(), testArea(), nil, oc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if fc.OrderVolume != 1 {
		t.Errorf("OrderVolume = %d, want 1 (zero quantity ignored)", fc.OrderVolume)
	}
	if fc.FabricCost != 0 {
		t.Errorf("FabricCost = %v, want 0 (negative cost ignored)", fc.FabricCost)
	}
}

func TestBuildExistingCustomer(t *testing.T) {
	repo := newStubRepo()
	repo.profiles[42] = &domain.CustomerProfile{
		CustomerID:         42,
		LoyaltyTier:        domain.TierVIP,
		DiscountPercentage: 15,
		TotalOrders:        25,
		AverageOrderValue:  2200,
		PaymentReliability: 0.95,
	}
	b := NewBuilder(repo).WithClock(fixedClock(time.March))

	id := int64(42)
	fc, err := b.Build(context.Background(), testService(), testArea(), &id, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !fc.HasCustomer {
		t.Fatal("HasCustomer = false")
	}
	if fc.CustomerLoyaltyTier != domain.TierVIP {
		t.Errorf("CustomerLoyaltyTier = %q, want vip", fc.CustomerLoyaltyTier)
	}
	if fc.CustomerTotalOrders != 25 {
		t.Errorf("CustomerTotalOrders = %d, want 25", fc.CustomerTotalOrders)
	}
	if fc.CustomerPaymentReliability != 0.95 {
		t.Errorf("CustomerPaymentReliability = %v, want 0.95", fc.CustomerPaymentReliability)
	}
	if len(repo.saved) != 0 {
		t.Errorf("saved %d profiles, want 0 for existing customer", len(repo.saved))
	}
}

func TestBuildCreatesProfileFromHistory(t *testing.T) {
	repo := newStubRepo()
	repo.orderCounts[7] = 22
	repo.orderAvgs[7] = 1800
	b := NewBuilder(repo).WithClock(fixedClock(time.March))

	id := int64(7)
	fc, err := b.Build(context.Background(), testService(), testArea(), &id, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !fc.HasCustomer {
		t.Fatal("HasCustomer = false")
	}
	if fc.CustomerLoyaltyTier != domain.TierVIP {
		t.Errorf("CustomerLoyaltyTier = %q, want vip (22 orders)", fc.CustomerLoyaltyTier)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("saved %d profiles, want 1", len(repo.saved))
	}
	if repo.saved[0].DiscountPercentage != 5.0 {
		t.Errorf("DiscountPercentage = %v, want 5.0 for new vip", repo.saved[0].DiscountPercentage)
	}
	if repo.saved[0].PaymentReliability != 1.0 {
		t.Errorf("PaymentReliability = %v, want 1.0", repo.saved[0].PaymentReliability)
	}
}

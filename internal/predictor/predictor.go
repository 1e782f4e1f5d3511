package predictor

import (
	"fmt"
	"sync"

	"github.com/silaiwala/darzi/internal/domain"
	"github.com/silaiwala/darzi/internal/rules"
)

// encoderDifficulty is the categorical column encoded at training time.
const encoderDifficulty = "service_difficulty"

// FeatureNames lists the model's input columns in vector order. Training and
// prediction must build vectors in this exact order.
var FeatureNames = []string{
	"service_id",
	"service_difficulty",
	"area_id",
	"base_price",
	"order_volume",
	"fabric_cost",
	"complexity_score",
	"success_rate",
	"created_month",
	"price_ratio",
	"is_peak_season",
	"is_high_difficulty",
}

// Prediction is the ML pricing output before the orchestrator's own
// adjustments.
type Prediction struct {
	PredictedPrice float64 // raw model output
	FinalPrice     float64 // after rules, clamped around the raw output
	Confidence     float64
	ModelName      string
}

// Predictor serves price predictions from the persisted model artifact. The
// artifact loads lazily on first use and stays in memory until Reload; a
// retrain therefore becomes visible only when explicitly picked up.
type Predictor struct {
	store  *Store
	engine *rules.Engine

	mu       sync.Mutex
	artifact *Artifact
}

// New creates a predictor backed by an artifact store and a rule engine.
func New(store *Store, engine *rules.Engine) *Predictor {
	return &Predictor{store: store, engine: engine}
}

// Reload drops the cached artifact so the next prediction reads the latest
// persisted model.
func (p *Predictor) Reload() {
	p.mu.Lock()
	p.artifact = nil
	p.mu.Unlock()
}

func (p *Predictor) loadArtifact() (*Artifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.artifact != nil {
		return p.artifact, nil
	}
	a, err := p.store.Load(domain.PricingVersion)
	if err != nil {
		return nil, err
	}
	p.artifact = a
	return a, nil
}

// Predict produces a price for the feature context. Returns ErrNoModel when
// no trained artifact exists; the caller falls back to rule-based pricing.
// The returned final price has active pricing rules applied and is bounded
// to [0.7, 1.5]× the raw model output.
func (p *Predictor) Predict(fc *domain.FeatureContext, basePrice float64) (*Prediction, error) {
	a, err := p.loadArtifact()
	if err != nil {
		return nil, err
	}

	vec := p.featureVector(a, fc, basePrice)
	scaled, err := a.Scaler.Transform(vec)
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}
	raw, err := a.Model.Predict(scaled)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	final := p.engine.Apply(fc, raw)

	// Sanity bound around the model estimate itself, independent of the
	// rule engine's clamp.
	if final < raw*0.7 {
		final = raw * 0.7
	}
	if final > raw*1.5 {
		final = raw * 1.5
	}

	return &Prediction{
		PredictedPrice: raw,
		FinalPrice:     final,
		Confidence:     ConfidenceScore(fc),
		ModelName:      a.Model.Name,
	}, nil
}

// featureVector builds the model input in FeatureNames order from the
// context. Difficulty goes through the artifact's label encoder; a value the
// encoder never saw lands in its fallback bucket.
func (p *Predictor) featureVector(a *Artifact, fc *domain.FeatureContext, basePrice float64) []float64 {
	difficulty := 0.0
	if enc, ok := a.Encoders[encoderDifficulty]; ok {
		difficulty = float64(enc.Encode(fc.ServiceDifficulty))
	}

	peak := 0.0
	if fc.IsPeakSeason {
		peak = 1.0
	}
	highDifficulty := 0.0
	if fc.ServiceDifficulty == domain.DifficultyAdvanced || fc.ServiceDifficulty == domain.DifficultyExpert {
		highDifficulty = 1.0
	}

	return []float64{
		float64(fc.ServiceID),
		difficulty,
		float64(fc.AreaID),
		basePrice,
		float64(fc.OrderVolume),
		fc.FabricCost,
		fc.ComplexityScore,
		fc.SuccessRate,
		float64(fc.CurrentMonth),
		1.0, // price ratio placeholder for fresh predictions
		peak,
		highDifficulty,
	}
}

// ConfidenceScore is a heuristic proxy for prediction reliability, not a
// statistical interval. Base 0.5, +0.1 for each informative signal present,
// −0.1 during peak season when demand is harder to price, clamped to
// [0.1, 1.0].
func ConfidenceScore(fc *domain.FeatureContext) float64 {
	confidence := 0.5
	if fc.ComplexityScore > 0 {
		confidence += 0.1
	}
	if fc.FabricCost > 0 {
		confidence += 0.1
	}
	if fc.SuccessRate > 0 {
		confidence += 0.1
	}
	if fc.IsPeakSeason {
		confidence -= 0.1
	}
	if confidence < 0.1 {
		confidence = 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

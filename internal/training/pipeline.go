// Package training builds the price model from historical pricing records.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/silaiwala/darzi/internal/domain"
	"github.com/silaiwala/darzi/internal/predictor"
)

// minTrainingRecords is the floor below which training refuses to run and
// the prior artifact stays untouched.
const minTrainingRecords = 10

// splitSeed makes the train/test shuffle reproducible: retraining on the
// same records yields the same model.
const splitSeed = 42

// Candidate regression settings, fit in order.
var candidates = []struct {
	name  string
	alpha float64
}{
	{"linear", 0},
	{"ridge", 1.0},
	{"ridge_strong", 10.0},
}

// Result reports a completed training run.
type Result struct {
	BestModel string                       `json:"best_model"`
	Samples   int                          `json:"samples"`
	Metrics   map[string]predictor.Metrics `json:"metrics"`
	TrainedAt time.Time                    `json:"trained_at"`
}

// Pipeline trains candidate regressors on historical pricing records and
// persists the winner. Training may run concurrently with live pricing; the
// previous artifact serves predictions until the new one is fully in place.
type Pipeline struct {
	repo  domain.Repository
	store *predictor.Store
	now   func() time.Time
}

// NewPipeline creates a training pipeline.
func NewPipeline(repo domain.Repository, store *predictor.Store) *Pipeline {
	return &Pipeline{
		repo:  repo,
		store: store,
		now:   time.Now,
	}
}

// Run executes one full training pass: load records, build the feature
// table, split, scale, fit every candidate, select by test-set R², persist.
// Returns ErrInsufficientData with fewer than 10 records.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	records, err := p.repo.ListPricingRecords(ctx, domain.RecordFilter{})
	if err != nil {
		return nil, fmt.Errorf("load pricing records: %w", err)
	}
	if len(records) < minTrainingRecords {
		return nil, fmt.Errorf("%w: %d records, need %d", domain.ErrInsufficientData, len(records), minTrainingRecords)
	}

	X, y, encoders, err := p.featureTable(ctx, records)
	if err != nil {
		return nil, err
	}

	trainX, trainY, testX, testY := split(X, y)

	scaler, err := predictor.FitScaler(trainX)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	trainScaled, err := scaler.TransformAll(trainX)
	if err != nil {
		return nil, err
	}
	testScaled, err := scaler.TransformAll(testX)
	if err != nil {
		return nil, err
	}

	metrics := make(map[string]predictor.Metrics, len(candidates))
	// First candidate to post a given R² wins; later ties do not displace it.
	var best *predictor.LinearModel
	bestR2 := math.Inf(-1)
	for _, c := range candidates {
		model, err := predictor.FitLinear(c.name, trainScaled, trainY, c.alpha)
		if err != nil {
			slog.Warn("candidate training failed",
				"model", c.name,
				"error", err,
			)
			continue
		}

		preds := make([]float64, len(testScaled))
		for i, row := range testScaled {
			preds[i], _ = model.Predict(row)
		}
		m := predictor.Metrics{
			R2:  predictor.RSquared(testY, preds),
			MAE: predictor.MeanAbsoluteError(testY, preds),
		}
		metrics[c.name] = m

		if best == nil || m.R2 > bestR2 {
			best = model
			bestR2 = m.R2
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no candidate model could be trained")
	}

	trainedAt := p.now().UTC()
	artifact := &predictor.Artifact{
		Version:   domain.PricingVersion,
		Model:     best,
		Scaler:    scaler,
		Encoders:  encoders,
		Metrics:   metrics[best.Name],
		Samples:   len(records),
		TrainedAt: trainedAt,
	}
	if err := p.store.Save(artifact); err != nil {
		return nil, fmt.Errorf("persist model: %w", err)
	}

	slog.Info("pricing model trained",
		"best_model", best.Name,
		"r2", bestR2,
		"samples", len(records),
	)

	return &Result{
		BestModel: best.Name,
		Samples:   len(records),
		Metrics:   metrics,
		TrainedAt: trainedAt,
	}, nil
}

// featureTable turns pricing records into the model's feature matrix and
// target vector, fitting the categorical encoders on this run's data.
// Service difficulty comes from the catalog; a record whose service is gone
// is skipped rather than failing the run.
func (p *Pipeline) featureTable(ctx context.Context, records []*domain.PricingRecord) ([][]float64, []float64, map[string]*predictor.LabelEncoder, error) {
	services := make(map[int64]*domain.Service)
	lookup := func(id int64) (*domain.Service, error) {
		if svc, ok := services[id]; ok {
			return svc, nil
		}
		svc, err := p.repo.GetService(ctx, id)
		if err != nil {
			return nil, err
		}
		services[id] = svc
		return svc, nil
	}

	type row struct {
		rec *domain.PricingRecord
		svc *domain.Service
	}
	var rows []row
	difficulties := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.BasePrice <= 0 {
			continue
		}
		svc, err := lookup(rec.ServiceID)
		if err != nil {
			slog.Warn("skipping record with unknown service",
				"record_id", rec.ID,
				"service_id", rec.ServiceID,
			)
			continue
		}
		rows = append(rows, row{rec: rec, svc: svc})
		difficulties = append(difficulties, svc.Difficulty)
	}
	if len(rows) < minTrainingRecords {
		return nil, nil, nil, fmt.Errorf("%w: %d usable records, need %d", domain.ErrInsufficientData, len(rows), minTrainingRecords)
	}

	encoders := map[string]*predictor.LabelEncoder{
		"service_difficulty": predictor.FitEncoder(difficulties),
	}
	diffEnc := encoders["service_difficulty"]

	X := make([][]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for _, r := range rows {
		rec, svc := r.rec, r.svc

		peak := 0.0
		if domain.IsPeakSeasonName(rec.Season) {
			peak = 1.0
		}
		highDifficulty := 0.0
		if svc.IsHighDifficulty() {
			highDifficulty = 1.0
		}

		X = append(X, []float64{
			float64(rec.ServiceID),
			float64(diffEnc.Encode(svc.Difficulty)),
			float64(rec.AreaID),
			rec.BasePrice,
			float64(rec.OrderVolume),
			rec.FabricCost,
			rec.ComplexityScore,
			rec.SuccessRate,
			float64(rec.CreatedAt.Month()),
			rec.FinalPrice / rec.BasePrice,
			peak,
			highDifficulty,
		})
		y = append(y, rec.FinalPrice)
	}
	return X, y, encoders, nil
}

// split shuffles rows with the fixed seed and carves off 20% as the test
// set. At least one row always lands on each side.
func split(X [][]float64, y []float64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	n := len(X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(splitSeed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	testN := n / 5
	if testN == 0 {
		testN = 1
	}
	for i, j := range idx {
		if i < testN {
			testX = append(testX, X[j])
			testY = append(testY, y[j])
		} else {
			trainX = append(trainX, X[j])
			trainY = append(trainY, y[j])
		}
	}
	return trainX, trainY, testX, testY
}

package predictor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/silaiwala/darzi/internal/domain"
)

// Metrics summarizes a trained model's test-set performance.
type Metrics struct {
	R2  float64 `json:"r2"`
	MAE float64 `json:"mae"`
}

// Artifact is the persisted model: the winning regressor plus the scaler and
// encoders fitted on the same training run. The three travel together; mixing
// a model with another run's scaler silently corrupts predictions.
type Artifact struct {
	Version   string                   `json:"version"`
	Model     *LinearModel             `json:"model"`
	Scaler    *StandardScaler          `json:"scaler"`
	Encoders  map[string]*LabelEncoder `json:"encoders"`
	Metrics   Metrics                  `json:"metrics"`
	Samples   int                      `json:"samples"`
	TrainedAt time.Time                `json:"trained_at"`
}

// Store persists model artifacts as JSON files under a directory, one file
// per version. Writes go to a temp file first, then into place with an
// atomic rename, so a reader never observes a half-written artifact.
type Store struct {
	dir string
}

// NewStore creates an artifact store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(version string) string {
	return filepath.Join(s.dir, fmt.Sprintf("pricing_model_%s.json", version))
}

// Save persists an artifact, replacing any prior artifact of the same
// version wholesale.
func (s *Store) Save(a *Artifact) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "pricing_model_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}

	if err := os.Rename(tmpName, s.path(a.Version)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("install artifact: %w", err)
	}
	return nil
}

// Load reads the artifact for a version. Returns ErrNoModel when none has
// been trained yet.
func (s *Store) Load(version string) (*Artifact, error) {
	data, err := os.ReadFile(s.path(version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNoModel
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Model == nil || a.Scaler == nil {
		return nil, fmt.Errorf("artifact %s is incomplete", version)
	}
	return &a, nil
}

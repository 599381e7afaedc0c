package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"healthmate/internal/diet"
	"healthmate/internal/prefs"

	"github.com/google/uuid"
)

const (
	preferencesFile = "preferences.json"
	plansFile       = "plans.json"
)

// LocalStore keeps the command-line client's state in JSON files: the food
// preference set and the recent plan history.
type LocalStore struct {
	basePath string
	now      func() time.Time
}

// NewLocalStore creates a new LocalStore and ensures the base directory exists.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &LocalStore{basePath: basePath, now: time.Now}, nil
}

// LoadPreferences returns the saved set, or an empty one.
func (s *LocalStore) LoadPreferences() (prefs.Set, error) {
	var set prefs.Set
	if err := s.readJSON(preferencesFile, &set); err != nil {
		return prefs.Set{}, err
	}
	return set, nil
}

// SavePreferences overwrites the saved set.
func (s *LocalStore) SavePreferences(set prefs.Set) error {
	return s.writeJSON(preferencesFile, set)
}

// LoadPlans returns the plan history, newest first.
func (s *LocalStore) LoadPlans() ([]diet.Plan, error) {
	plans := []diet.Plan{}
	if err := s.readJSON(plansFile, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// AddPlan puts content at the front of the history and silently drops
// anything beyond diet.MaxStoredPlans.
func (s *LocalStore) AddPlan(content string) ([]diet.Plan, error) {
	plans, err := s.LoadPlans()
	if err != nil {
		return nil, err
	}

	plan := diet.Plan{ID: uuid.New().String(), Content: content, CreatedAt: s.now().UTC()}
	plans = append([]diet.Plan{plan}, plans...)
	if len(plans) > diet.MaxStoredPlans {
		plans = plans[:diet.MaxStoredPlans]
	}

	if err := s.writeJSON(plansFile, plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// LatestPlan returns the newest plan's content, or "" when there is none.
func (s *LocalStore) LatestPlan() (string, error) {
	plans, err := s.LoadPlans()
	if err != nil || len(plans) == 0 {
		return "", err
	}
	return plans[0].Content, nil
}

func (s *LocalStore) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.basePath, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return nil
}

// writeJSON replaces the file atomically via rename.
func (s *LocalStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.basePath, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.basePath, name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

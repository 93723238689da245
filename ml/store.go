package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// artifactTimeLayout is fixed width so lexicographic order matches time order.
const artifactTimeLayout = "20060102T150405.000000000Z"

const artifactExt = ".json"

// artifact is everything needed to reconstitute a trained model.
type artifact struct {
	Name           string          `json:"name"`
	SavedAt        time.Time       `json:"saved_at"`
	FeatureColumns []string        `json:"feature_columns"`
	Metrics        Metrics         `json:"metrics"`
	Estimator      *RidgeRegressor `json:"estimator"`
	FeatureScaler  *ScalerState    `json:"feature_scaler,omitempty"`
	TargetScaler   *ScalerState    `json:"target_scaler,omitempty"`
}

func artifactFileName(name string, at time.Time) string {
	return name + "_" + at.UTC().Format(artifactTimeLayout) + artifactExt
}

// writeArtifact writes to a temp file in dir and renames it into place so a
// reader never observes a half-written artifact.
func writeArtifact(dir string, a *artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact %s: %w", a.Name, err)
	}

	tmp, err := os.CreateTemp(dir, "."+a.Name+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}

	path := filepath.Join(dir, artifactFileName(a.Name, a.SavedAt))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return path, nil
}

// latestArtifact resolves the lexicographically greatest artifact for name.
// Files whose suffix is not a timestamp (e.g. another model sharing the
// prefix) are ignored.
func latestArtifact(dir, name string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, name+"_*"+artifactExt))
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), name+"_"), artifactExt)
		if _, err := time.Parse(artifactTimeLayout, stamp); err == nil {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%s in %s: %w", name, dir, ErrModelNotFound)
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1], nil
}

func readArtifact(path string) (*artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", filepath.Base(path), err)
	}
	if a.Estimator == nil || !a.Estimator.Fitted() {
		return nil, fmt.Errorf("artifact %s has no fitted estimator: %w", filepath.Base(path), ErrNotFitted)
	}
	return &a, nil
}

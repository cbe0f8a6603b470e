package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/a-abukar/cv-review-generator/internal/models"
)

// LoadFeatureOverrides reads a YAML document keyed by feature name, e.g.
//
//	interview-prep:
//	  maxTokens: 2000
//	  temperature: 0.6
//
// An empty path yields no overrides.
func LoadFeatureOverrides(path string) (map[models.FeatureKind]models.FeatureOverride, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature table: %w", err)
	}
	return ParseFeatureOverrides(data)
}

func ParseFeatureOverrides(data []byte) (map[models.FeatureKind]models.FeatureOverride, error) {
	var raw map[string]models.FeatureOverride
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse feature table: %w", err)
	}

	overrides := make(map[models.FeatureKind]models.FeatureOverride, len(raw))
	for name, override := range raw {
		kind, err := models.ParseFeatureKind(name)
		if err != nil {
			return nil, fmt.Errorf("feature table: %w", err)
		}
		if t := override.Temperature; t != nil && (*t < 0 || *t > 1) {
			return nil, fmt.Errorf("feature table: %s temperature %v outside [0,1]", name, *t)
		}
		if m := override.MaxTokens; m != nil && *m <= 0 {
			return nil, fmt.Errorf("feature table: %s maxTokens must be positive", name)
		}
		overrides[kind] = override
	}
	return overrides, nil
}

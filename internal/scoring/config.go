package scoring

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config holds the tunable inputs to the scoring formulas. The formulas
// themselves are fixed; config only supplies the service-area geography,
// industry weighting, and the auto-qualify threshold.
type Config struct {
	// AutoQualifyThreshold is the minimum qualification score required
	// (but not sufficient) for the stage engine to auto-qualify.
	AutoQualifyThreshold int `yaml:"auto_qualify_threshold" mapstructure:"auto_qualify_threshold"`

	// ServiceAreas are regions scoring the full location sub-score.
	ServiceAreas []string `yaml:"service_areas" mapstructure:"service_areas"`

	// AdjacentAreas are regions scoring the reduced location sub-score.
	AdjacentAreas []string `yaml:"adjacent_areas" mapstructure:"adjacent_areas"`

	// IndustryWeights maps industry names to industry-fit sub-scores
	// (clamped to [0, 10]). Unlisted industries score 0.
	IndustryWeights map[string]int `yaml:"industry_weights" mapstructure:"industry_weights"`
}

// DefaultConfig returns the production scoring configuration.
func DefaultConfig() *Config {
	return &Config{
		AutoQualifyThreshold: 70,
		ServiceAreas:         []string{"Tennessee", "TN"},
		AdjacentAreas:        []string{"Kentucky", "KY", "Alabama", "AL", "Georgia", "GA"},
		IndustryWeights: map[string]int{
			"plumbing":      10,
			"hvac":          10,
			"electrical":    9,
			"roofing":       8,
			"landscaping":   7,
			"auto repair":   7,
			"dental":        6,
			"legal":         5,
			"restaurant":    4,
			"retail":        3,
		},
	}
}

// LoadConfig reads scoring config from a YAML file. Fields left empty
// fall back to the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scoring: read config %s", path)
	}

	var wrapper struct {
		Scoring Config `yaml:"scoring"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "scoring: parse config")
	}

	cfg := &wrapper.Scoring
	def := DefaultConfig()
	if cfg.AutoQualifyThreshold == 0 {
		cfg.AutoQualifyThreshold = def.AutoQualifyThreshold
	}
	if len(cfg.ServiceAreas) == 0 {
		cfg.ServiceAreas = def.ServiceAreas
	}
	if len(cfg.AdjacentAreas) == 0 {
		cfg.AdjacentAreas = def.AdjacentAreas
	}
	if len(cfg.IndustryWeights) == 0 {
		cfg.IndustryWeights = def.IndustryWeights
	}
	return cfg, nil
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/acpsim/internal/models"
)

// LatencyWindow bounds the attacker's cognitive latency in logical ticks.
type LatencyWindow struct {
	Min int `json:"min" yaml:"min" validate:"gte=0"`
	Max int `json:"max" yaml:"max" validate:"gte=0,gtefield=Min"`
}

// SimulationConfig is the validated, immutable input of the simulation core.
// It is passed by value; nothing in the core mutates it.
type SimulationConfig struct {
	// ACPStrength is the probability that the ACP defender deceives a
	// detected scan inside the latency window.
	ACPStrength float64 `json:"acp_strength" yaml:"acp_strength" validate:"gte=0,lte=1"`

	NumNodes     int     `json:"num_nodes" yaml:"num_nodes" validate:"gte=10"`
	Connectivity float64 `json:"connectivity" yaml:"connectivity" validate:"gte=0,lte=1"`

	// TopologyType is one of random, erdos_renyi, scale_free,
	// barabasi_albert, hub_spoke, hierarchical, auto.
	TopologyType    string  `json:"topology_type" yaml:"topology_type" validate:"oneof=random erdos_renyi scale_free barabasi_albert hub_spoke hierarchical auto"`
	HubRatio        float64 `json:"hub_ratio" yaml:"hub_ratio" validate:"gt=0,lte=0.5"`
	BranchingFactor int     `json:"branching_factor" yaml:"branching_factor" validate:"gte=2"`

	// FixedTopology holds the graph and vulnerabilities constant across
	// episodes (generated from RandomSeed); only agent randomness varies.
	FixedTopology bool `json:"fixed_topology" yaml:"fixed_topology"`

	VulnerabilityDistribution string `json:"vulnerability_distribution" yaml:"vulnerability_distribution" validate:"oneof=uniform normal exponential bimodal gradient inverse auto"`

	// Attacker
	LearningRate  float64       `json:"learning_rate" yaml:"learning_rate" validate:"gt=0,lte=5"`
	DecayRate     float64       `json:"decay_rate" yaml:"decay_rate" validate:"gt=0,lt=1"`
	Noise         float64       `json:"noise" yaml:"noise" validate:"gte=0,lte=1"`
	LatencyWindow LatencyWindow `json:"latency_window" yaml:"latency_window"`

	// Episode dynamics
	MaxSteps          int     `json:"max_steps" yaml:"max_steps" validate:"gte=1"`
	DetectionRate     float64 `json:"detection_rate" yaml:"detection_rate" validate:"gte=0,lte=1"`
	Paranoia          float64 `json:"paranoia" yaml:"paranoia" validate:"gte=0,lte=1"`
	CompromisePenalty float64 `json:"compromise_penalty" yaml:"compromise_penalty" validate:"gte=0"`
	DeceptionBonus    float64 `json:"deception_bonus" yaml:"deception_bonus" validate:"gte=0"`
	AvoidanceBonus    float64 `json:"avoidance_bonus" yaml:"avoidance_bonus" validate:"gte=0"`

	// WarmupSteps run before the MaxSteps recorded steps of every episode.
	// Agents act and learn during warmup but nothing is counted.
	WarmupSteps int `json:"warmup_steps" yaml:"warmup_steps" validate:"gte=0,lte=10000"`

	// Experiment
	RandomSeed  int64 `json:"random_seed" yaml:"random_seed"`
	NumEpisodes int   `json:"num_episodes" yaml:"num_episodes" validate:"gte=1"`
	Workers     int   `json:"workers" yaml:"workers" validate:"gte=0"`

	// Defender selects the strategy for single-configuration runs:
	// "pessimistic" or "optimistic_acp". Experiments always run both.
	Defender string `json:"defender" yaml:"defender" validate:"oneof=pessimistic optimistic_acp"`

	// Statistics
	ConfidenceLevel  float64 `json:"confidence_level" yaml:"confidence_level" validate:"gt=0,lt=1"`
	BootstrapSamples int     `json:"bootstrap_samples" yaml:"bootstrap_samples" validate:"gte=100"`
	Alpha            float64 `json:"alpha" yaml:"alpha" validate:"gt=0,lt=1"`
}

// DefaultSimulationConfig returns the reference experiment configuration.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		ACPStrength:               0.65,
		NumNodes:                  50,
		Connectivity:              0.6,
		TopologyType:              "random",
		HubRatio:                  0.1,
		BranchingFactor:           3,
		VulnerabilityDistribution: "uniform",
		LearningRate:              1.0,
		DecayRate:                 0.8,
		Noise:                     0.1,
		LatencyWindow:             LatencyWindow{Min: 1, Max: 3},
		MaxSteps:                  50,
		DetectionRate:             0.5,
		Paranoia:                  0.8,
		CompromisePenalty:         2.0,
		DeceptionBonus:            2.0,
		AvoidanceBonus:            0.5,
		RandomSeed:                42,
		NumEpisodes:               1000,
		Defender:                  "optimistic_acp",
		ConfidenceLevel:           0.95,
		BootstrapSamples:          10000,
		Alpha:                     0.05,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every bound and returns a *models.ConfigurationError
// naming the first offending field.
func (c SimulationConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &models.ConfigurationError{Message: err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return &models.ConfigurationError{
		Field:   fieldPath(verrs[0]),
		Message: strings.Join(msgs, "; "),
	}
}

// fieldPath strips the root struct name from a namespace such as
// "SimulationConfig.latency_window.max".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s, got %v", field, fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be < %s, got %v", field, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s must be >= %s, got %v", field, strings.ToLower(fe.Param()), fe.Value())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// LoadSimulationConfig reads one configuration (for example a covering-array
// row) from a YAML or JSON file. Unset fields keep their defaults.
func LoadSimulationConfig(path string) (SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SimulationConfig{}, fmt.Errorf("reading simulation config: %w", err)
	}
	cfg := DefaultSimulationConfig()
	decode := unmarshalYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		decode = unmarshalJSON
	}
	if err := decode(data, &cfg); err != nil {
		return SimulationConfig{}, &models.ConfigurationError{Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	if err := cfg.Validate(); err != nil {
		return SimulationConfig{}, err
	}
	return cfg, nil
}

// WithOverrides returns a copy of c with overrides applied. Keys are the
// YAML field names; nested objects such as latency_window merge into the
// existing values. The result is not validated.
func (c SimulationConfig) WithOverrides(overrides map[string]any) (SimulationConfig, error) {
	if len(overrides) == 0 {
		return c, nil
	}
	data, err := json.Marshal(overrides)
	if err != nil {
		return c, &models.ConfigurationError{Message: fmt.Sprintf("encoding overrides: %v", err)}
	}
	out := c
	if err := unmarshalJSON(data, &out); err != nil {
		return c, &models.ConfigurationError{Message: fmt.Sprintf("applying overrides: %v", err)}
	}
	return out, nil
}

// ParseOverrides turns key=value pairs into an overrides map. Values are
// parsed as YAML scalars, and dotted keys such as latency_window.max build
// nested objects.
func ParseOverrides(pairs []string) (map[string]any, error) {
	out := make(map[string]any)
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &models.ConfigurationError{Message: fmt.Sprintf("override %q must be key=value", pair)}
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, &models.ConfigurationError{Field: key, Message: fmt.Sprintf("parsing value %q: %v", raw, err)}
		}

		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return out, nil
}

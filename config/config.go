// Package config loads the conversation pipeline's tunables from YAML.
// Unknown keys are rejected so typos fail at load time instead of silently
// falling back to defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Actions   ActionsConfig   `yaml:"actions"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Cache     CacheConfig     `yaml:"cache"`
}

// Duration unmarshals from YAML strings like "30s" or "1m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

type ModelConfig struct {
	// Name is the model identifier passed to the completion API.
	Name    string   `yaml:"name"`
	Timeout Duration `yaml:"timeout"`
}

type ActionsConfig struct {
	Timeout Duration `yaml:"timeout"`
	// FillerPhrases are rotated through as acknowledgements while actions
	// run.
	FillerPhrases []string `yaml:"filler_phrases"`
}

type SynthesisConfig struct {
	Voice          string `yaml:"voice"`
	ChunkSize      int    `yaml:"chunk_size"`
	WordsPerMinute int    `yaml:"words_per_minute"`
	Streaming      bool   `yaml:"streaming"`
}

type CacheConfig struct {
	// Dir is the cache directory. Empty with InMemory unset disables the
	// cache entirely.
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Name:    "llama-3.3-70b-versatile",
			Timeout: Duration(30 * time.Second),
		},
		Actions: ActionsConfig{
			Timeout: Duration(30 * time.Second),
			FillerPhrases: []string{
				"One moment please.",
				"Let me check that for you.",
				"Just a second.",
			},
		},
		Synthesis: SynthesisConfig{
			Voice:          "aura-2-thalia-en",
			ChunkSize:      4096,
			WordsPerMinute: 150,
		},
	}
}

// Load reads the config file at path, applied on top of Default.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses YAML config, applied on top of Default.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once rather than stopping at the first.
func (c Config) Validate() error {
	var errs []error
	if c.Model.Name == "" {
		errs = append(errs, errors.New("model.name must not be empty"))
	}
	if c.Model.Timeout <= 0 {
		errs = append(errs, errors.New("model.timeout must be positive"))
	}
	if c.Actions.Timeout <= 0 {
		errs = append(errs, errors.New("actions.timeout must be positive"))
	}
	if c.Synthesis.Voice == "" {
		errs = append(errs, errors.New("synthesis.voice must not be empty"))
	}
	if c.Synthesis.ChunkSize <= 0 {
		errs = append(errs, errors.New("synthesis.chunk_size must be positive"))
	}
	if c.Synthesis.WordsPerMinute <= 0 {
		errs = append(errs, errors.New("synthesis.words_per_minute must be positive"))
	}
	return errors.Join(errs...)
}

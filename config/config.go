package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Duration wraps time.Duration for JSON configs, accepting strings like
// "90s" or "1h".
type Duration time.Duration

// UnmarshalJSON parses a duration string or a plain number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DirsConfig names the artifact directories of the pipeline.
type DirsConfig struct {
	// Info receives per-ontology metadata artifacts.
	Info string `json:"info,omitempty"`
	// Data receives ontology source files.
	Data string `json:"data,omitempty"`
	// Mappings receives per-ontology mapping artifacts.
	Mappings string `json:"mappings,omitempty"`
	// Classes receives the extracted class artifacts.
	Classes string `json:"classes,omitempty"`
}

// RetryConfig tunes the inline retry tier of the HTTP client.
type RetryConfig struct {
	MaxAttempts  int      `json:"maxAttempts,omitempty"`
	InitialDelay Duration `json:"initialDelay,omitempty"`
}

// DownloadConfig tunes the ontology sync task.
type DownloadConfig struct {
	Workers         int      `json:"workers,omitempty"`
	RetrierAttempts int      `json:"retrierAttempts,omitempty"`
	RetrierInterval Duration `json:"retrierInterval,omitempty"`
}

// MappingsConfig tunes the mapping download task.
type MappingsConfig struct {
	Workers int `json:"workers,omitempty"`
}

// ExtractConfig tunes the class extraction task.
type ExtractConfig struct {
	Workers          int  `json:"workers,omitempty"`
	ApplyReasoning   bool `json:"applyReasoning,omitempty"`
	FilterDeprecated bool `json:"filterDeprecated,omitempty"`
}

// Config is the complete application configuration. Every field has a
// working default; a config file only overrides what it names.
type Config struct {
	BaseURL  string          `json:"baseUrl,omitempty"`
	APIKey   string          `json:"apiKey,omitempty"`
	Dirs     DirsConfig      `json:"dirs,omitempty"`
	Retry    RetryConfig     `json:"retry,omitempty"`
	Download DownloadConfig  `json:"download,omitempty"`
	Mappings MappingsConfig  `json:"mappings,omitempty"`
	Extract  ExtractConfig   `json:"extract,omitempty"`
	// Ontologies optionally restricts every task to these acronyms.
	Ontologies []string `json:"ontologies,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		BaseURL: "https://data.bioontology.org",
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: Duration(500 * time.Millisecond),
		},
		Download: DownloadConfig{
			Workers:         6,
			RetrierAttempts: 10,
			RetrierInterval: Duration(time.Hour),
		},
		Mappings: MappingsConfig{Workers: 6},
		Extract:  ExtractConfig{Workers: 8, FilterDeprecated: true},
	}
}

// Load reads a JSON config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := validateSchema(data); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AllowList turns the configured acronym restriction into a lookup set, nil
// when unrestricted.
func (c *Config) AllowList() map[string]struct{} {
	if len(c.Ontologies) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(c.Ontologies))
	for _, acronym := range c.Ontologies {
		allowed[strings.ToUpper(strings.TrimSpace(acronym))] = struct{}{}
	}
	return allowed
}

// Validate checks the semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: baseUrl must not be empty")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: retry.maxAttempts must be at least 1")
	}
	for name, workers := range map[string]int{
		"download.workers": c.Download.Workers,
		"mappings.workers": c.Mappings.Workers,
		"extract.workers":  c.Extract.Workers,
	} {
		if workers < 1 {
			return fmt.Errorf("config: %s must be at least 1", name)
		}
	}
	if c.Download.RetrierAttempts < 1 {
		return fmt.Errorf("config: download.retrierAttempts must be at least 1")
	}
	if c.Download.RetrierInterval.Std() <= 0 {
		return fmt.Errorf("config: download.retrierInterval must be positive")
	}
	return nil
}

// schema describes the config file shape. Validation runs before decoding
// so typos surface with field paths instead of silent zero values.
const schema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"baseUrl": {"type": "string"},
		"apiKey": {"type": "string"},
		"dirs": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"info": {"type": "string"},
				"data": {"type": "string"},
				"mappings": {"type": "string"},
				"classes": {"type": "string"}
			}
		},
		"retry": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"maxAttempts": {"type": "integer", "minimum": 1},
				"initialDelay": {"type": ["string", "number"]}
			}
		},
		"download": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"workers": {"type": "integer", "minimum": 1},
				"retrierAttempts": {"type": "integer", "minimum": 1},
				"retrierInterval": {"type": ["string", "number"]}
			}
		},
		"mappings": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"workers": {"type": "integer", "minimum": 1}
			}
		},
		"extract": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"workers": {"type": "integer", "minimum": 1},
				"applyReasoning": {"type": "boolean"},
				"filterDeprecated": {"type": "boolean"}
			}
		},
		"ontologies": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

func validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("config schema validation: %w", err)
	}
	if !result.Valid() {
		var b strings.Builder
		b.WriteString("config does not match the schema:")
		for _, desc := range result.Errors() {
			fmt.Fprintf(&b, "\n  - %s: %s", desc.Field(), desc.Description())
		}
		return fmt.Errorf("%s", b.String())
	}
	return nil
}

// Package storage keeps the generated artifacts (images, metadata and
// forecast data) in a local directory or a Google Cloud Storage bucket.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ErrNotExist is returned when an artifact has not been written yet
var ErrNotExist = errors.New("artifact does not exist")

// Content types of the stored artifacts
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
)

// Store holds artifacts by name. Writes replace the whole artifact.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
	ModTime(ctx context.Context, name string) (time.Time, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string, fn func(name string) error) error
	Type() string
	Close() error
}

// ForecastImage is the name of the rendered chart of a zip code
func ForecastImage(zipCode int) string {
	return fmt.Sprintf("forecast_%d.png", zipCode)
}

// MarkedImage is the name of the chart with the time mark
func MarkedImage(zipCode int) string {
	return fmt.Sprintf("markedForecast_%d.png", zipCode)
}

// MetadataFile is the name of the image metadata
func MetadataFile(zipCode int) string {
	return fmt.Sprintf("metadata_%d.json", zipCode)
}

// ForecastData is the name of the flattened forecast
func ForecastData(zipCode int) string {
	return fmt.Sprintf("forecast_%d.json", zipCode)
}

// Config selects and configures the backend
type Config struct {
	Type            string `yaml:"type"` // local or gcs
	BaseDir         string `yaml:"base_dir"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// DefaultConfig stores artifacts in ./data
func DefaultConfig() Config {
	return Config{Type: LocalType, BaseDir: "./data"}
}

// DecodeConfig reads a storage section of the configuration file
func DecodeConfig(raw map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	if len(raw) == 0 {
		return cfg, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, fmt.Errorf("failed to create decoder for storage config: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("failed to decode storage config: %w", err)
	}
	return cfg, nil
}

// Open creates the configured store
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", LocalType:
		return NewLocalStore(cfg.BaseDir)
	case GCSType:
		return NewGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// PutJSON stores v as indented JSON
func PutJSON(ctx context.Context, s Store, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return s.Put(ctx, name, data, ContentTypeJSON)
}

// GetJSON loads a JSON artifact into v
func GetJSON(ctx context.Context, s Store, name string, v interface{}) error {
	data, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

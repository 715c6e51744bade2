// Package config loads the optional agsrecall YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/agsrecall/internal/engine"
	"github.com/roach88/agsrecall/internal/recall"
)

// Config holds engine and session settings. Zero values fall back to the
// engine defaults.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	MIDI   MIDIConfig   `yaml:"midi"`

	// DB is the default journal path for play.
	DB string `yaml:"db,omitempty"`
}

// EngineConfig configures a playback engine.
type EngineConfig struct {
	// MaxContexts bounds live recall contexts; zero or less disables the
	// limit.
	MaxContexts int `yaml:"max_contexts,omitempty"`

	// BufferSize is the number of samples Render returns.
	BufferSize int `yaml:"buffer_size,omitempty"`

	// IDPrefix switches recall ids from UUIDv7 to prefix-1, prefix-2, ...
	IDPrefix string `yaml:"id_prefix,omitempty"`
}

// MIDIConfig routes MIDI notes to an audio.
type MIDIConfig struct {
	Audio   string `yaml:"audio,omitempty"`
	Channel *int   `yaml:"channel,omitempty"`
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{Engine: EngineConfig{
		MaxContexts: engine.DefaultMaxContexts,
		BufferSize:  engine.DefaultBufferSize,
	}}
}

// Load reads a config file. Unknown keys are rejected so typos surface.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data on top of Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Engine.BufferSize <= 0 {
		return fmt.Errorf("engine.buffer_size must be positive, got %d", c.Engine.BufferSize)
	}
	if ch := c.MIDI.Channel; ch != nil && (*ch < 0 || *ch > 15) {
		return fmt.Errorf("midi.channel must be 0-15, got %d", *ch)
	}
	return nil
}

// EngineOptions returns the engine options the config selects.
func (c Config) EngineOptions() []engine.EngineOption {
	maxContexts := c.Engine.MaxContexts
	if maxContexts < 0 {
		maxContexts = 0
	}
	opts := []engine.EngineOption{
		engine.WithMaxContexts(maxContexts),
		engine.WithBufferSize(c.Engine.BufferSize),
	}
	if c.Engine.IDPrefix != "" {
		opts = append(opts, engine.WithIDGenerator(recall.NewSequenceGenerator(c.Engine.IDPrefix)))
	}
	return opts
}

// Package config holds the translator's tunables: code buffer and
// stack sizing, chaining on/off, and the execution-step cap. Values
// come from compiled-in defaults, an optional TOML file, and finally
// CLI flags, each layer overriding the previous.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config mirrors the sizes the source used (32 MiB code buffer, 128
// MiB guest stack, spec §6) plus the knobs the CLI exposes.
type Config struct {
	CodeBufferSize uint32 `toml:"code_buffer_size"`
	StackSize      uint32 `toml:"stack_size"`
	Chaining       bool   `toml:"chaining"`
	Debug          bool   `toml:"debug"`
	MaxSteps       uint64 `toml:"max_steps"`
}

// Default returns the compiled-in defaults.
func Default() Config {
	return Config{
		CodeBufferSize: 32 * 1024 * 1024,
		StackSize:      128 * 1024 * 1024,
		Chaining:       true,
		Debug:          false,
		MaxSteps:       0,
	}
}

// LoadFile merges a TOML config file onto the receiver's existing
// values, so callers should start from Default() and only overwrite
// fields the file actually sets.
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

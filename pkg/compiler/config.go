// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package compiler

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/consensys/go-witgen/pkg/layout"
	"github.com/consensys/go-witgen/pkg/util/field"
)

// Config determines how a circuit is compiled.  Configurations can be read
// from TOML files, where keys use the names given in the struct tags.
type Config struct {
	// Name of the target backend (native, wasm or cvm).
	Backend string `toml:"backend"`
	// Prime field overriding that of the circuit (if non-empty).
	Prime string `toml:"prime"`
	// Emit explanatory comments.
	Comments bool `toml:"comments"`
	// Maximum number of threads used by generated native code.
	MaxThreads uint `toml:"max_threads"`
	// Maximum number of units lowered concurrently.
	Jobs uint `toml:"jobs"`
	// Scratch memory reserved for the field arithmetic runtime.
	FrMemorySize uint `toml:"fr_memory_size"`
	// Size of the message ring buffer.
	MessageBufferBytes uint `toml:"message_buffer_bytes"`
	// Size of one message table entry.
	MessageBytes uint `toml:"message_bytes"`
	// Replay subcomponent input writes against the trigger model before
	// lowering.
	AuditTriggers bool `toml:"audit_triggers"`
	// Output file (or empty for stdout).
	Output string `toml:"output"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	var opts = layout.DefaultOptions()
	//
	return Config{
		Backend:            "native",
		MaxThreads:         32,
		Jobs:               uint(runtime.GOMAXPROCS(0)),
		FrMemorySize:       opts.FrMemorySize,
		MessageBufferBytes: opts.MessageBufferBytes,
		MessageBytes:       opts.MessageBytes,
		AuditTriggers:      true,
	}
}

// LoadConfig reads a configuration file over the given configuration, such
// that keys missing from the file retain their existing values.  Unknown keys
// are reported as errors.
func LoadConfig(filename string, config *Config) error {
	meta, err := toml.DecodeFile(filename, config)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	//
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		var keys = make([]string, len(undecoded))
		//
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		//
		return fmt.Errorf("%s: unknown configuration key(s) %s", filename, strings.Join(keys, ", "))
	}
	//
	return nil
}

// Validate checks a configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	//
	if !slices.Contains(BACKENDS, c.Backend) {
		errs = append(errs, fmt.Errorf("unknown backend \"%s\" (expected one of %s)", c.Backend,
			strings.Join(BACKENDS, ", ")))
	}
	//
	if c.Prime != "" && field.GetConfig(c.Prime) == nil {
		errs = append(errs, fmt.Errorf("unknown prime \"%s\"", c.Prime))
	}
	//
	if c.Jobs == 0 {
		errs = append(errs, errors.New("jobs must be positive"))
	}
	//
	if c.MaxThreads == 0 {
		errs = append(errs, errors.New("max_threads must be positive"))
	}
	//
	if c.MessageBytes == 0 {
		errs = append(errs, errors.New("message_bytes must be positive"))
	}
	//
	return errors.Join(errs...)
}

// LayoutOptions returns the memory layout options of this configuration.
func (c *Config) LayoutOptions() layout.Options {
	return layout.Options{
		FrMemorySize:       c.FrMemorySize,
		MessageBufferBytes: c.MessageBufferBytes,
		MessageBytes:       c.MessageBytes,
	}
}

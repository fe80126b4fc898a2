// Package storeconfig opens one or more registry backends from a YAML file.
//
// Callers still need to link the backends they want via blank imports.
package storeconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"xdao.co/identity/storage"
	"xdao.co/identity/storage/registry"
)

// Write policies.
const (
	// WriteFirst writes only to the first backend; reads fall back in order.
	WriteFirst = "first"
	// WriteAll writes to every backend and requires CID agreement.
	WriteAll = "all"
)

// Config describes the backends to open.
//
// Example:
//
//	write_policy: all
//	backends:
//	  - name: localfs
//	    config:
//	      localfs-dir: /var/lib/identity
//	  - name: grpc
//	    id: replica
//	    config:
//	      grpc-target: 10.0.0.2:7777
//
// Config values are backend-specific and mirror the backend's flag names.
type Config struct {
	WritePolicy string          `yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `yaml:"backends"`
}

type BackendConfig struct {
	// Name is the registry backend to open (e.g. "grpc", "localfs").
	Name string `yaml:"name"`
	// ID is an optional stable alias used in reports. Name is used when empty.
	ID     string            `yaml:"id,omitempty"`
	Config map[string]string `yaml:"config,omitempty"`
}

func (b BackendConfig) key() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

// Parse decodes YAML config text. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("storeconfig: %w", err)
	}
	return cfg, cfg.Validate()
}

func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("storeconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("storeconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("storeconfig: backend name is required")
		}
		if _, ok := seen[b.key()]; ok {
			return fmt.Errorf("storeconfig: duplicate backend id %q", b.key())
		}
		seen[b.key()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll:
		return nil
	default:
		return fmt.Errorf("storeconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every backend and composes them per WritePolicy.
//
// If preferred is non-empty, the backend with that name or id is moved to
// the front, so it takes writes under WriteFirst.
func (c Config) Open(usage registry.Usage, preferred string) (storage.Store, registry.Closer, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	ordered := append([]BackendConfig(nil), c.Backends...)
	if preferred != "" {
		idx := -1
		for i := range ordered {
			if ordered[i].Name == preferred || ordered[i].ID == preferred {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, fmt.Errorf("storeconfig: preferred backend %q not found in config", preferred)
		}
		if idx != 0 {
			b := ordered[idx]
			copy(ordered[1:idx+1], ordered[0:idx])
			ordered[0] = b
		}
	}

	named := make([]storage.Named, 0, len(ordered))
	closers := make([]registry.Closer, 0, len(ordered))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	for _, b := range ordered {
		s, closeFn, err := registry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("storeconfig: backend %q: %w", b.key(), err)
		}
		named = append(named, storage.Named{Name: b.key(), Store: s})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].Store, closeAll, nil
	}
	if c.WritePolicy == WriteAll {
		return storage.Mirror{Backends: named}, closeAll, nil
	}
	stores := make([]storage.Store, 0, len(named))
	for _, n := range named {
		stores = append(stores, n.Store)
	}
	return storage.Fallback{Stores: stores}, closeAll, nil
}

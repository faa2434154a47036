// Package config loads the typed collector/emitter configuration
// records described in spec.md §3/§6. The original C implementation
// treats config loading as an external collaborator over a
// libconfig-style brace syntax; this rewrite keeps the same field
// names and nesting but serializes them as YAML, following a
// Load(path) -> (*Config, error) shape.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RegexFilter mirrors spec.md §3's Filter data model before the rules
// are compiled.
type RegexFilter struct {
	Sense bool     `yaml:"sense"`
	Logic bool     `yaml:"logic"`
	Rules []string `yaml:"rules"`
}

// Collector is the root of a collector config file.
type Collector struct {
	Interface      string      `yaml:"interface"`
	EpicsInterface string      `yaml:"epics_interface"`
	Emitters       []string    `yaml:"emitter"`
	Regex          RegexFilter `yaml:"regex"`
}

// Emitter is the root of an emitter config file.
type Emitter struct {
	Interface      string `yaml:"interface"`
	EpicsInterface string `yaml:"epics_interface"`
	// LinkLayer selects the raw link-layer sender (forged Ethernet
	// frame) over the raw-IPv4 fallback described in spec.md §4.5.
	// Defaults to true when omitted; see LoadEmitter.
	LinkLayer *bool `yaml:"link_layer"`
}

type collectorFile struct {
	Collector Collector `yaml:"collector"`
}

type emitterFile struct {
	Emitter Emitter `yaml:"emitter"`
}

// LoadCollector reads and validates a collector config file.
func LoadCollector(path string) (*Collector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var f collectorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	c := f.Collector
	if c.Interface == "" {
		return nil, fmt.Errorf("config: collector.interface is required")
	}
	if c.EpicsInterface == "" {
		return nil, fmt.Errorf("config: collector.epics_interface is required")
	}
	if len(c.Emitters) == 0 {
		return nil, fmt.Errorf("config: collector.emitter must list at least one peer")
	}

	return &c, nil
}

// LoadEmitter reads and validates an emitter config file.
func LoadEmitter(path string) (*Emitter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var f emitterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	e := f.Emitter
	if e.Interface == "" {
		return nil, fmt.Errorf("config: emitter.interface is required")
	}
	if e.EpicsInterface == "" {
		return nil, fmt.Errorf("config: emitter.epics_interface is required")
	}
	if e.LinkLayer == nil {
		linkLayer := true
		e.LinkLayer = &linkLayer
	}

	return &e, nil
}

// Package config holds the scenario configuration of the rebalance command.
package config

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Policy names accepted in Config.Policies.
const (
	PolicyRing    = "ring"
	PolicyModulus = "modulus"
)

// Step operations accepted in Step.Op.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// Config is the root configuration structure.
type Config struct {
	Policies  []string        `yaml:"policies"`  // "ring", "modulus"
	Replicas  []int           `yaml:"replicas"`  // Ring points per node; one ring run per value
	Seed      uint64          `yaml:"seed"`      // xxh3 seed of the modulus policy
	Nodes     []string        `yaml:"nodes"`     // Nodes added before resources
	Resources ResourcesConfig `yaml:"resources"` // Resources added after the nodes
	Steps     []Step          `yaml:"steps"`     // Membership changes applied after resources
}

// ResourcesConfig configures the resources of a scenario.
type ResourcesConfig struct {
	Count int    `yaml:"count"` // Number of resources
	Words string `yaml:"words"` // Optional words file; generated names are used if empty
}

// Step is a single membership change.
type Step struct {
	Op   string `yaml:"op"`
	Node string `yaml:"node"`
}

func (s Step) String() string {
	return s.Op + " " + s.Node
}

// Default returns the scenario of three nodes, a hundred resources, and the
// first node removed and added back.
func Default() Config {
	return Config{
		Policies: []string{PolicyRing, PolicyModulus},
		Replicas: []int{1},
		Nodes:    []string{"Node 1", "Node 2", "Node 3"},
		Resources: ResourcesConfig{
			Count: 100,
		},
		Steps: []Step{
			{Op: OpRemove, Node: "Node 1"},
			{Op: OpAdd, Node: "Node 1"},
		},
	}
}

// Load reads a YAML scenario from path. Fields missing in the file keep
// their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses a YAML scenario. Fields missing in data keep their Default
// values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Policies) == 0 {
		return errors.New("at least one policy is required")
	}
	for _, p := range c.Policies {
		if p != PolicyRing && p != PolicyModulus {
			return fmt.Errorf("unknown policy %q", p)
		}
	}
	for _, r := range c.Replicas {
		if r <= 0 {
			return fmt.Errorf("replicas must be positive, got %d", r)
		}
	}
	if len(c.Replicas) == 0 && slices.Contains(c.Policies, PolicyRing) {
		return errors.New("at least one replicas value is required for the ring policy")
	}
	if c.Resources.Count < 0 {
		return fmt.Errorf("resources count must not be negative, got %d", c.Resources.Count)
	}
	if len(c.Nodes) == 0 && c.Resources.Count > 0 {
		return errors.New("at least one node is required to store resources")
	}
	for i, s := range c.Steps {
		if s.Op != OpAdd && s.Op != OpRemove {
			return fmt.Errorf("step %d: unknown op %q", i, s.Op)
		}
		if s.Node == "" {
			return fmt.Errorf("step %d: node is required", i)
		}
	}
	return nil
}

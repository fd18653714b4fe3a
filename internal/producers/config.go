// Package producers holds the deployable producer catalog: which downstream
// integrations exist, their priority order and their eligibility parameters.
package producers

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"taxbridge/pkg/domain"
)

// ProducerConfig describes one producer entry. Entries are priority-ordered
// in the file: earlier entries win eligibility ties.
type ProducerConfig struct {
	Name domain.ProducerName `yaml:"name"`
	Kind domain.ArtifactKind `yaml:"kind"`

	// BaseURL of the external service this producer fronts.
	BaseURL string `yaml:"base_url"`
	// Timeout per external call.
	Timeout time.Duration `yaml:"timeout"`

	// MinAmount excludes low-value events; zero means no floor.
	MinAmount float64 `yaml:"min_amount"`
	// RequireCounterparty restricts the producer to events carrying a
	// counterparty taxpayer id (business-to-business flows).
	RequireCounterparty bool `yaml:"require_counterparty"`
	// Organizations restricts the producer to specific registry numbers;
	// empty means all.
	Organizations []domain.RegistryNumber `yaml:"organizations"`
}

// Config is the full producer catalog.
type Config struct {
	Producers []ProducerConfig `yaml:"producers"`
}

// Load reads and validates the catalog from a YAML file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read producer config: %w", err)
	}
	return Parse(raw)
}

// Parse validates raw YAML catalog content.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse producer config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Producers) == 0 {
		return fmt.Errorf("producer config: at least one producer is required")
	}
	seen := make(map[domain.ProducerName]bool, len(c.Producers))
	for i := range c.Producers {
		p := &c.Producers[i]
		if p.Name == "" {
			return fmt.Errorf("producer config: entry %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("producer config: duplicate producer %q", p.Name)
		}
		seen[p.Name] = true
		if !p.Kind.IsValid() {
			return fmt.Errorf("producer config: %q has unknown kind %q", p.Name, p.Kind)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("producer config: %q has no base_url", p.Name)
		}
		if p.MinAmount < 0 {
			return fmt.Errorf("producer config: %q has negative min_amount", p.Name)
		}
		for _, org := range p.Organizations {
			if _, err := domain.ParseRegistryNumber(org.String()); err != nil {
				return fmt.Errorf("producer config: %q lists invalid registry number %q", p.Name, org)
			}
		}
		if p.Timeout <= 0 {
			p.Timeout = 30 * time.Second
		}
	}
	return nil
}

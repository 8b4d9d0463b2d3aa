package file

import (
	"bytes"
	"fmt"
	"os"

	"github.com/aretw0/caregraph/pkg/domain"
	"gopkg.in/yaml.v3"
)

// LoadTopology reads a YAML topology document and validates it.
func LoadTopology(path string) (*domain.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology decodes a YAML topology. Unknown fields are rejected.
func ParseTopology(data []byte) (*domain.Topology, error) {
	topo := &domain.Topology{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(topo); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTopology, err)
	}
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	return topo, nil
}

// SaveTopology writes topo as YAML, for scaffolding a custom deployment.
func SaveTopology(path string, topo *domain.Topology) error {
	data, err := yaml.Marshal(topo)
	if err != nil {
		return fmt.Errorf("failed to marshal topology: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

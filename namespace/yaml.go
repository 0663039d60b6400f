package namespace

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type registryYAML struct {
	Prefixes map[string]string `yaml:"prefixes,omitempty"`
	Default  string            `yaml:"default,omitempty"`
}

// MarshalYAML encodes the registry as its default URI and prefix bindings.
func (r *Registry) MarshalYAML() (any, error) {
	return registryYAML{Default: r.DefaultURI(), Prefixes: r.Prefixes()}, nil
}

// UnmarshalYAML decodes a registry written by MarshalYAML.
func (r *Registry) UnmarshalYAML(value *yaml.Node) error {
	var raw registryYAML
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode namespace registry: %w", err)
	}
	decoded, err := New(raw.Default, raw.Prefixes)
	if err != nil {
		return fmt.Errorf("decode namespace registry: %w", err)
	}
	*r = *decoded
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TenantsFile lists the services of several tenants, so one process can
// call each with its own credentials.
type TenantsFile struct {
	Tenants []Service `yaml:"tenants"`
}

// LoadTenants reads and validates a YAML tenants file.
func LoadTenants(path string) ([]Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read tenants file: %w", err)
	}
	return ParseTenants(data)
}

func ParseTenants(data []byte) ([]Service, error) {
	var file TenantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("could not decode tenants file: %w", err)
	}

	if len(file.Tenants) == 0 {
		return nil, errors.New("tenants file lists no tenants")
	}

	seen := make(map[string]bool, len(file.Tenants))
	for _, tenant := range file.Tenants {
		if tenant.Name == "" {
			return nil, errors.New("tenant without a name")
		}
		if seen[tenant.Name] {
			return nil, fmt.Errorf("tenant %q is listed twice", tenant.Name)
		}
		seen[tenant.Name] = true

		if err := tenant.Validate(); err != nil {
			return nil, err
		}
	}

	return file.Tenants, nil
}

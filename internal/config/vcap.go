package config

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/leonardo-iot/iot-sdk-go/internal/auth"
)

const (
	iotServiceTag = "leonardoiot"
	xsuaaTag      = "xsuaa"
)

// ServiceInstance is one entry of VCAP_SERVICES.
type ServiceInstance struct {
	Name        string          `json:"name"`
	Label       string          `json:"label"`
	Tags        []string        `json:"tags"`
	Credentials json.RawMessage `json:"credentials"`
}

// VCAPServices is the VCAP_SERVICES document, keyed by service label.
type VCAPServices map[string][]ServiceInstance

// iotCredentials is the credentials block of a bound IoT service instance.
type iotCredentials struct {
	UAA       auth.Credentials  `json:"uaa"`
	Endpoints map[string]string `json:"endpoints"`
}

// defaultEnv is the layout of a local default-env.json file.
type defaultEnv struct {
	VCAPServices VCAPServices `json:"VCAP_SERVICES"`
}

func ParseVCAPServices(data []byte) (VCAPServices, error) {
	var services VCAPServices
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, fmt.Errorf("could not decode VCAP_SERVICES: %w", err)
	}
	return services, nil
}

func parseDefaultEnv(data []byte) (VCAPServices, error) {
	var env defaultEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("could not decode default environment file: %w", err)
	}
	return env.VCAPServices, nil
}

// ByName returns the instance with the given name.
func (v VCAPServices) ByName(name string) (ServiceInstance, bool) {
	for _, instances := range v {
		for _, instance := range instances {
			if instance.Name == name {
				return instance, true
			}
		}
	}
	return ServiceInstance{}, false
}

// ByTag returns the first instance carrying tag. Labels are visited in sorted
// order so the result is stable.
func (v VCAPServices) ByTag(tag string) (ServiceInstance, bool) {
	labels := make([]string, 0, len(v))
	for label := range v {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	for _, label := range labels {
		for _, instance := range v[label] {
			if slices.Contains(instance.Tags, tag) {
				return instance, true
			}
		}
	}
	return ServiceInstance{}, false
}

// IoTService finds the IoT service instance, by name when one is given and
// by tag otherwise or when no instance has that name.
func (v VCAPServices) IoTService(name string) (Service, bool, error) {
	instance, found := ServiceInstance{}, false
	if name != "" {
		instance, found = v.ByName(name)
	}
	if !found {
		instance, found = v.ByTag(iotServiceTag)
	}
	if !found {
		return Service{}, false, nil
	}

	var creds iotCredentials
	if err := json.Unmarshal(instance.Credentials, &creds); err != nil {
		return Service{}, true, fmt.Errorf("could not decode credentials of service %s: %w", instance.Name, err)
	}

	return Service{
		Name:      instance.Name,
		UAA:       creds.UAA,
		Endpoints: creds.Endpoints,
	}, true, nil
}

// XSUAA finds the credentials of the first instance tagged "xsuaa".
func (v VCAPServices) XSUAA() (*auth.Credentials, error) {
	instance, found := v.ByTag(xsuaaTag)
	if !found {
		return nil, nil
	}

	var creds auth.Credentials
	if err := json.Unmarshal(instance.Credentials, &creds); err != nil {
		return nil, fmt.Errorf("could not decode credentials of service %s: %w", instance.Name, err)
	}
	return &creds, nil
}

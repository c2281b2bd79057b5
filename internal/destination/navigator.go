// Package destination resolves the logical names of platform services to
// their base URLs.
package destination

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	Authorization   = "authorization"
	BusinessPartner = "business-partner"
	ConfigPackage   = "config-package-sap"
	ConfigThing     = "config-thing-sap"
	AppiotMDS       = "appiot-mds"
	TMDataMapping   = "tm-data-mapping"
	AppiotColdstore = "appiot-coldstore"
)

// ErrUnknownDestination is returned for a service name with no configured
// endpoint.
var ErrUnknownDestination = errors.New("unknown destination")

// Navigator maps service names to base URLs, as listed in the endpoints of a
// service binding.
type Navigator struct {
	destinations map[string]string
}

func New(endpoints map[string]string) (*Navigator, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("no service endpoints configured")
	}

	destinations := make(map[string]string, len(endpoints))
	for name, u := range endpoints {
		destinations[name] = strings.TrimRight(u, "/")
	}

	return &Navigator{destinations: destinations}, nil
}

// Destination returns the base URL of the named service.
func (n *Navigator) Destination(name string) (string, error) {
	u, ok := n.destinations[name]
	if !ok || u == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownDestination, name)
	}
	return u, nil
}

// Names lists the configured services in sorted order.
func (n *Navigator) Names() []string {
	return slices.Sorted(maps.Keys(n.destinations))
}

func (n *Navigator) Authorization() (string, error) {
	return n.Destination(Authorization)
}

func (n *Navigator) BusinessPartner() (string, error) {
	return n.Destination(BusinessPartner)
}

func (n *Navigator) ConfigPackage() (string, error) {
	return n.Destination(ConfigPackage)
}

func (n *Navigator) ConfigThing() (string, error) {
	return n.Destination(ConfigThing)
}

func (n *Navigator) AppiotMDS() (string, error) {
	return n.Destination(AppiotMDS)
}

func (n *Navigator) TMDataMapping() (string, error) {
	return n.Destination(TMDataMapping)
}

func (n *Navigator) AppiotColdstore() (string, error) {
	return n.Destination(AppiotColdstore)
}

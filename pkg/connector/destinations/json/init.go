package json

import (
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/registry"
)

// ConnectorName is the registry name of the destination
const ConnectorName = "json"

func init() {
	registry.RegisterDestination(ConnectorName, func(cfg *config.BaseConfig) (core.Destination, error) {
		return NewJSONDestination(cfg)
	})
}

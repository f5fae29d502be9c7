package facebookmarketing

import (
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/core"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/registry"
)

// ConnectorName is the registry name of the source
const ConnectorName = "facebook_marketing"

func init() {
	registry.RegisterSource(ConnectorName, func(cfg *config.BaseConfig) (core.Source, error) {
		return NewSource(ConnectorName, cfg)
	})
}

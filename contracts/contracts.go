// Package contracts embeds the OpenAPI description of the HTTP API.
package contracts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed cms.yaml
var cmsYAML []byte

// Name is the public documentation name of the embedded contract.
const Name = "cms"

// Load parses and validates the embedded contract. Each call returns a fresh document.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	spec, err := loader.LoadFromData(cmsYAML)
	if err != nil {
		return nil, fmt.Errorf("load %s contract: %w", Name, err)
	}
	if err := spec.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate %s contract: %w", Name, err)
	}
	return spec, nil
}

// Raw returns the contract as authored.
func Raw() []byte {
	return cmsYAML
}

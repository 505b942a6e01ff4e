// Package api holds the OpenAPI document of the JSON endpoints.
package api

import _ "embed"

// OpenAPISpec is the OpenAPI 3 document in YAML.
//
//go:embed openapi.yaml
var OpenAPISpec []byte

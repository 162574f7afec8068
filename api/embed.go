// Package api embeds the management API description.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte

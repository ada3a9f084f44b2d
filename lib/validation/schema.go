package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ConfigSchema is the JSON schema a decoded configuration document must
// satisfy before it is turned into typed configuration.
var ConfigSchema = `{
	"type": "object",
	"properties": {
		"default_source": {"type": "string", "minLength": 1},
		"cache_ttl": {
			"type": ["string", "integer"],
			"pattern": "^(0|([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+)$"
		},
		"data": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {"$ref": "#/definitions/source"}
		}
	},
	"required": ["data"],
	"additionalProperties": false,
	"definitions": {
		"source": {
			"type": "object",
			"properties": {
				"type": {"type": "string", "enum": ["csv", "xlsx", "sqlite", "duckdb"]},
				"path": {"type": "string", "minLength": 1},
				"sheet": {"type": "string", "minLength": 1},
				"table": {"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$"},
				"query": {"type": "string", "minLength": 1},
				"delimiter": {"type": "string", "minLength": 1, "maxLength": 1}
			},
			"required": ["type"],
			"additionalProperties": false
		}
	}
}`

// ValidateConfigDocument validates a decoded configuration document
// (maps, slices and scalars) against ConfigSchema.
func ValidateConfigDocument(doc any) error {
	schemaLoader := gojsonschema.NewStringLoader(ConfigSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config schema: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("config validation failed: %s", strings.Join(errorMessages, "; "))
	}

	return nil
}

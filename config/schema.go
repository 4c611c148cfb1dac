package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jowharshamshiri/Janus/errors"
)

// configSchema is the JSON Schema every configuration document must
// satisfy before typed decoding. It catches shape errors (wrong types,
// missing required fields) with messages that point at the offending key.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["implementations"],
  "properties": {
    "socket_dir": {"type": "string", "minLength": 1},
    "ready_timeout_seconds": {"type": "number", "exclusiveMinimum": 0},
    "request_timeout_seconds": {"type": "number", "exclusiveMinimum": 0},
    "stop_grace_seconds": {"type": "number", "exclusiveMinimum": 0},
    "build_timeout_seconds": {"type": "number", "exclusiveMinimum": 0},
    "success_threshold": {"type": "number", "minimum": 0, "maximum": 100},
    "workers": {"type": "integer", "minimum": 0},
    "implementations": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["listen_command", "socket_path"],
        "properties": {
          "language": {"type": "string"},
          "directory": {"type": "string"},
          "build_command": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "listen_command": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "send_command": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "socket_path": {"type": "string", "minLength": 1}
        }
      }
    }
  },
  "additionalProperties": false
}`

// validateSchema checks the generic document against the embedded schema.
func validateSchema(document map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return errors.WrapFatal(err, "Config", "validateSchema", "run schema validation")
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; "))
}

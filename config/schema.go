package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/shopstream/errors"
)

// documentSchema constrains the raw configuration file before it is
// unmarshalled. json.Unmarshal silently ignores unknown fields, so a typo
// like "listn_addr" would otherwise fall back to the default without any
// indication. Duration fields accept a Go duration string or nanoseconds.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "gateway": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "listen_addr": {"type": "string"},
        "max_request_size": {"type": "integer", "minimum": 0},
        "call_timeout": {"$ref": "#/definitions/duration"},
        "read_timeout": {"$ref": "#/definitions/duration"},
        "write_timeout": {"$ref": "#/definitions/duration"},
        "shutdown_timeout": {"$ref": "#/definitions/duration"},
        "tls": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"},
            "cert_file": {"type": "string"},
            "key_file": {"type": "string"},
            "min_version": {"type": "string", "enum": ["1.2", "1.3"]}
          }
        }
      }
    },
    "broker": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "url": {"type": "string", "minLength": 1},
        "connect_attempts": {"type": "integer", "minimum": 1},
        "connect_backoff": {"$ref": "#/definitions/duration"},
        "max_reconnects": {"type": "integer", "minimum": -1},
        "reconnect_wait": {"$ref": "#/definitions/duration"},
        "username": {"type": "string"},
        "password": {"type": "string"},
        "token": {"type": "string"},
        "tls": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "enabled": {"type": "boolean"},
            "cert_file": {"type": "string"},
            "key_file": {"type": "string"},
            "ca_file": {"type": "string"},
            "insecure_skip_verify": {"type": "boolean"},
            "min_version": {"type": "string", "enum": ["1.2", "1.3"]}
          }
        },
        "subjects": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "stream": {"type": "string", "minLength": 1},
            "user_requests": {"type": "string", "minLength": 1},
            "item_requests": {"type": "string", "minLength": 1},
            "item_updates": {"type": "string", "minLength": 1}
          }
        }
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "format": {"type": "string", "enum": ["text", "json"]}
      }
    }
  },
  "definitions": {
    "duration": {
      "anyOf": [
        {"type": "string", "minLength": 2},
        {"type": "integer", "minimum": 0}
      ]
    }
  }
}`

// validateDocument checks the raw config file against the document schema
// and reports every violation at once.
func validateDocument(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Load", "validate config document")
	}
	if result.Valid() {
		return nil
	}

	var b strings.Builder
	b.WriteString("config file does not match schema:")
	for _, desc := range result.Errors() {
		fmt.Fprintf(&b, "\n  - %s: %s", desc.Field(), desc.Description())
	}
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Load", b.String())
}

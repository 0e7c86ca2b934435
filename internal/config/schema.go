package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "log_level": {
      "type": "string",
      "enum": ["trace", "debug", "info", "warn", "warning", "error", "fatal"]
    },
    "strict_deletions": {"type": "boolean"},
    "s3": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "region": {"type": "string"},
        "profile": {"type": "string"},
        "endpoint": {"type": "string"},
        "path_style": {"type": "boolean"}
      }
    }
  }
}`

var (
	schemaLoader     gojsonschema.JSONLoader
	schemaLoaderOnce sync.Once
)

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Issues []string
}

func (e ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "configuration failed schema validation"
	}
	return "invalid configuration: " + strings.Join(e.Issues, "; ")
}

func validate(doc map[string]any) error {
	schemaLoaderOnce.Do(func() {
		schemaLoader = gojsonschema.NewStringLoader(schemaJSON)
	})

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return ValidationError{Issues: issues}
}

package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "kgest://schemas/triplets.json"

const tripletSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["triplets"],
  "properties": {
    "triplets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["subject", "predicate", "object"],
        "properties": {
          "subject": {"type": "string"},
          "predicate": {"type": "string"},
          "object": {"type": "string"}
        }
      }
    }
  }
}`

// ErrSchema is wrapped by every reply that fails schema validation.
var ErrSchema = errors.New("reply does not match triplet schema")

var replySchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	var doc interface{}
	if err := json.Unmarshal([]byte(tripletSchema), &doc); err != nil {
		panic(fmt.Sprintf("triplet schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		panic(fmt.Sprintf("triplet schema: %v", err))
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("triplet schema: %v", err))
	}
	return schema
}

// validateReply checks a decoded reply against the triplet schema.
func validateReply(doc any) error {
	err := replySchema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("%w: %s", ErrSchema, strings.Join(schemaMessages(verr), "; "))
	}
	return fmt.Errorf("%w: %v", ErrSchema, err)
}

// schemaMessages flattens the leaf causes of a validation error.
func schemaMessages(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		path := "$"
		if len(verr.InstanceLocation) > 0 {
			path = "$." + strings.Join(verr.InstanceLocation, ".")
		}
		return []string{path + ": " + verr.Error()}
	}
	var out []string
	for _, c := range verr.Causes {
		out = append(out, schemaMessages(c)...)
	}
	return out
}

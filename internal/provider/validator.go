package provider

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// schemaResourceURL is an arbitrary, never-dereferenced identifier
// jsonschema.Compiler requires to key its in-memory resource map; the
// request's schema is added under this URL once per validation call.
const schemaResourceURL = "zeptoclaw://output-schema"

// validateOutputFormat is the C5 "Validator helper": when the caller
// requested OutputJSONSchema, the response content is parsed as JSON and
// checked against format.Schema before the result reaches the agent
// loop. A response missing a required top-level key, or one that isn't
// valid JSON at all, becomes a ProviderTerminal error rather than being
// handed to the caller as if it were well-formed.
//
// Text and plain JSON output formats (OutputText, OutputJSON) carry no
// schema to check against and are left alone.
func validateOutputFormat(content string, format models.OutputFormat) error {
	if format.Kind != models.OutputJSONSchema || len(format.Schema) == 0 {
		return nil
	}

	schemaBytes, err := json.Marshal(format.Schema)
	if err != nil {
		return zerrors.Wrap(zerrors.Config, "output schema is not serializable", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResourceURL, bytes.NewReader(schemaBytes)); err != nil {
		return zerrors.Wrap(zerrors.Config, "output schema is invalid", err)
	}
	schema, err := compiler.Compile(schemaResourceURL)
	if err != nil {
		return zerrors.Wrap(zerrors.Config, "output schema failed to compile", err)
	}

	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return zerrors.Wrap(zerrors.ProviderTerminal, "provider response is not valid JSON", err)
	}

	if err := schema.Validate(doc); err != nil {
		return zerrors.Wrap(zerrors.ProviderTerminal, fmt.Sprintf("provider response does not match the %q schema", format.Name), err)
	}
	return nil
}

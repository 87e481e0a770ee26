package provider

import (
	"testing"

	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

func schemaFormat(schema map[string]any) models.OutputFormat {
	return models.OutputFormat{Kind: models.OutputJSONSchema, Name: "report", Schema: schema}
}

func TestValidateOutputFormatIgnoresTextAndJSON(t *testing.T) {
	if err := validateOutputFormat("not json at all", models.OutputFormat{Kind: models.OutputText}); err != nil {
		t.Fatalf("text output should skip validation: %v", err)
	}
	if err := validateOutputFormat("not json at all", models.OutputFormat{Kind: models.OutputJSON}); err != nil {
		t.Fatalf("plain json output with no schema should skip validation: %v", err)
	}
}

func TestValidateOutputFormatAcceptsMatchingResponse(t *testing.T) {
	format := schemaFormat(map[string]any{
		"type":     "object",
		"required": []any{"summary"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
		},
	})
	if err := validateOutputFormat(`{"summary": "all good"}`, format); err != nil {
		t.Fatalf("expected a matching response to validate, got %v", err)
	}
}

func TestValidateOutputFormatRejectsMissingRequiredKey(t *testing.T) {
	format := schemaFormat(map[string]any{
		"type":     "object",
		"required": []any{"summary"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
		},
	})
	err := validateOutputFormat(`{"other": "value"}`, format)
	if zerrors.KindOf(err) != zerrors.ProviderTerminal {
		t.Fatalf("expected ProviderTerminal for a response missing a required key, got %v", err)
	}
}

func TestValidateOutputFormatRejectsMalformedJSON(t *testing.T) {
	format := schemaFormat(map[string]any{"type": "object"})
	err := validateOutputFormat("{not json", format)
	if zerrors.KindOf(err) != zerrors.ProviderTerminal {
		t.Fatalf("expected ProviderTerminal for malformed JSON, got %v", err)
	}
}

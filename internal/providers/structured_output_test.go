package providers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseStructuredJSON_StripsCodeFence(t *testing.T) {
	content := "```json\n{\"ok\":true}\n```"
	got, err := ParseStructuredJSON(content)
	if err != nil {
		t.Fatalf("ParseStructuredJSON() error = %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(got, &parsed); err != nil {
		t.Fatalf("failed to unmarshal parsed JSON: %v", err)
	}
	if ok, _ := parsed["ok"].(bool); !ok {
		t.Fatalf("expected ok=true, got %#v", parsed)
	}
}

func TestParseStructuredJSON_ExtractsFromProse(t *testing.T) {
	got, err := ParseStructuredJSON("Here is the outline: {\"sections\":[1,2]} hope it helps")
	if err != nil {
		t.Fatalf("ParseStructuredJSON() error = %v", err)
	}
	if string(got) != `{"sections":[1,2]}` {
		t.Errorf("got %s", got)
	}
}

func TestParseStructuredJSON_Empty(t *testing.T) {
	if _, err := ParseStructuredJSON("   "); err == nil {
		t.Fatal("expected error for empty output")
	}
	if _, err := ParseStructuredJSON("no json here"); err == nil {
		t.Fatal("expected error for prose")
	}
}

func TestValidateJSON(t *testing.T) {
	schema := json.RawMessage(`{
		"type":"object",
		"properties":{"title":{"type":"string"}},
		"required":["title"]
	}`)

	if err := ValidateJSON(schema, json.RawMessage(`{"title":"x"}`)); err != nil {
		t.Errorf("valid doc rejected: %v", err)
	}
	if err := ValidateJSON(schema, json.RawMessage(`{"name":"x"}`)); err == nil {
		t.Error("missing required field accepted")
	}
}

func TestValidateJSON_UnwrapsResponseFormat(t *testing.T) {
	schema := json.RawMessage(`{"name":"outline","strict":true,"schema":{"type":"array"}}`)
	if err := ValidateJSON(schema, json.RawMessage(`{}`)); err == nil {
		t.Error("object accepted by array schema")
	}
}

func TestRepairPrompt(t *testing.T) {
	p := RepairPrompt(json.RawMessage(`{"type":"object"}`), strings.Repeat("x", 13000), errors.New("bad"))
	if !strings.Contains(p, "[truncated]") || !strings.Contains(p, "bad") {
		t.Errorf("RepairPrompt() missing parts: %.200s", p)
	}
}

package mcpclient

import (
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/promptline/elicitbridge/bridge"
)

func TestElicitRequestFormKind(t *testing.T) {
	t.Parallel()

	req := elicitRequest(&mcp.ElicitParams{
		Message: "Please provide ticket details.",
		RequestedSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"reporter_name": {Type: "string"},
			},
		},
	})

	if req.Kind != bridge.ElicitKindForm {
		t.Fatalf("expected form kind, got %s", req.Kind)
	}
	if req.Payload["message"] != "Please provide ticket details." {
		t.Fatalf("payload message missing: %+v", req.Payload)
	}
	schema, ok := req.Payload["requestedSchema"].(map[string]any)
	if !ok {
		t.Fatalf("requestedSchema should round-trip to a map: %+v", req.Payload)
	}
	if schema["type"] != "object" {
		t.Fatalf("schema lost its type: %+v", schema)
	}
}

func TestElicitRequestURLKindFromMeta(t *testing.T) {
	t.Parallel()

	req := elicitRequest(&mcp.ElicitParams{
		Message: "Please authenticate.",
		Meta: mcp.Meta{
			"elicitation_type": "url",
			"url":              "http://localhost:8002/auth?state=abc",
			"state":            "abc",
		},
	})

	if req.Kind != bridge.ElicitKindURL {
		t.Fatalf("expected url kind, got %s", req.Kind)
	}
	if req.Payload["url"] != "http://localhost:8002/auth?state=abc" {
		t.Fatalf("payload url missing: %+v", req.Payload)
	}
	if req.Payload["state"] != "abc" {
		t.Fatalf("payload state missing: %+v", req.Payload)
	}
	if _, ok := req.Payload["requestedSchema"]; ok {
		t.Fatalf("url elicitation should not carry a schema: %+v", req.Payload)
	}
}

func TestElicitRequestDefaultsToFormWithoutSchema(t *testing.T) {
	t.Parallel()

	req := elicitRequest(&mcp.ElicitParams{Message: "anything to add?"})
	if req.Kind != bridge.ElicitKindForm {
		t.Fatalf("expected form kind, got %s", req.Kind)
	}
	if _, ok := req.Payload["requestedSchema"]; ok {
		t.Fatalf("no schema was requested: %+v", req.Payload)
	}
}

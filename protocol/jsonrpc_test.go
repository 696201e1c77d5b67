package protocol

import (
	"encoding/json"
	"testing"
)

func TestIsNotification(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"jsonrpc":"2.0","method":"notifications/initialized"}`, true},
		{`{"jsonrpc":"2.0","id":1,"method":"initialize"}`, false},
		{`{"jsonrpc":"2.0","id":"x","method":"tools/list"}`, false},
		{`{"jsonrpc":"2.0","id":1,"result":{}}`, false},
	}
	for _, tt := range tests {
		var msg Message
		if err := json.Unmarshal([]byte(tt.raw), &msg); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.raw, err)
		}
		if got := msg.IsNotification(); got != tt.want {
			t.Errorf("IsNotification(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestResponseCarriesExactlyOneOfResultError(t *testing.T) {
	id := json.RawMessage(`5`)

	resp, err := json.Marshal(NewResponse(&id, map[string]any{"ok": true}))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]json.RawMessage
	_ = json.Unmarshal(resp, &decoded)
	if _, ok := decoded["result"]; !ok {
		t.Error("response missing result")
	}
	if _, ok := decoded["error"]; ok {
		t.Error("success response carries error")
	}

	errResp, err := json.Marshal(NewError(&id, ErrMethodNotFound, "Method not found: x"))
	if err != nil {
		t.Fatal(err)
	}
	decoded = map[string]json.RawMessage{}
	_ = json.Unmarshal(errResp, &decoded)
	if _, ok := decoded["error"]; !ok {
		t.Error("error response missing error")
	}
	if _, ok := decoded["result"]; ok {
		t.Error("error response carries result")
	}
	if string(decoded["id"]) != "5" {
		t.Errorf("id = %s", decoded["id"])
	}
}

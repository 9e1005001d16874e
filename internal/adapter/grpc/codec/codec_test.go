package codec

import (
	"encoding/json"
	"testing"

	"google.golang.org/grpc/encoding"
)

func TestJSONRegistered(t *testing.T) {
	c := encoding.GetCodec(Name)
	if c == nil {
		t.Fatal("expected json codec to be registered")
	}

	data, err := c.Marshal(map[string]string{"month": "2025-12"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out map[string]string
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["month"] != "2025-12" {
		t.Fatalf("unexpected round trip: %v", out)
	}
}

func TestJSONPassesRawMessage(t *testing.T) {
	data, err := JSON{}.Marshal(json.RawMessage(`{"id":"s-1"}`))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"id":"s-1"}` {
		t.Fatalf("expected raw bytes, got %s", data)
	}
}

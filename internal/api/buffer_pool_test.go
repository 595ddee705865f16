package api

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeBody(t *testing.T) {
	req := ChatCompletionRequest{Model: "m", Stream: true}
	body, release, err := encodeBody(req)
	if err != nil {
		t.Fatalf("encodeBody() error = %v", err)
	}
	var got ChatCompletionRequest
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.Model != "m" || !got.Stream {
		t.Errorf("decoded = %+v", got)
	}
	release()
}

func TestEncodeBody_LargeBufferNotPooled(t *testing.T) {
	big := strings.Repeat("x", 2*maxPooledBody)
	_, release, err := encodeBody(map[string]string{"data": big})
	if err != nil {
		t.Fatal(err)
	}
	release()

	// the pool still hands out buffers after an oversized one was dropped
	_, release, err = encodeBody(map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	release()
}

func TestEncodeBody_Error(t *testing.T) {
	_, release, err := encodeBody(map[string]any{"bad": make(chan int)})
	if err == nil {
		t.Fatal("encodeBody() error = nil, want unsupported type error")
	}
	release()
}

package api

import (
	"bytes"
	"encoding/json"
	"sync"
)

// Every slot of a submit encodes its own request body, so bodies are built in
// pooled buffers. Bodies with inline attachments can reach several MB; those
// buffers are dropped instead of pinned in the pool.
const maxPooledBody = 256 << 10

var requestBodies = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// encodeBody JSON-encodes v into a pooled buffer. The returned bytes are only
// valid until release is called.
func encodeBody(v any) ([]byte, func(), error) {
	buf := requestBodies.Get().(*bytes.Buffer)
	buf.Reset()
	release := func() {
		if buf.Cap() <= maxPooledBody {
			requestBodies.Put(buf)
		}
	}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		release()
		return nil, func() {}, err
	}
	return buf.Bytes(), release, nil
}

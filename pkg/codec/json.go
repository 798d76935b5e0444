package codec

import (
	"encoding/json"

	"github.com/jdziat/pagetrack-go/pkg/event"
)

// JSON is the default wire codec.
type JSON struct{}

// Name implements Codec.
func (JSON) Name() string { return "json" }

// ContentType implements Codec.
func (JSON) ContentType() string { return "application/json" }

// Encode implements Codec.
func (JSON) Encode(b event.Batch) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, encodeError("json", err)
	}
	return data, nil
}

// Decode implements Codec.
func (JSON) Decode(data []byte, b *event.Batch) error {
	return json.Unmarshal(data, b)
}

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/jdziat/pagetrack-go/pkg/event"
)

// encMode uses Core Deterministic Encoding so the same batch always
// produces the same bytes, which keeps the keepalive size check stable.
var encMode cbor.EncMode

// decMode decodes untyped maps as map[string]any so decoded event data
// looks the same as it does after a JSON round trip.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBOR encodes batches as RFC 8949 CBOR.
type CBOR struct{}

// Name implements Codec.
func (CBOR) Name() string { return "cbor" }

// ContentType implements Codec.
func (CBOR) ContentType() string { return "application/cbor" }

// Encode implements Codec.
func (CBOR) Encode(b event.Batch) ([]byte, error) {
	data, err := encMode.Marshal(b)
	if err != nil {
		return nil, encodeError("cbor", err)
	}
	return data, nil
}

// Decode implements Codec.
func (CBOR) Decode(data []byte, b *event.Batch) error {
	return decMode.Unmarshal(data, b)
}

// Diagnose returns the CBOR diagnostic notation of data. The CLI uses it
// to show what a CBOR batch looks like.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

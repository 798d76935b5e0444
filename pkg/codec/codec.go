// Package codec serializes event batches for the wire.
//
// JSON is the default and matches what collection endpoints expect:
//
//	{"t": 1700000000000, "events": [{"timestamp": ..., "event_type": ..., ...}]}
//
// CBOR is available for endpoints that accept application/cbor and want
// smaller bodies under the keepalive limit.
package codec

import (
	"fmt"

	"github.com/jdziat/pagetrack-go/pkg/config"
	pterrors "github.com/jdziat/pagetrack-go/pkg/errors"
	"github.com/jdziat/pagetrack-go/pkg/event"
)

// Codec encodes batches into request bodies.
type Codec interface {
	// Name returns the codec name used in configuration ("json", "cbor").
	Name() string

	// ContentType returns the Content-Type header value for encoded bodies.
	ContentType() string

	// Encode serializes the batch. Errors are *errors.EncodeError.
	Encode(b event.Batch) ([]byte, error)

	// Decode parses a body produced by Encode.
	Decode(data []byte, b *event.Batch) error
}

// ByName returns the codec registered under name. An empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch name {
	case "", config.CodecJSON:
		return JSON{}, nil
	case config.CodecCBOR:
		return CBOR{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", pterrors.ErrInvalidConfig, name)
	}
}

// MustByName is like ByName but panics on an unknown name.
func MustByName(name string) Codec {
	c, err := ByName(name)
	if err != nil {
		panic(err)
	}
	return c
}

func encodeError(codec string, err error) error {
	return &pterrors.EncodeError{Codec: codec, Err: err}
}

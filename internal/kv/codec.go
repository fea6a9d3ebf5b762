package kv

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Serialize encodes a cache value using CBOR.
func Serialize(src any) ([]byte, error) {
	var buf bytes.Buffer
	enc := cbor.NewEncoder(&buf)
	if err := enc.Encode(src); err != nil {
		return nil, fmt.Errorf("cbor: serialize problem %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a cache value using CBOR.
func Deserialize(src []byte, dst any) error {
	dec := cbor.NewDecoder(bytes.NewReader(src))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("cbor: deserialize problem %w", err)
	}
	return nil
}

// Package codec provides the CBOR encoding used for every persisted
// structure in Kestrel (directory nodes, sharing records, root pointers).
//
// Encoding is configured for Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer representation, no indefinite-length
// items. The same logical value therefore always serializes to identical
// bytes, which is what makes content addresses stable and lets callers
// compare records byte-for-byte.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Kestrel only ever uses text map keys. When decoding into an
		// any-typed target the decoder must pick a concrete map type;
		// the CBOR default of map[interface{}]interface{} is awkward for
		// every caller, so force map[string]any instead.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

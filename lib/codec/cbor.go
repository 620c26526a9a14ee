// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	options := cbor.CoreDetEncOptions()
	// time.Time fields (capture and issue timestamps) keep nanosecond
	// precision so latency measurements survive the round trip.
	options.Time = cbor.TimeRFC3339Nano
	encMode, err = options.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// A peer writing a newer payload version must not break an
		// older reader; unknown fields are ignored.
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		// Shared-folder payloads are bounded by the frame budget; this
		// rejects absurd lengths decoded from garbage before allocation.
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 16,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose returns the CBOR diagnostic notation for data. Used by
// debug logging when a payload fails to decode.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

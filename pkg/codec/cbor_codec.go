/*
Copyright 2026 The Atasks Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package codec

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBORCodec is the reference Codec, a reflection-driven binary object-graph
// serializer analogous to the Python reference implementation's native
// pickle-based codec. It is initialized once with the formatter/version
// options described below and bound to exactly one namespace for its
// lifetime.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOROptions mirror the tunables the reference pickle-based codec exposes
// (protocol/encoding knobs), translated to CBOR's encode/decode mode
// options.
type CBOROptions struct {
	// SortMapKeys produces a canonical (deterministic) byte encoding for
	// maps, mirroring a fixed pickle protocol rather than one that varies
	// run to run.
	SortMapKeys bool
	// MaxNestedLevels bounds decode-time recursion depth as a defensive
	// limit against malformed payloads arriving over the broker.
	MaxNestedLevels int
}

// DefaultCBOROptions returns the options CBORCodec uses unless overridden.
func DefaultCBOROptions() CBOROptions {
	return CBOROptions{
		SortMapKeys:     true,
		MaxNestedLevels: 32,
	}
}

// NewCBORCodec builds a CBORCodec from the given options.
func NewCBORCodec(opts CBOROptions) (*CBORCodec, error) {
	encOpts := cbor.CanonicalEncOptions()
	if !opts.SortMapKeys {
		encOpts.Sort = cbor.SortNone
	}
	enc, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("building cbor encode mode: %w", err)
	}

	decOpts := cbor.DecOptions{
		MaxNestedLevels: opts.MaxNestedLevels,
		// IntDec controls what a CBOR integer decodes to when the
		// destination is `any`. The fxamacker/cbor default produces uint64
		// for non-negative integers, so encode(int64(42)) would decode back
		// as uint64(42). ConvertSigned decodes CBOR integers to int64, so
		// decode(encode(v)) == v holds for int64 values. CBOR does not record
		// Go's int/int64 distinction: a plain int comes back as an int64 of
		// the same value.
		IntDec: cbor.IntDecConvertSigned,
	}
	dec, err := decOpts.DecMode()
	if err != nil {
		return nil, fmt.Errorf("building cbor decode mode: %w", err)
	}

	return &CBORCodec{enc: enc, dec: dec}, nil
}

// Encode implements Codec.
func (c *CBORCodec) Encode(_ context.Context, v any) ([]byte, error) {
	data, err := c.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
func (c *CBORCodec) Decode(_ context.Context, data []byte, out any) error {
	if err := c.dec.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cbor decode: %w", err)
	}
	return nil
}

package embedding

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec version for stored embedding blobs. Bump when the envelope
// layout changes; decoders reject versions they don't know.
const codecVersion = 1

// ErrUnknownCodecVersion is returned when a stored blob was written by
// an incompatible codec version.
var ErrUnknownCodecVersion = errors.New("unknown embedding codec version")

// vectorEnvelope is the CBOR envelope for a set of aligned vectors.
type vectorEnvelope struct {
	Version int      `cbor:"version"`
	Vectors []Vector `cbor:"vectors"`
}

// EncodeVectors serializes vectors to a compact CBOR blob suitable for
// persisting next to the question record.
func EncodeVectors(vectors []Vector) ([]byte, error) {
	blob, err := cbor.Marshal(vectorEnvelope{Version: codecVersion, Vectors: vectors})
	if err != nil {
		return nil, fmt.Errorf("embedding: encode vectors: %w", err)
	}
	return blob, nil
}

// DecodeVectors deserializes a blob produced by EncodeVectors.
func DecodeVectors(blob []byte) ([]Vector, error) {
	var env vectorEnvelope
	if err := cbor.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("embedding: decode vectors: %w", err)
	}
	if env.Version != codecVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodecVersion, env.Version)
	}
	return env.Vectors, nil
}

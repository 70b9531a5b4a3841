// Package envelope decodes and encodes transaction envelopes at the wire
// boundary. All input is treated as adversarial: anything that fails to parse
// surfaces as ErrMalformed, never as a partial decode.
package envelope

import (
	"errors"
	"fmt"

	"github.com/stellar/go/xdr"
)

// ErrMalformed marks input that cannot be decoded into a supported envelope.
var ErrMalformed = errors.New("malformed transaction envelope")

// Decode parses a base64-encoded envelope. v0 and v1 transaction envelopes
// are accepted; fee-bump envelopes are refused because the gateway brackets
// inner operations and must not re-wrap someone else's fee bump.
func Decode(txBase64 string) (xdr.TransactionEnvelope, error) {
	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(txBase64, &env); err != nil {
		return xdr.TransactionEnvelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return checked(env)
}

// DecodeBytes parses a raw binary envelope.
func DecodeBytes(raw []byte) (xdr.TransactionEnvelope, error) {
	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshal(raw, &env); err != nil {
		return xdr.TransactionEnvelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return checked(env)
}

func checked(env xdr.TransactionEnvelope) (xdr.TransactionEnvelope, error) {
	switch env.Type {
	case xdr.EnvelopeTypeEnvelopeTypeTx, xdr.EnvelopeTypeEnvelopeTypeTxV0:
		return env, nil
	default:
		return xdr.TransactionEnvelope{}, fmt.Errorf("%w: unsupported envelope type %d", ErrMalformed, env.Type)
	}
}

// Encode renders an envelope back to base64. Total inverse of Decode for any
// envelope this codec produced.
func Encode(env xdr.TransactionEnvelope) (string, error) {
	return xdr.MarshalBase64(env)
}

// SourceAddress returns the transaction-level source as a plain account
// address, with any multiplexing stripped.
func SourceAddress(env xdr.TransactionEnvelope) string {
	source := env.SourceAccount()
	return source.ToAccountId().Address()
}

// Operations exposes the decoded operation sequence. Callers copy operations
// by value into new transactions; fields survive bit-exactly, including
// variants this gateway does not interpret.
func Operations(env xdr.TransactionEnvelope) []xdr.Operation {
	return env.Operations()
}

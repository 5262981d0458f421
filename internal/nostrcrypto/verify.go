// Package nostrcrypto delegates Nostr event signature verification to a
// cryptographic library, per spec §6: callers only need a narrow
// Verify(pubkeyHex, id, sigHex) interface, never the underlying curve
// arithmetic.
package nostrcrypto

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Verifier verifies Schnorr signatures over secp256k1 (BIP-340), as used by
// every Nostr event.
type Verifier struct{}

// NewVerifier returns the default, stateless Verifier.
func NewVerifier() *Verifier { return &Verifier{} }

// Verify reports whether sigHex is a valid BIP-340 signature of idHex under
// pubkeyHex. All three arguments are lowercase hex strings as they appear
// on the wire.
func (Verifier) Verify(pubkeyHex, idHex, sigHex string) (bool, error) {
	pubBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	idBytes, err := hex.DecodeString(idHex)
	if err != nil {
		return false, fmt.Errorf("invalid id hex: %w", err)
	}
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid sig hex: %w", err)
	}
	if len(idBytes) != 32 {
		return false, fmt.Errorf("id must be 32 bytes, got %d", len(idBytes))
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return false, fmt.Errorf("invalid pubkey: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return sig.Verify(idBytes, pub), nil
}

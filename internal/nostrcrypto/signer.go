package nostrcrypto

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// EphemeralSigner is a throwaway keypair generated at process start, used
// only by the self-advertisement monitor task (§11.6) to sign its own
// events — it has no bearing on client authentication or authorization.
type EphemeralSigner struct {
	priv *btcec.PrivateKey
	pub  string
}

// NewEphemeralSigner generates a fresh secp256k1 keypair.
func NewEphemeralSigner() (*EphemeralSigner, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	pub := schnorr.SerializePubKey(priv.PubKey())
	return &EphemeralSigner{priv: priv, pub: hex.EncodeToString(pub)}, nil
}

// Pubkey returns the signer's lowercase hex BIP-340 public key.
func (s *EphemeralSigner) Pubkey() string { return s.pub }

// Sign produces a lowercase hex BIP-340 signature over a 32-byte message.
func (s *EphemeralSigner) Sign(idBytes []byte) (string, error) {
	if len(idBytes) != 32 {
		return "", fmt.Errorf("message must be 32 bytes, got %d", len(idBytes))
	}
	sig, err := schnorr.Sign(s.priv, idBytes)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

package wsapi

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostrelay/relay/internal/nostr"
	"github.com/nostrelay/relay/internal/nostrcrypto"
)

const relayURL = "wss://relay.example.com"

func signedAuthEvent(t *testing.T, signer *nostrcrypto.EphemeralSigner, challenge, relay string, createdAt int64) *nostr.Event {
	t.Helper()
	ev := &nostr.Event{
		Pubkey:    signer.Pubkey(),
		CreatedAt: createdAt,
		Kind:      kindClientAuthentication,
		Tags: nostr.Tags{
			{"relay", relay},
			{"challenge", challenge},
		},
	}
	id, err := ev.ComputeID()
	require.NoError(t, err)
	ev.ID = id
	idBytes, err := hex.DecodeString(id)
	require.NoError(t, err)
	sig, err := signer.Sign(idBytes)
	require.NoError(t, err)
	ev.Sig = sig
	return ev
}

func TestGenerateChallengeIsLongEnoughAndVaries(t *testing.T) {
	a := GenerateChallenge()
	b := GenerateChallenge()
	assert.GreaterOrEqual(t, len(a), 16)
	assert.NotEqual(t, a, b)
}

func TestValidateAuthAcceptsWellFormedResponse(t *testing.T) {
	signer, err := nostrcrypto.NewEphemeralSigner()
	require.NoError(t, err)
	v := nostrcrypto.NewVerifier()

	ev := signedAuthEvent(t, signer, "chal-1", relayURL, time.Now().Unix())
	err = ValidateAuth(ev, "chal-1", relayURL, v)
	assert.NoError(t, err)
}

func TestValidateAuthRejectsWrongChallenge(t *testing.T) {
	signer, err := nostrcrypto.NewEphemeralSigner()
	require.NoError(t, err)
	v := nostrcrypto.NewVerifier()

	ev := signedAuthEvent(t, signer, "chal-1", relayURL, time.Now().Unix())
	err = ValidateAuth(ev, "x", relayURL, v)
	assert.Error(t, err)
}

func TestValidateAuthRejectsWrongRelay(t *testing.T) {
	signer, err := nostrcrypto.NewEphemeralSigner()
	require.NoError(t, err)
	v := nostrcrypto.NewVerifier()

	ev := signedAuthEvent(t, signer, "chal-1", "wss://other.example.com", time.Now().Unix())
	err = ValidateAuth(ev, "chal-1", relayURL, v)
	assert.Error(t, err)
}

func TestValidateAuthRejectsStaleTimestamp(t *testing.T) {
	signer, err := nostrcrypto.NewEphemeralSigner()
	require.NoError(t, err)
	v := nostrcrypto.NewVerifier()

	old := time.Now().Add(-time.Hour).Unix()
	ev := signedAuthEvent(t, signer, "chal-1", relayURL, old)
	err = ValidateAuth(ev, "chal-1", relayURL, v)
	assert.Error(t, err)
}

func TestValidateAuthRejectsWrongKind(t *testing.T) {
	signer, err := nostrcrypto.NewEphemeralSigner()
	require.NoError(t, err)
	v := nostrcrypto.NewVerifier()

	ev := signedAuthEvent(t, signer, "chal-1", relayURL, time.Now().Unix())
	ev.Kind = 1
	err = ValidateAuth(ev, "chal-1", relayURL, v)
	assert.Error(t, err)
}

func TestValidateAuthRejectsTamperedSignature(t *testing.T) {
	signer, err := nostrcrypto.NewEphemeralSigner()
	require.NoError(t, err)
	v := nostrcrypto.NewVerifier()

	ev := signedAuthEvent(t, signer, "chal-1", relayURL, time.Now().Unix())
	ev.Sig = ev.Sig[:len(ev.Sig)-2] + "00"
	err = ValidateAuth(ev, "chal-1", relayURL, v)
	assert.Error(t, err)
}

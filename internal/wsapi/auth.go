package wsapi

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nostrelay/relay/internal/nostr"
	"github.com/nostrelay/relay/internal/nostrcrypto"
)

const kindClientAuthentication = 22242

// GenerateChallenge produces a 16-character base64url challenge from 12
// random bytes, the same construction the reference relay's
// auth.GenerateChallenge uses.
func GenerateChallenge() string {
	raw := make([]byte, 12)
	_, _ = rand.Read(raw)
	return base64.URLEncoding.EncodeToString(raw)
}

// ValidateAuth checks that ev is a well-formed, correctly-signed NIP-42
// kind-22242 response to challenge for relayURL, within a 10-minute
// clock skew window — the same checks the reference relay's
// auth.Validate performs.
func ValidateAuth(ev *nostr.Event, challenge, relayURL string, verifier *nostrcrypto.Verifier) error {
	if ev.Kind != kindClientAuthentication {
		return fmt.Errorf("error: wrong kind for auth event")
	}
	if ev.Tags.GetFirst("challenge").Value() != challenge {
		return fmt.Errorf("error: invalid challenge")
	}
	relayTag := ev.Tags.GetFirst("relay").Value()
	if relayTag == "" {
		return fmt.Errorf("error: relay tag missing from auth event")
	}
	expected, err := parseRelayURL(relayURL)
	if err != nil {
		return fmt.Errorf("error: parse configured relay url: %w", err)
	}
	found, err := parseRelayURL(relayTag)
	if err != nil {
		return fmt.Errorf("error: parse auth event relay tag: %w", err)
	}
	if expected.Scheme != found.Scheme || expected.Host != found.Host || expected.Path != found.Path {
		return fmt.Errorf("error: relay tag does not match this relay")
	}
	now := time.Now()
	evTime := time.Unix(ev.CreatedAt, 0)
	if evTime.After(now.Add(10*time.Minute)) || evTime.Before(now.Add(-10*time.Minute)) {
		return fmt.Errorf("error: auth event timestamp outside 10 minute window")
	}
	ok, err := ev.IDMatches()
	if err != nil || !ok {
		return fmt.Errorf("error: auth event id does not match its content")
	}
	valid, err := verifier.Verify(ev.Pubkey, ev.ID, ev.Sig)
	if err != nil || !valid {
		return fmt.Errorf("error: auth event signature invalid")
	}
	return nil
}

func parseRelayURL(raw string) (*url.URL, error) {
	return url.Parse(strings.ToLower(strings.TrimSuffix(raw, "/")))
}

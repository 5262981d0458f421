// Package monitor is the relay's hourly self-advertisement task (§11.6),
// adapted from the reference implementation's NIP-66 monitor loop
// (original_source/relay-rs/src/main.rs's main function, which spawns a
// 3600-second loop publishing a kind-30166 event). Cross-relay
// replication is a Non-goal, so this task only broadcasts its signed
// event to this relay's own subscribers — it never dials out to other
// relays.
package monitor

import (
	"context"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/nostrelay/relay/internal/broadcast"
	"github.com/nostrelay/relay/internal/logx"
	"github.com/nostrelay/relay/internal/nostr"
	"github.com/nostrelay/relay/internal/nostrcrypto"
)

const (
	interval         = time.Hour
	kindRelayMonitor = 30166
)

// Run signs and broadcasts one relay-advertisement event every hour over
// hub, using a throwaway keypair generated once at process start, until
// ctx is cancelled.
func Run(ctx context.Context, hub *broadcast.Hub, relayURL string) {
	signer, err := nostrcrypto.NewEphemeralSigner()
	if err != nil {
		logx.E.F("monitor: could not generate ephemeral signer: %v", err)
		return
	}
	publish(hub, signer, relayURL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			publish(hub, signer, relayURL)
		case <-ctx.Done():
			return
		}
	}
}

func publish(hub *broadcast.Hub, signer *nostrcrypto.EphemeralSigner, relayURL string) {
	ev := &nostr.Event{
		Pubkey:    signer.Pubkey(),
		CreatedAt: time.Now().Unix(),
		Kind:      kindRelayMonitor,
		Tags: nostr.Tags{
			{"d", relayURL},
			{"rtt-open", strconv.Itoa(0)},
		},
		Content: "",
	}
	id, err := ev.ComputeID()
	if err != nil {
		logx.E.F("monitor: computing event id: %v", err)
		return
	}
	ev.ID = id
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		logx.E.F("monitor: decoding computed event id: %v", err)
		return
	}
	sig, err := signer.Sign(idBytes)
	if err != nil {
		logx.E.F("monitor: signing advertisement event: %v", err)
		return
	}
	ev.Sig = sig
	hub.Publish(ev)
}

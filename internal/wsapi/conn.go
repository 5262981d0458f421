package wsapi

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/nostrelay/relay/internal/broadcast"
	"github.com/nostrelay/relay/internal/ingest"
	"github.com/nostrelay/relay/internal/logx"
	"github.com/nostrelay/relay/internal/nostr"
	"github.com/nostrelay/relay/internal/nostrcrypto"
	"github.com/nostrelay/relay/internal/reconcile"
	"github.com/nostrelay/relay/internal/rpc"
	"github.com/nostrelay/relay/internal/subscription"
)

// EventStore is the subset of the Event Store Gateway the connection
// handler queries directly for historical reads (§4.3).
type EventStore interface {
	QueryEvents(ctx context.Context, f *nostr.Filter) ([]*nostr.Event, error)
}

// Deps bundles every collaborator one connection's handler needs, wired
// once at process bootstrap and shared read-only across all connections.
type Deps struct {
	Store        EventStore
	Reconcile    reconcile.IDLoader
	Ingest       *ingest.Pipeline
	Hub          *broadcast.Hub
	RPC          *rpc.Handler
	Verifier     *nostrcrypto.Verifier
	AuthRequired bool
	RelayURL     string
}

// Conn is the full protocol state machine for one WebSocket connection:
// it owns a Listener, a subscription Registry and a reconciliation
// Manager, none of which need locking since only this connection's
// receive loop ever touches them (§4.1).
type Conn struct {
	deps Deps
	l    *Listener
	subs *subscription.Registry
	neg  *reconcile.Manager

	ctx    context.Context
	cancel context.CancelFunc
}

// Serve upgrades r to a WebSocket connection and runs its full lifecycle
// until the client disconnects or the relay shuts down, mirroring the
// reference relay's socketapi.A.Serve loop.
func Serve(w http.ResponseWriter, r *http.Request, parent context.Context, deps Deps) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.E.F("websocket upgrade failed: %v", err)
		return
	}
	l := NewListener(conn, r, deps.AuthRequired)
	c := &Conn{deps: deps, l: l, subs: subscription.New(), neg: reconcile.New(deps.Reconcile)}
	c.ctx, c.cancel = context.WithCancel(parent)

	go l.drainLoop()
	go c.heartbeat()
	go c.liveDeliveryLoop()

	defer func() {
		c.cancel()
		l.Close()
	}()

	if deps.AuthRequired {
		l.RequestAuth()
	}
	if l.Challenge() == "" {
		challenge := GenerateChallenge()
		l.challenge.Store(&challenge)
	}
	l.Enqueue(nostr.EncodeAuthChallenge(l.Challenge()))

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !isExpectedCloseErr(err) {
				logx.W.F("unexpected close from %s: %v", l.RealRemote(), err)
			}
			return
		}
		c.handleMessage(message)
	}
}

// heartbeat pings the client every 30 seconds (§5), closing the
// connection if a ping ever fails to send.
func (c *Conn) heartbeat() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.l.writeControl(websocket.PingMessage); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// liveDeliveryLoop subscribes to the broadcast hub and forwards every
// event matching the filter set of one of this connection's open
// subscriptions (§4.4).
func (c *Conn) liveDeliveryLoop() {
	ch := c.deps.Hub.Register()
	defer c.deps.Hub.Unregister(ch)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			for _, subID := range c.subs.Match(ev) {
				c.l.Enqueue(nostr.EncodeEvent(subID, ev))
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches one inbound frame by its envelope label, the
// connection handler's central switch (§4.1), mirroring the reference
// relay's HandleMessage/envelopes.Identify pairing.
func (c *Conn) handleMessage(raw []byte) {
	if rpc.IsRPCRequest(raw) {
		c.handleAdminRPC(raw)
		return
	}
	label, err := nostr.Identify(raw)
	if err != nil {
		c.l.Enqueue(nostr.EncodeNotice("Invalid message: malformed message"))
		return
	}
	switch label {
	case nostr.LabelEvent:
		c.handleEvent(raw)
	case nostr.LabelReq:
		c.handleReq(raw)
	case nostr.LabelClose:
		c.handleClose(raw)
	case nostr.LabelAuth:
		c.handleAuth(raw)
	case nostr.LabelNegOpen:
		c.handleNegOpen(raw)
	case nostr.LabelNegMsg:
		c.handleNegMsg(raw)
	case nostr.LabelNegClose:
		c.handleNegClose(raw)
	default:
		c.l.Enqueue(nostr.EncodeNotice(fmt.Sprintf("Invalid message: unsupported envelope %q", label)))
	}
}

func (c *Conn) handleEvent(raw []byte) {
	ev, err := nostr.ParseEvent(raw)
	if err != nil {
		c.l.Enqueue(nostr.EncodeNotice("invalid: malformed EVENT"))
		return
	}
	result := c.deps.Ingest.Ingest(c.ctx, ev)
	if result.Accepted {
		c.l.Enqueue(nostr.EncodeOK(ev.ID, true, result.Message))
		return
	}
	c.l.Enqueue(nostr.EncodeOK(ev.ID, false, result.Message))
}

func (c *Conn) handleReq(raw []byte) {
	subID, filters, err := nostr.ParseReq(raw)
	if err != nil || len(filters) == 0 {
		c.l.Enqueue(nostr.EncodeNotice("error: malformed REQ"))
		return
	}
	for _, f := range filters {
		events, err := c.deps.Store.QueryEvents(c.ctx, f)
		if err != nil {
			c.l.Enqueue(nostr.EncodeNotice("error: query failed"))
			return
		}
		for _, ev := range events {
			if !f.Matches(ev) {
				continue
			}
			c.l.Enqueue(nostr.EncodeEvent(subID, ev))
		}
	}
	c.l.Enqueue(nostr.EncodeEOSE(subID))
	c.subs.Open(subID, filters)
}

func (c *Conn) handleClose(raw []byte) {
	subID, err := nostr.ParseClose(raw)
	if err != nil {
		return
	}
	c.subs.Close(subID)
	c.l.Enqueue(nostr.EncodeClosed(subID, "Subscription closed"))
}

func (c *Conn) handleAuth(raw []byte) {
	ev, err := nostr.ParseAuth(raw)
	if err != nil {
		c.l.Enqueue(nostr.EncodeNotice("invalid: malformed AUTH"))
		return
	}
	if err := ValidateAuth(ev, c.l.Challenge(), c.deps.RelayURL, c.deps.Verifier); err != nil {
		c.l.Enqueue(nostr.EncodeOK(ev.ID, false, err.Error()))
		return
	}
	c.l.SetAuthedPubkey(ev.Pubkey)
	c.l.Enqueue(nostr.EncodeOK(ev.ID, true, ""))
}

// handleAdminRPC dispatches a bare-object NIP-86 admin call, authorized
// against whatever pubkey this connection established in a prior,
// separate AUTH round-trip (empty if none).
func (c *Conn) handleAdminRPC(raw []byte) {
	var req rpc.Request
	if err := unmarshalRPCRequest(raw, &req); err != nil {
		c.l.Enqueue(mustMarshalResponse(rpc.Response{JSONRPC: "2.0", Error: &rpc.ResponseError{Code: -32700, Message: "parse error"}}))
		return
	}
	resp := c.deps.RPC.Handle(c.ctx, c.l.AuthedPubkey(), req)
	c.l.Enqueue(encodeRPCResponse(resp))
}

func (c *Conn) handleNegOpen(raw []byte) {
	msg, err := nostr.ParseNegOpen(raw)
	if err != nil {
		c.l.Enqueue(nostr.EncodeNegErr("", "error: malformed NEG-OPEN"))
		return
	}
	initial, err := c.neg.Open(c.ctx, msg.SubID, msg.Filter)
	if err != nil {
		c.l.Enqueue(nostr.EncodeNegErr(msg.SubID, err.Error()))
		return
	}
	diff, err := c.neg.Message(msg.SubID, mustDecodeHex(msg.Initial))
	if err != nil {
		c.l.Enqueue(nostr.EncodeNegErr(msg.SubID, err.Error()))
		return
	}
	c.l.Enqueue(nostr.EncodeNegMsg(msg.SubID, initial+encodeDiff(diff)))
}

func (c *Conn) handleNegMsg(raw []byte) {
	subID, msgHex, err := nostr.ParseNegMsg(raw)
	if err != nil {
		return
	}
	diff, err := c.neg.Message(subID, mustDecodeHex(msgHex))
	if err != nil {
		c.l.Enqueue(nostr.EncodeNegErr(subID, err.Error()))
		return
	}
	c.l.Enqueue(nostr.EncodeNegMsg(subID, encodeDiff(diff)))
}

func (c *Conn) handleNegClose(raw []byte) {
	subID, err := nostr.ParseNegClose(raw)
	if err != nil {
		return
	}
	c.neg.Close(subID)
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// encodeDiff renders a reconciliation round's have/need ids as one hex
// blob, have ids first, the wire shape this relay's hand-rolled
// reconciliation protocol uses in place of negentropy's range-fingerprint
// encoding (see internal/reconcile).
func encodeDiff(d reconcile.Diff) string {
	var out string
	for _, id := range d.Have {
		out += id
	}
	for _, id := range d.Need {
		out += id
	}
	return out
}

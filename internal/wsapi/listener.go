// Package wsapi is the Connection Handler (§4.1): one goroutine set per
// WebSocket connection multiplexing EVENT ingestion, REQ/CLOSE
// subscriptions, AUTH, NEG-OPEN/MSG/CLOSE reconciliation and admin RPC
// over a single duplex channel, modeled directly on the reference
// relay's ws.Listener + socketapi.A pairing
// (kwsantiago-orly's pkg/protocol/ws/listener.go and
// pkg/protocol/socketapi/socketapi.go).
package wsapi

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/nostrelay/relay/internal/helpers"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1 << 20
	outboundBuffer = 100
)

// Upgrader is the preconfigured WebSocket upgrader: permissive origin
// checking, since relay access control happens at the application layer
// (whitelist + AUTH), not at the transport layer.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Listener wraps one upgraded WebSocket connection with its
// authentication state and a bounded outbound queue, the way the
// reference relay's ws.Listener does — but uses sync/atomic's generic
// Bool/Pointer instead of an internal atomic helper package.
type Listener struct {
	Conn    *websocket.Conn
	Request *http.Request

	writeMu sync.Mutex
	remote  string

	isAuthed      atomic.Bool
	authedPubkey  atomic.Pointer[string]
	challenge     atomic.Pointer[string]
	authRequested atomic.Bool

	outbound chan []byte
	closed   atomic.Bool
}

// NewListener builds a Listener around conn, generating an AUTH challenge
// up front when authRequired is set so it is ready to send immediately.
func NewListener(conn *websocket.Conn, req *http.Request, authRequired bool) *Listener {
	l := &Listener{
		Conn:     conn,
		Request:  req,
		outbound: make(chan []byte, outboundBuffer),
	}
	l.remote = helpers.RemoteFromRequest(req)
	if l.remote == "" {
		l.remote = conn.NetConn().RemoteAddr().String()
	}
	if authRequired {
		c := GenerateChallenge()
		l.challenge.Store(&c)
	}
	return l
}

// RealRemote returns the client's observed remote address.
func (l *Listener) RealRemote() string { return l.remote }

// IsAuthed reports whether the connection has completed NIP-42 AUTH.
func (l *Listener) IsAuthed() bool { return l.isAuthed.Load() }

// AuthedPubkey returns the authenticated pubkey, or "" if none.
func (l *Listener) AuthedPubkey() string {
	if p := l.authedPubkey.Load(); p != nil {
		return *p
	}
	return ""
}

// SetAuthedPubkey marks the connection authenticated as pubkey.
func (l *Listener) SetAuthedPubkey(pubkey string) {
	l.authedPubkey.Store(&pubkey)
	l.isAuthed.Store(true)
}

// Challenge returns the connection's AUTH challenge string.
func (l *Listener) Challenge() string {
	if c := l.challenge.Load(); c != nil {
		return *c
	}
	return ""
}

// AuthRequested reports whether the relay has already asked this
// connection to authenticate.
func (l *Listener) AuthRequested() bool { return l.authRequested.Load() }

// RequestAuth records that the relay has asked this connection to
// authenticate.
func (l *Listener) RequestAuth() { l.authRequested.Store(true) }

// Enqueue offers p to the outbound queue, dropping it if the queue is
// full rather than blocking the caller — a slow client misses messages
// instead of stalling ingestion or broadcast elsewhere (§5).
func (l *Listener) Enqueue(p []byte) {
	if l.closed.Load() {
		return
	}
	select {
	case l.outbound <- p:
	default:
	}
}

// drainLoop writes everything enqueued on l.outbound to the connection
// until it is closed, the send half of the per-connection goroutine
// pair (§4.1, §5).
func (l *Listener) drainLoop() {
	for p := range l.outbound {
		l.writeMu.Lock()
		_ = l.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := l.Conn.WriteMessage(websocket.TextMessage, p)
		l.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// writeControl sends a control frame directly, bypassing the outbound
// queue (used by the heartbeat goroutine for pings).
func (l *Listener) writeControl(messageType int) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.Conn.WriteControl(messageType, nil, time.Now().Add(writeWait))
}

// Close closes the connection and its outbound queue exactly once.
func (l *Listener) Close() {
	if l.closed.CompareAndSwap(false, true) {
		close(l.outbound)
		_ = l.Conn.Close()
	}
}

func isExpectedCloseErr(err error) bool {
	if err == nil {
		return true
	}
	if strings.Contains(err.Error(), "use of closed network connection") {
		return true
	}
	return !websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure,
	)
}

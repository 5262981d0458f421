// Package httpapi is the relay's plain HTTP surface (§4.8): a single GET /
// handler that serves the NIP-11 relay information document when the
// client asks for application/nostr+json, upgrades to WebSocket when the
// client asks for one, and otherwise serves a short welcome message —
// grounded on the reference relay's content-negotiated root handler
// (original_source/relay-rs/src/main.rs's handler function) and its
// HandleRelayInfo document builder (kwsantiago-orly's
// pkg/app/relay/handleRelayinfo.go).
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nostrelay/relay/internal/logx"
	"github.com/nostrelay/relay/internal/wsapi"
)

// RelayInfo is the NIP-11 relay information document.
type RelayInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Pubkey        string `json:"pubkey,omitempty"`
	Contact       string `json:"contact,omitempty"`
	SupportedNIPs []int  `json:"supported_nips"`
	Software      string `json:"software"`
	Version       string `json:"version"`
	Limitation    Limits `json:"limitation"`
}

// Limits is the relevant subset of NIP-11's limitation object.
type Limits struct {
	AuthRequired    bool `json:"auth_required"`
	PaymentRequired bool `json:"payment_required"`
}

// Server serves the relay's root HTTP endpoint.
type Server struct {
	Info   RelayInfo
	WSDeps wsapi.Deps
}

var supportedNIPs = []int{1, 9, 11, 42, 77, 86}

// New builds an httpapi.Server advertising name over relayURL with
// the given auth requirement, serving upgrades with wsDeps.
func New(name, description, relayURL string, authRequired bool, wsDeps wsapi.Deps) *Server {
	return &Server{
		Info: RelayInfo{
			Name:          name,
			Description:   description,
			SupportedNIPs: supportedNIPs,
			Software:      "https://github.com/nostrelay/relay",
			Version:       "0.1.0",
			Limitation:    Limits{AuthRequired: authRequired},
		},
		WSDeps: wsDeps,
	}
}

// ServeHTTP dispatches GET / by content negotiation: a WebSocket upgrade
// request is handed to wsapi.Serve, an Accept: application/nostr+json
// request gets the NIP-11 document, everything else gets a short welcome
// message.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		wsapi.Serve(w, r, r.Context(), s.WSDeps)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/nostr+json") {
		w.Header().Set("Content-Type", "application/nostr+json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if err := json.NewEncoder(w).Encode(s.Info); err != nil {
			logx.E.F("encoding NIP-11 document: %v", err)
		}
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.Info.Name + "\n\nThis is a Nostr relay. Connect with a Nostr client over WebSocket.\n"))
}

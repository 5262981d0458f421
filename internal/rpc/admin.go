// Package rpc is the NIP-86 admin JSON-RPC surface (§4.7): list_allowed_users,
// allow_user, ban_user, gated on an already NIP-42-authenticated,
// admin-flagged pubkey. Grounded directly on the reference
// implementation's handle_nip86 dispatch
// (original_source/relay-rs/src/main.rs): a bare JSON object (not a
// Nostr array envelope) carrying jsonrpc/id/method/params, with params
// passed positionally, realized here over the whitelist cache's admin
// flag instead of that implementation's own per-call row lookup.
package rpc

import (
	"context"
	"encoding/json"

	"github.com/nostrelay/relay/internal/store"
	"github.com/nostrelay/relay/internal/whitelist"
)

const (
	codeUnauthorized  = -32000
	codeUnknownMethod = -32601
)

// Request is one JSON-RPC 2.0 call, id and params passed through
// untouched so the response can echo the same id.
type Request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// IsRPCRequest reports whether raw looks like a NIP-86 admin call: a
// JSON object (not the array every other envelope uses) with a "method"
// field.
func IsRPCRequest(raw []byte) bool {
	var probe struct {
		Method *string `json:"method"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Method != nil
}

// Response is the JSON-RPC 2.0 reply envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC 2.0 error object.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Users is the subset of the Event Store Gateway the admin RPC needs.
type Users interface {
	ListActiveUsers(ctx context.Context) ([]string, error)
	SetStatus(ctx context.Context, pubkey string, status store.WhitelistStatus) error
}

// Handler dispatches admin RPC calls for one already-authenticated
// connection.
type Handler struct {
	users     Users
	whitelist *whitelist.Cache
}

// New builds a Handler.
func New(users Users, wl *whitelist.Cache) *Handler {
	return &Handler{users: users, whitelist: wl}
}

// Handle authorizes callerPubkey ("" if the connection never completed
// AUTH) as an admin and dispatches req, the entry point wired to the
// connection handler's object-vs-array dispatch (§4.1).
func (h *Handler) Handle(ctx context.Context, callerPubkey string, req Request) Response {
	if callerPubkey == "" {
		return h.errorResponse(req.ID, codeUnauthorized, "Unauthorized: Admin access required")
	}
	isAdmin, err := h.whitelist.IsAdmin(ctx, callerPubkey)
	if err != nil || !isAdmin {
		return h.errorResponse(req.ID, codeUnauthorized, "Unauthorized: Admin access required")
	}

	switch req.Method {
	case "list_allowed_users":
		return h.listAllowedUsers(ctx, req.ID)
	case "allow_user":
		return h.setUserStatus(ctx, req.ID, req.Params, store.StatusActive)
	case "ban_user":
		return h.setUserStatus(ctx, req.ID, req.Params, store.StatusRevoked)
	default:
		return h.errorResponse(req.ID, codeUnknownMethod, "method not found: "+req.Method)
	}
}

func (h *Handler) listAllowedUsers(ctx context.Context, id json.RawMessage) Response {
	pubkeys, err := h.users.ListActiveUsers(ctx)
	if err != nil {
		return h.errorResponse(id, codeUnauthorized, "db error: "+err.Error())
	}
	return h.resultResponse(id, pubkeys)
}

// setUserStatus applies status to the pubkey passed as params[0], then
// invalidates its whitelist cache entry so the new status takes effect
// immediately instead of waiting out the 300-second TTL — closing the
// gap spec §9 flags in the reference implementation's admin path, which
// never invalidates the cache on allow/ban.
func (h *Handler) setUserStatus(ctx context.Context, id json.RawMessage, params []json.RawMessage, status store.WhitelistStatus) Response {
	if len(params) == 0 {
		return h.errorResponse(id, codeUnknownMethod, "missing pubkey param")
	}
	var pubkey string
	if err := json.Unmarshal(params[0], &pubkey); err != nil || pubkey == "" {
		return h.errorResponse(id, codeUnknownMethod, "missing pubkey param")
	}
	if err := h.users.SetStatus(ctx, pubkey, status); err != nil {
		return h.errorResponse(id, codeUnauthorized, "db error: "+err.Error())
	}
	h.whitelist.Invalidate(ctx, pubkey)
	return h.resultResponse(id, true)
}

func (h *Handler) resultResponse(id json.RawMessage, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func (h *Handler) errorResponse(id json.RawMessage, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &ResponseError{Code: code, Message: message}}
}

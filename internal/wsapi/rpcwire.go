package wsapi

import (
	"encoding/json"

	"github.com/nostrelay/relay/internal/rpc"
)

// unmarshalRPCRequest decodes a bare JSON-RPC 2.0 request object received
// directly as a WebSocket text frame (§4.1, §4.7) — no Nostr envelope
// wraps it.
func unmarshalRPCRequest(raw []byte, req *rpc.Request) error {
	return json.Unmarshal(raw, req)
}

// encodeRPCResponse marshals an RPC response as a bare JSON object, sent
// as-is over the connection's outbound channel — the reference
// implementation writes this response directly as a text frame rather
// than wrapping it in any Nostr envelope, and this relay matches that.
func encodeRPCResponse(resp rpc.Response) []byte {
	return mustMarshalResponse(resp)
}

func mustMarshalResponse(resp rpc.Response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal error encoding response"}}`)
	}
	return b
}

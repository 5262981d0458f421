package nostr

import (
	"encoding/json"
	"fmt"
)

// EnvelopeLabel names the first element of every wire message array.
type EnvelopeLabel string

const (
	LabelEvent    EnvelopeLabel = "EVENT"
	LabelReq      EnvelopeLabel = "REQ"
	LabelClose    EnvelopeLabel = "CLOSE"
	LabelClosed   EnvelopeLabel = "CLOSED"
	LabelAuth     EnvelopeLabel = "AUTH"
	LabelOK       EnvelopeLabel = "OK"
	LabelEOSE     EnvelopeLabel = "EOSE"
	LabelNotice   EnvelopeLabel = "NOTICE"
	LabelNegOpen  EnvelopeLabel = "NEG-OPEN"
	LabelNegMsg   EnvelopeLabel = "NEG-MSG"
	LabelNegClose EnvelopeLabel = "NEG-CLOSE"
	LabelNegErr   EnvelopeLabel = "NEG-ERR"
)

// Identify reads just the first array element of an inbound message to
// decide which envelope type to fully unmarshal, the same two-stage
// dispatch the reference connection handler uses
// (kwsantiago-orly's pkg/protocol/socketapi/handleMessage.go's
// envelopes.Identify).
func Identify(raw []byte) (EnvelopeLabel, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("not a JSON array: %w", err)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty envelope")
	}
	var label string
	if err := json.Unmarshal(parts[0], &label); err != nil {
		return "", fmt.Errorf("envelope label is not a string: %w", err)
	}
	return EnvelopeLabel(label), nil
}

// parts splits raw into its array elements for per-label unmarshaling.
func parts(raw []byte) ([]json.RawMessage, error) {
	var p []json.RawMessage
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseEvent reads an ["EVENT", <event>] client message.
func ParseEvent(raw []byte) (*Event, error) {
	p, err := parts(raw)
	if err != nil || len(p) < 2 {
		return nil, fmt.Errorf("malformed EVENT envelope")
	}
	var ev Event
	if err := json.Unmarshal(p[1], &ev); err != nil {
		return nil, fmt.Errorf("malformed event: %w", err)
	}
	return &ev, nil
}

// ParseReq reads an ["REQ", <sub_id>, <filter>...] client message,
// tolerating the nested-array variant ParseTolerant itself accepts (a
// malformed but common client bug the reference relay also tolerates).
func ParseReq(raw []byte) (subID string, filters FilterSet, err error) {
	p, err := parts(raw)
	if err != nil || len(p) < 2 {
		return "", nil, fmt.Errorf("malformed REQ envelope")
	}
	if err := json.Unmarshal(p[1], &subID); err != nil {
		return "", nil, fmt.Errorf("malformed subscription id: %w", err)
	}
	fs, err := ParseTolerant(p[2:])
	return subID, fs, err
}

// ParseClose reads a ["CLOSE", <sub_id>] client message.
func ParseClose(raw []byte) (subID string, err error) {
	p, err := parts(raw)
	if err != nil || len(p) < 2 {
		return "", fmt.Errorf("malformed CLOSE envelope")
	}
	err = json.Unmarshal(p[1], &subID)
	return subID, err
}

// ParseAuth reads an ["AUTH", <event>] client response.
func ParseAuth(raw []byte) (*Event, error) {
	p, err := parts(raw)
	if err != nil || len(p) < 2 {
		return nil, fmt.Errorf("malformed AUTH envelope")
	}
	var ev Event
	if err := json.Unmarshal(p[1], &ev); err != nil {
		return nil, fmt.Errorf("malformed auth event: %w", err)
	}
	return &ev, nil
}

// NegOpen is a parsed ["NEG-OPEN", <sub_id>, <filter>, <id_len>,
// <initial_msg_hex>]; id_len is checked to be an integer and not kept.
type NegOpen struct {
	SubID   string
	Filter  *Filter
	Initial string
}

// ParseNegOpen reads a NEG-OPEN client message: ["NEG-OPEN", sub_id,
// filter, id_len, initial_msg_hex] (§4.6/§6).
func ParseNegOpen(raw []byte) (*NegOpen, error) {
	p, err := parts(raw)
	if err != nil || len(p) < 5 {
		return nil, fmt.Errorf("malformed NEG-OPEN envelope")
	}
	var out NegOpen
	if err := json.Unmarshal(p[1], &out.SubID); err != nil {
		return nil, fmt.Errorf("malformed NEG-OPEN sub id: %w", err)
	}
	var f Filter
	if err := json.Unmarshal(p[2], &f); err != nil {
		return nil, fmt.Errorf("malformed NEG-OPEN filter: %w", err)
	}
	out.Filter = &f
	if err := json.Unmarshal(p[3], new(int)); err != nil {
		return nil, fmt.Errorf("malformed NEG-OPEN id_len: %w", err)
	}
	if err := json.Unmarshal(p[4], &out.Initial); err != nil {
		return nil, fmt.Errorf("malformed NEG-OPEN payload: %w", err)
	}
	return &out, nil
}

// ParseNegMsg reads a ["NEG-MSG", <sub_id>, <msg_hex>] client message.
func ParseNegMsg(raw []byte) (subID, msgHex string, err error) {
	p, err := parts(raw)
	if err != nil || len(p) < 3 {
		return "", "", fmt.Errorf("malformed NEG-MSG envelope")
	}
	if err := json.Unmarshal(p[1], &subID); err != nil {
		return "", "", err
	}
	if err := json.Unmarshal(p[2], &msgHex); err != nil {
		return "", "", err
	}
	return subID, msgHex, nil
}

// ParseNegClose reads a ["NEG-CLOSE", <sub_id>] client message.
func ParseNegClose(raw []byte) (subID string, err error) {
	p, err := parts(raw)
	if err != nil || len(p) < 2 {
		return "", fmt.Errorf("malformed NEG-CLOSE envelope")
	}
	err = json.Unmarshal(p[1], &subID)
	return subID, err
}

func encode(v ...any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`["NOTICE","internal error encoding envelope"]`)
	}
	return b
}

// EncodeEvent builds an outgoing ["EVENT", sub_id, event] message.
func EncodeEvent(subID string, ev *Event) []byte { return encode(LabelEvent, subID, ev) }

// EncodeOK builds an outgoing ["OK", id, accepted, message] message.
func EncodeOK(id string, accepted bool, message string) []byte {
	return encode(LabelOK, id, accepted, message)
}

// EncodeEOSE builds an outgoing ["EOSE", sub_id] message.
func EncodeEOSE(subID string) []byte { return encode(LabelEOSE, subID) }

// EncodeClosed builds an outgoing ["CLOSED", sub_id, message] message.
func EncodeClosed(subID, message string) []byte { return encode(LabelClosed, subID, message) }

// EncodeNotice builds an outgoing ["NOTICE", message] message.
func EncodeNotice(message string) []byte { return encode(LabelNotice, message) }

// EncodeAuthChallenge builds an outgoing ["AUTH", challenge] message.
func EncodeAuthChallenge(challenge string) []byte { return encode(LabelAuth, challenge) }

// EncodeNegMsg builds an outgoing ["NEG-MSG", sub_id, msg_hex] message.
func EncodeNegMsg(subID, msgHex string) []byte { return encode(LabelNegMsg, subID, msgHex) }

// EncodeNegErr builds an outgoing ["NEG-ERR", sub_id, message] message.
func EncodeNegErr(subID, message string) []byte { return encode(LabelNegErr, subID, message) }

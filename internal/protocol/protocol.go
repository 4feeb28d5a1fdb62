// Package protocol defines the wire messages exchanged between controllers,
// the relay server, and receivers.
package protocol

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Message types carried in the Type discriminator.
const (
	TypeUpdate   = "update"
	TypeShowCode = "showCode"
	TypeHideCode = "hideCode"
	TypePing     = "ping"
)

// Bare-string replies written by the server on the controller channel.
const (
	replyInvalid = "invalid"
	replyExpired = "expired"
	replyRelayed = "relay"
	replyPong    = "pong"
)

// UpdateMessage is the envelope a controller sends over its duplex channel.
// Every message carries the access code the session was constructed with;
// only the server's reply reveals whether the code is still good.
type UpdateMessage struct {
	Type string `json:"type"`
	Code string `json:"code"`
	Body string `json:"body"`
}

// ReplyKind discriminates the server's bare-string controller replies.
type ReplyKind int

const (
	ReplyUnrecognized ReplyKind = iota
	ReplyInvalid
	ReplyExpired
	ReplyRelayed
	ReplyPong
)

// Reply is a decoded controller-channel reply. Raw is preserved for
// unrecognized values so callers can log them.
type Reply struct {
	Kind ReplyKind
	Raw  string
}

// ParseReply decodes a raw controller-channel frame. Unrecognized values are
// not errors; they decode to ReplyUnrecognized and are ignored upstream.
func ParseReply(raw string) Reply {
	switch raw {
	case replyInvalid:
		return Reply{Kind: ReplyInvalid, Raw: raw}
	case replyExpired:
		return Reply{Kind: ReplyExpired, Raw: raw}
	case replyRelayed:
		return Reply{Kind: ReplyRelayed, Raw: raw}
	case replyPong:
		return Reply{Kind: ReplyPong, Raw: raw}
	default:
		return Reply{Kind: ReplyUnrecognized, Raw: raw}
	}
}

// String returns the wire form of a reply kind.
func (k ReplyKind) String() string {
	switch k {
	case ReplyInvalid:
		return replyInvalid
	case ReplyExpired:
		return replyExpired
	case ReplyRelayed:
		return replyRelayed
	case ReplyPong:
		return replyPong
	default:
		return "unrecognized"
	}
}

// PushKind discriminates server-to-receiver push events.
type PushKind int

const (
	PushUnrecognized PushKind = iota
	PushUpdate
	PushShowCode
	PushHideCode
	PushPing
)

// PushEvent is a decoded server-to-receiver event. Exactly one of Body or
// Code is meaningful depending on Kind; RawType is kept for logging
// unrecognized events.
type PushEvent struct {
	Kind    PushKind
	Body    string
	Code    string
	RawType string
}

type pushEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type pushUpdateData struct {
	Body string `json:"body"`
}

type pushCodeData struct {
	Code string `json:"code"`
}

// ParsePushEvent decodes a raw push-channel payload. Malformed JSON is an
// error; an unknown type discriminator is not.
func ParsePushEvent(raw []byte) (PushEvent, error) {
	var env pushEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PushEvent{}, fmt.Errorf("decode push event: %w", err)
	}

	switch env.Type {
	case TypeUpdate:
		var data pushUpdateData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return PushEvent{}, fmt.Errorf("decode update data: %w", err)
		}
		return PushEvent{Kind: PushUpdate, Body: data.Body, RawType: env.Type}, nil

	case TypeShowCode:
		var data pushCodeData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return PushEvent{}, fmt.Errorf("decode showCode data: %w", err)
		}
		return PushEvent{Kind: PushShowCode, Code: data.Code, RawType: env.Type}, nil

	case TypeHideCode:
		return PushEvent{Kind: PushHideCode, RawType: env.Type}, nil

	case TypePing:
		return PushEvent{Kind: PushPing, RawType: env.Type}, nil

	default:
		return PushEvent{Kind: PushUnrecognized, RawType: env.Type}, nil
	}
}

// JoinURL derives the address a controller should open for a given access
// code: the root address with the code as a query parameter.
func JoinURL(root, code string) string {
	v := url.Values{}
	v.Set("code", code)
	return strings.TrimSuffix(root, "/") + "/?" + v.Encode()
}

package channel

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the verb of a protocol message.
type Action string

const (
	ActionSay Action = "say"
	ActionSet Action = "set"
	ActionGet Action = "get"
)

// Well-known message targets. Target is an open set; these are the ones the
// routers give special treatment.
const (
	TargetHI         = "HI"
	TargetHIAgain    = "HI_AGAIN"
	TargetTXT        = "TXT"
	TargetDATA       = "DATA"
	TargetSTATE      = "STATE"
	TargetPLIST      = "PLIST"
	TargetRoomClosed = "ROOM_CLOSED"
	TargetTIME       = "TIME"
	TargetALERT      = "ALERT"
	TargetBYE        = "BYE"
)

// Special recipient values for Message.To.
const (
	RecipientAll  = "ALL"
	RecipientRoom = "ROOM"
)

// Message is the typed envelope relayed between clients, admins, and game
// logic. Messages are values and are never mutated after construction;
// routing transformations return copies.
type Message struct {
	Action Action          `json:"action"`
	Target string          `json:"target"`
	From   string          `json:"from,omitempty"`
	To     string          `json:"to,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Text   string          `json:"text,omitempty"`
}

// ParseMessage decodes a raw envelope. The action verb is case-insensitive on
// the wire and normalized to lowercase; unknown verbs are rejected before the
// message can reach a router.
func ParseMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed envelope: %w", err)
	}

	msg.Action = Action(strings.ToLower(string(msg.Action)))
	switch msg.Action {
	case ActionSay, ActionSet, ActionGet:
	default:
		return Message{}, fmt.Errorf("unknown action verb %q", msg.Action)
	}

	if msg.Target == "" {
		return Message{}, fmt.Errorf("envelope has no target")
	}

	return msg, nil
}

// Say builds a SAY message.
func Say(target, from, to string) Message {
	return Message{Action: ActionSay, Target: target, From: from, To: to}
}

// SayText builds a SAY.TXT system notice addressed to a single client.
func SayText(from, to, text string) Message {
	return Message{Action: ActionSay, Target: TargetTXT, From: from, To: to, Text: text}
}

// WithData returns a copy of the message carrying the JSON encoding of v.
// Marshal failures are reported by the caller's sink, not here: v is always a
// server-built value and must be encodable.
func (m Message) WithData(v any) Message {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("unencodable message data: %v", err))
	}
	m.Data = data
	return m
}

// AsSay returns a copy of the message with the action verb rewritten to SAY.
// Admin SET commands are relayed to recipients as ordinary narrated events.
func (m Message) AsSay() Message {
	m.Action = ActionSay
	return m
}

// Anonymized returns a copy of the message with the sender hidden.
func (m Message) Anonymized() Message {
	m.From = ""
	return m
}

// Forwarded returns a copy of the message re-addressed to a recipient.
func (m Message) Forwarded(to string) Message {
	m.To = to
	return m
}

// Encode serializes the envelope for the transport.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

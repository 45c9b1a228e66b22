package channel

import (
	"log"
)

// NotReadyNotice is the text sent back to an admin whose state change was
// rejected because the room is not synchronized.
const NotReadyNotice = "Not possible to change state: some players are not ready"

// Router decides whether to forward, broadcast, or transform-and-forward an
// inbound message. Routers are pure dispatch layers: the only state they
// carry is a reference back to the channel.
//
// Two implementations exist because forwarding policy differs by endpoint
// role: PlayerRouter serves player-facing connections, AdminRouter serves
// admin and monitor connections.
type Router interface {
	Handle(msg Message)
}

// PlayerRouter applies the player-facing forwarding policy.
type PlayerRouter struct {
	ch *Channel
}

// Handle routes one message from a player endpoint. The channel guarantees
// the sender is a known, connected client before the message gets here.
func (r *PlayerRouter) Handle(msg Message) {
	switch {
	case msg.Action == ActionSay && (msg.Target == TargetHI || msg.Target == TargetHIAgain):
		// Registration already happened on connect; a HI reaching the router
		// refreshes the roster everywhere.
		r.ch.BroadcastRoster()

	case msg.Action == ActionSay && (msg.Target == TargetTXT || msg.Target == TargetDATA):
		// Forward verbatim, but only to a valid recipient; otherwise the
		// message is dropped without any error surfacing to other clients.
		if !r.ch.clients.IsValidRecipient(msg.To) {
			log.Printf("[router] drop %s.%s from %s: invalid recipient %s",
				msg.Action, msg.Target, msg.From, msg.To)
			return
		}
		r.ch.deliver(msg.To, msg)

	case msg.Action == ActionSet && msg.Target == TargetDATA:
		r.handleSetData(msg)

	case msg.Action == ActionSay && msg.Target == TargetSTATE:
		r.handleState(msg)

	default:
		log.Printf("[router] unhandled player message %s.%s from %s",
			msg.Action, msg.Target, msg.From)
	}
}

// handleSetData applies the SET.DATA player policy: a concrete valid
// recipient gets a unicast; anything else is room-wide state, forwarded to the
// monitoring side and appended to the memory log when one is configured.
func (r *PlayerRouter) handleSetData(msg Message) {
	if msg.To != "" && msg.To != RecipientAll && msg.To != RecipientRoom &&
		r.ch.clients.IsValidRecipient(msg.To) {
		r.ch.deliver(msg.To, msg)
		return
	}

	r.ch.broadcastObservers(msg, msg.From)
	if r.ch.memory != nil {
		if err := r.ch.memory.Add(msg.Text, msg.Data, msg.From); err != nil {
			log.Printf("[router] memory log append failed: %v", err)
		}
	}
}

// handleState records the sender's reported game state, then forwards the
// message to its recipient and mirrors it to the admin side for observer
// visibility.
func (r *PlayerRouter) handleState(msg Message) {
	if c, err := r.ch.clients.Lookup(msg.From); err == nil {
		c.GameState = msg.Data
		c.Synced = true
	}

	if r.ch.clients.IsValidRecipient(msg.To) {
		r.ch.deliver(msg.To, msg)
	}
	r.ch.broadcastObservers(msg, msg.From)
}

// AdminRouter applies the admin-facing forwarding policy. The same message
// verbs receive different treatment than on the player side: sender identity
// is hidden, and SET commands reach recipients as ordinary SAY events.
type AdminRouter struct {
	ch *Channel
}

// Handle routes one message from an admin or monitor endpoint.
func (r *AdminRouter) Handle(msg Message) {
	// Verb rewrite: admin SET.* relays as SAY.* so state-setting commands
	// appear to recipients as narrated events, not direct overrides.
	if msg.Action == ActionSet {
		msg = msg.AsSay()
	}

	switch {
	case msg.Action == ActionSay && (msg.Target == TargetHI || msg.Target == TargetHIAgain):
		r.ch.BroadcastRoster()

	case msg.Action == ActionSay && msg.Target == TargetSTATE:
		r.handleState(msg)

	case msg.Action == ActionSay:
		r.relayAnonymized(msg)

	default:
		log.Printf("[router] unhandled admin message %s.%s", msg.Action, msg.Target)
	}
}

// handleState gates admin state changes on room synchronization. If any
// player in the target room has not confirmed the current state, the change
// is rejected and the admin gets a plain-text notice instead; otherwise the
// message is forwarded and also broadcast to the other observers.
func (r *AdminRouter) handleState(msg Message) {
	roomID := r.ch.targetRoomID(msg)
	if !r.ch.CheckSync(roomID) {
		r.ch.deliver(msg.From, SayText("", msg.From, NotReadyNotice))
		log.Printf("[router] admin state change rejected: room %s not in sync", roomID)
		return
	}

	out := msg.Anonymized()
	r.relay(out, roomID)
	r.ch.broadcastObservers(out, msg.From)
}

// relayAnonymized hides the sending admin's identity before relaying.
func (r *AdminRouter) relayAnonymized(msg Message) {
	roomID := r.ch.targetRoomID(msg)
	r.relay(msg.Anonymized(), roomID)
}

func (r *AdminRouter) relay(msg Message, roomID string) {
	switch msg.To {
	case RecipientAll:
		r.ch.broadcastPlayers(msg, "")
	case RecipientRoom, "":
		r.ch.broadcastRoom(roomID, msg, "")
	default:
		if !r.ch.clients.IsValidRecipient(msg.To) {
			log.Printf("[router] drop admin %s.%s: invalid recipient %s",
				msg.Action, msg.Target, msg.To)
			return
		}
		r.ch.deliver(msg.To, msg)
	}
}

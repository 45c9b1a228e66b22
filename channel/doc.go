// Package channel implements the room lifecycle and message routing core of
// the PlayLab room server.
//
// The channel package implements:
//   - Typed protocol envelopes (SAY/SET/GET verbs over HI, TXT, DATA, STATE,
//     PLIST and friends)
//   - Client registration with reconnection matching (HI_AGAIN)
//   - A process-wide unique room registry with collision-checked id minting
//   - The room state machine (uninitialized → initialized → running ⇄ paused
//     → stopped) with two-phase game-logic attachment
//   - Waiting pools that accumulate players and dispatch game rooms
//   - Player-facing and admin-facing routing policies
//
// Architecture:
//
// The Channel is the coordinating facade. It owns the client and room
// registries, the default waiting pool, and one router per endpoint role, and
// injects itself into rooms and pools by reference. Nothing in this package
// reaches for ambient global state.
//
// Routing policy:
//
// Player and admin endpoints share the same message verbs but not the same
// treatment. The player router forwards verbatim to valid recipients and
// mirrors state traffic to observers; the admin router hides the sender's
// identity, rewrites SET commands into SAY events before relay, and gates
// state changes on room synchronization.
//
// Concurrency:
//
// Inbound transport events and timer callbacks are serialized onto the
// channel's op queue, so one logical action is never interleaved with another
// on the routing path. Every shared structure additionally carries its own
// mutex, so the invariants hold even under direct concurrent use from the
// admin surfaces.
//
// Usage:
//
//	ch, err := channel.New(channel.Config{Pool: poolCfg}, store)
//	go ch.Run(ctx)
//
//	client, err := ch.Connect("", channel.RolePlayer, sink)
//	ch.Ingest(client.ID, rawEnvelope)
package channel

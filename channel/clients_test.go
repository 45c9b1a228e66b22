package channel

import (
	"errors"
	"testing"
)

func TestClientRegistry_Register(t *testing.T) {
	reg := NewClientRegistry()

	t.Run("new client", func(t *testing.T) {
		c, err := reg.Register("p1", RolePlayer, &recorderSink{})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if c.ID != "p1" || c.Role != RolePlayer || c.State != StateConnected {
			t.Errorf("Unexpected client record: %+v", c)
		}
	})

	t.Run("connected duplicate rejected", func(t *testing.T) {
		_, err := reg.Register("p1", RolePlayer, &recorderSink{})
		if !errors.Is(err, ErrDuplicateClient) {
			t.Errorf("Expected ErrDuplicateClient, got %v", err)
		}
	})

	t.Run("disconnected id is revived", func(t *testing.T) {
		reg.MarkDisconnected("p1")
		if reg.IsValidRecipient("p1") {
			t.Fatal("Disconnected client should not be a valid recipient")
		}

		sink := &recorderSink{}
		c, err := reg.Register("p1", RolePlayer, sink)
		if err != nil {
			t.Fatalf("Revival failed: %v", err)
		}
		if c.State != StateConnected {
			t.Errorf("Expected connected, got %s", c.State)
		}
		if c.Sink != Sink(sink) {
			t.Error("Expected the new sink to be swapped in")
		}
	})

	t.Run("revival keeps the record", func(t *testing.T) {
		c, _ := reg.Lookup("p1")
		c.RoomID = "room-1"
		c.Synced = true
		reg.MarkDisconnected("p1")

		revived, err := reg.Register("p1", RolePlayer, &recorderSink{})
		if err != nil {
			t.Fatalf("Revival failed: %v", err)
		}
		if revived.RoomID != "room-1" || !revived.Synced {
			t.Errorf("Revival lost record state: %+v", revived)
		}
	})
}

func TestClientRegistry_MarkDisconnected(t *testing.T) {
	reg := NewClientRegistry()
	reg.Register("p1", RolePlayer, &recorderSink{})

	reg.MarkDisconnected("p1")
	reg.MarkDisconnected("p1") // idempotent
	reg.MarkDisconnected("ghost")

	c, err := reg.Lookup("p1")
	if err != nil {
		t.Fatalf("Disconnected client should stay registered: %v", err)
	}
	if c.State != StateDisconnected {
		t.Errorf("Expected disconnected, got %s", c.State)
	}
	if c.Sink != nil {
		t.Error("Expected sink cleared on disconnect")
	}
}

func TestClientRegistry_IsValidRecipient(t *testing.T) {
	reg := NewClientRegistry()
	reg.Register("p1", RolePlayer, &recorderSink{})

	if !reg.IsValidRecipient("p1") {
		t.Error("Connected client with sink should be valid")
	}
	if reg.IsValidRecipient("nobody") {
		t.Error("Unregistered id should not be valid")
	}

	reg.MarkDisconnected("p1")
	if reg.IsValidRecipient("p1") {
		t.Error("Disconnected client should not be valid")
	}
}

func TestClientRegistry_Purge(t *testing.T) {
	reg := NewClientRegistry()
	reg.Register("p1", RolePlayer, &recorderSink{})

	reg.Purge("p1")
	if _, err := reg.Lookup("p1"); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Expected ErrClientNotFound after purge, got %v", err)
	}

	// Purged id can register fresh.
	if _, err := reg.Register("p1", RolePlayer, &recorderSink{}); err != nil {
		t.Errorf("Purged id should register again: %v", err)
	}
}

func TestClientRegistry_SetRoom(t *testing.T) {
	reg := NewClientRegistry()
	reg.Register("p1", RolePlayer, &recorderSink{})

	if err := reg.SetRoom("p1", "room-9"); err != nil {
		t.Fatalf("SetRoom failed: %v", err)
	}
	c, _ := reg.Lookup("p1")
	if c.RoomID != "room-9" {
		t.Errorf("Expected room-9, got %s", c.RoomID)
	}

	if err := reg.SetRoom("ghost", "x"); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("Expected ErrClientNotFound, got %v", err)
	}
}

func TestClientRegistry_ByRole(t *testing.T) {
	reg := NewClientRegistry()
	reg.Register("p1", RolePlayer, &recorderSink{})
	reg.Register("p2", RolePlayer, &recorderSink{})
	reg.Register("a1", RoleAdmin, &recorderSink{})
	reg.MarkDisconnected("p2")

	players := reg.ByRole(RolePlayer)
	if len(players) != 1 || players[0].ID != "p1" {
		t.Errorf("Expected only connected player p1, got %+v", players)
	}

	admins := reg.ByRole(RoleAdmin)
	if len(admins) != 1 || admins[0].ID != "a1" {
		t.Errorf("Expected admin a1, got %+v", admins)
	}

	if reg.Count() != 3 {
		t.Errorf("Expected 3 registered clients, got %d", reg.Count())
	}
	if len(reg.All()) != 3 {
		t.Errorf("All should include disconnected clients")
	}
}

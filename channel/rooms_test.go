package channel

import (
	"errors"
	"sync"
	"testing"
)

func TestRoomRegistry_CreateRoom(t *testing.T) {
	reg := NewRoomRegistry()

	room, err := reg.CreateRoom(RoomGame, RoomConfig{Name: "g1"})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if room.ID == "" {
		t.Fatal("Expected a minted room id")
	}
	if room.Type != RoomGame {
		t.Errorf("Expected game room, got %s", room.Type)
	}
	if room.State() != RoomUninitialized {
		t.Errorf("New room should be uninitialized, got %s", room.State())
	}

	got, err := reg.Get(room.ID)
	if err != nil || got != room {
		t.Errorf("Get should return the created room, got %v (%v)", got, err)
	}
}

func TestRoomRegistry_UniqueIDs(t *testing.T) {
	reg := NewRoomRegistry()

	const n = 64
	var wg sync.WaitGroup
	ids := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, err := reg.CreateRoom(RoomGame, RoomConfig{})
			if err != nil {
				t.Errorf("CreateRoom failed: %v", err)
				return
			}
			ids <- room.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("Duplicate room id minted: %s", id)
		}
		seen[id] = true
	}
	if reg.Count() != n {
		t.Errorf("Expected %d live rooms, got %d", n, reg.Count())
	}
}

func TestRoomRegistry_Adopt(t *testing.T) {
	reg := NewRoomRegistry()

	room := newRoom("", RoomWaiting, RoomConfig{Name: "pool"})
	if err := reg.Adopt(room); err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	if room.ID == "" {
		t.Fatal("Adopt should mint an id")
	}

	if err := reg.Adopt(room); !errors.Is(err, ErrRoomRegistered) {
		t.Errorf("Re-adopting should fail with ErrRoomRegistered, got %v", err)
	}
}

func TestRoomRegistry_Destroy(t *testing.T) {
	reg := NewRoomRegistry()
	room, _ := reg.CreateRoom(RoomGame, RoomConfig{})

	reg.Destroy(room.ID)
	if _, err := reg.Get(room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound after destroy, got %v", err)
	}

	// Idempotent.
	reg.Destroy(room.ID)
	reg.Destroy("never-existed")

	if reg.Count() != 0 {
		t.Errorf("Expected empty registry, got %d rooms", reg.Count())
	}
}

func TestRoomRegistry_RetiredIDsNotReissued(t *testing.T) {
	reg := NewRoomRegistry()

	// Destroyed ids stay tombstoned; minting enough new rooms must never
	// produce one of them again.
	retired := make(map[string]bool)
	for i := 0; i < 16; i++ {
		room, err := reg.CreateRoom(RoomGame, RoomConfig{})
		if err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		retired[room.ID] = true
		reg.Destroy(room.ID)
	}

	for i := 0; i < 64; i++ {
		room, err := reg.CreateRoom(RoomGame, RoomConfig{})
		if err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		if retired[room.ID] {
			t.Fatalf("Retired id %s was reissued", room.ID)
		}
	}
}

func TestRoomRegistry_List(t *testing.T) {
	reg := NewRoomRegistry()
	a, _ := reg.CreateRoom(RoomGame, RoomConfig{})
	b, _ := reg.CreateRoom(RoomWaiting, RoomConfig{})

	rooms := reg.List()
	if len(rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(rooms))
	}
	found := map[string]bool{}
	for _, r := range rooms {
		found[r.ID] = true
	}
	if !found[a.ID] || !found[b.ID] {
		t.Errorf("List missing rooms: %v", found)
	}
}

/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"testing"
)

func testManager(t *testing.T) *RoomManager {
	t.Helper()
	rule, err := scoringRule("flat")
	if err != nil {
		t.Fatal(err)
	}
	return newRoomManager(testConfig(), rule)
}

func TestCreateAllocatesUniqueWaitingRooms(t *testing.T) {
	rm := testManager(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, err := rm.Create()
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if seen[room.ID()] {
			t.Fatalf("duplicate room id %q", room.ID())
		}
		seen[room.ID()] = true

		if room.Phase() != PhaseWaiting {
			t.Fatalf("new room must be waiting, got %q", room.Phase())
		}
		if room.PlayerCount() != 0 {
			t.Fatalf("new room must have an empty roster, got %d", room.PlayerCount())
		}
		if rm.Get(room.ID()) != room {
			t.Fatalf("created room not found by id %q", room.ID())
		}
	}
}

func TestGetUnknownRoom(t *testing.T) {
	rm := testManager(t)

	if room := rm.Get("NOSUCH"); room != nil {
		t.Fatalf("expected nil for an unknown id, got %v", room.ID())
	}
}

func TestClaimOrCreatePrefersOldestWaitingRoom(t *testing.T) {
	rm := testManager(t)

	first, err := rm.ClaimOrCreate()
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Capacity is 4 in the test config: the next three searchers land in the
	// same room, the fifth gets a fresh one.
	for i := 0; i < 3; i++ {
		room, err := rm.ClaimOrCreate()
		if err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		if room != first {
			t.Fatalf("searcher split across rooms: %q vs %q", room.ID(), first.ID())
		}
	}

	overflow, err := rm.ClaimOrCreate()
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if overflow == first {
		t.Fatal("claims must not exceed room capacity")
	}
}

func TestClaimOrCreateSkipsStartedRooms(t *testing.T) {
	rm := testManager(t)

	room, err := rm.ClaimOrCreate()
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	room.mu.Lock()
	room.phase = PhaseActive
	room.mu.Unlock()

	next, err := rm.ClaimOrCreate()
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if next == room {
		t.Fatal("matchmaking must not place players into active rooms")
	}
}

func TestConcurrentClaimsConverge(t *testing.T) {
	rm := testManager(t)

	// Capacity searchers racing: all must land in one room with no lost or
	// duplicated claims, regardless of interleaving.
	const searchers = 4

	var wg sync.WaitGroup
	results := make([]*Room, searchers)

	for i := 0; i < searchers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, err := rm.ClaimOrCreate()
			if err != nil {
				t.Errorf("claim failed: %v", err)
				return
			}
			results[i] = room
		}()
	}
	wg.Wait()

	for i := 1; i < searchers; i++ {
		if results[i] != results[0] {
			t.Fatalf("concurrent searchers split across rooms: %q vs %q",
				results[i].ID(), results[0].ID())
		}
	}
}

func TestJoinConsumesClaim(t *testing.T) {
	rm := testManager(t)

	room, err := rm.ClaimOrCreate()
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	c := newTestClient()
	attach(t, room, c)
	join(t, room, c, "alice")

	room.mu.RLock()
	reserved := room.reserved
	room.mu.RUnlock()

	if reserved != 0 {
		t.Fatalf("join must consume the outstanding claim, %d left", reserved)
	}
}

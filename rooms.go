/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"sync"
	"time"
)

const (
	roomIDLength   = 6
	roomIDAttempts = 100
	claimGrace     = 30 * time.Second
)

// RoomManager owns the set of live rooms. Creation, lookup and matchmaking
// all serialize on its mutex, so two concurrent searchers can never create
// two rooms when one would do.
type RoomManager struct {
	mu    sync.Mutex
	rooms map[string]*Room
	order []string // room ids in creation order, for oldest-waiting matchmaking

	cfg         *Config
	rule        ScoringRule
	idleTimeout time.Duration
}

func newRoomManager(cfg *Config, rule ScoringRule) *RoomManager {
	rm := &RoomManager{
		rooms:       make(map[string]*Room),
		cfg:         cfg,
		rule:        rule,
		idleTimeout: cfg.sessionTimeout,
	}
	if rm.idleTimeout > 0 {
		go rm.reaperLoop()
	}
	return rm
}

// Create allocates a fresh room in the waiting phase with an empty roster.
// Fails only when the id space is exhausted.
func (rm *RoomManager) Create() (*Room, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	return rm.createLocked()
}

func (rm *RoomManager) createLocked() (*Room, error) {
	roomID, err := rm.newRoomIDLocked()
	if err != nil {
		return nil, err
	}

	room := newRoom(roomID, rm.cfg.roomCapacity, rm.cfg.minPlayers, rm.rule)
	rm.rooms[roomID] = room
	rm.order = append(rm.order, roomID)
	go room.run(rm.cfg)

	logf(rm.cfg, "ROOMS: Created room %s", roomID)

	return room, nil
}

// Get returns the room with the given id, or nil.
func (rm *RoomManager) Get(roomID string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	return rm.rooms[roomID]
}

// ClaimOrCreate is the atomic matchmaking commit: the oldest waiting room
// with a free slot wins, and only if none exists is a new room created. The
// claimed slot is held for claimGrace so the searcher's follow-up join is
// not raced out of it.
func (rm *RoomManager) ClaimOrCreate() (*Room, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, roomID := range rm.order {
		room, ok := rm.rooms[roomID]
		if !ok {
			continue
		}
		if room.tryReserve() {
			time.AfterFunc(claimGrace, room.releaseClaim)
			return room, nil
		}
	}

	room, err := rm.createLocked()
	if err != nil {
		return nil, err
	}
	if room.tryReserve() {
		time.AfterFunc(claimGrace, room.releaseClaim)
	}
	return room, nil
}

// newRoomIDLocked generates a crypto-random room id, retrying on collision
// a bounded number of times before reporting exhaustion.
func (rm *RoomManager) newRoomIDLocked() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	for i := 0; i < roomIDAttempts; i++ {
		buf := make([]byte, roomIDLength)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		out := make([]byte, roomIDLength)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		roomID := string(out)

		if _, exists := rm.rooms[roomID]; !exists {
			return roomID, nil
		}
	}

	return "", ErrAllocation
}

// reaperLoop periodically removes rooms that have been idle longer than
// idleTimeout. Rooms have no explicit destroy operation; this is how they
// are collected once all connections drop.
func (rm *RoomManager) reaperLoop() {
	ticker := time.NewTicker(rm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-rm.idleTimeout)

		rm.mu.Lock()
		live := rm.order[:0]
		for _, roomID := range rm.order {
			room, ok := rm.rooms[roomID]
			if !ok {
				continue
			}

			room.mu.RLock()
			last := room.lastActive
			room.mu.RUnlock()

			if last.Before(cutoff) {
				delete(rm.rooms, roomID)
				logf(rm.cfg, "ROOMS: Reaped idle room %s", roomID)
				go room.closeAll()
				continue
			}
			live = append(live, roomID)
		}
		rm.order = live
		rm.mu.Unlock()
	}
}

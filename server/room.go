// Room Registry
//
// Copyright (c) 2024  Philip Kaludercic
//
// This file is part of go-nim.
//
// go-nim is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-nim is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-nim. If not, see
// <http://www.gnu.org/licenses/>

package server

import (
	"fmt"
	"log"
	"strings"
	"time"

	"go-nim"
	"go-nim/game"
)

// room is one slot of the fixed room arena.  Its id doubles as the
// slot index and stays stable for the room's lifetime.  Seats hold
// player slot indices, -1 when empty.
type room struct {
	id      int
	name    string
	seats   [nim.PlayersPerRoom]int
	count   int
	game    game.Game
	started time.Time
	active  bool
}

func (r *room) init(id int) {
	r.id = id
	r.name = ""
	r.seats = [nim.PlayersPerRoom]int{-1, -1}
	r.count = 0
	r.game.Init()
	r.started = time.Time{}
	r.active = false
}

func (r *room) full() bool {
	return r.count >= nim.PlayersPerRoom
}

// seatOf returns the seat index of a player slot, or -1.
func (r *room) seatOf(slot int) int {
	for i, s := range r.seats {
		if s == slot {
			return i
		}
	}
	return -1
}

// roomByID resolves an id to an active room.
func (s *Server) roomByID(id int) *room {
	if id < 0 || id >= len(s.rooms) {
		return nil
	}
	if !s.rooms[id].active {
		return nil
	}
	return &s.rooms[id]
}

func (s *Server) roomByName(name string) *room {
	for i := range s.rooms {
		if s.rooms[i].active && s.rooms[i].name == name {
			return &s.rooms[i]
		}
	}
	return nil
}

func (s *Server) activeRooms() int {
	n := 0
	for i := range s.rooms {
		if s.rooms[i].active {
			n++
		}
	}
	return n
}

// createRoom allocates the lowest free room slot, names it and seats
// the creator.  Returns -1 when the name is taken or no slot is free.
func (s *Server) createRoom(name string, creator *player) int {
	if s.roomByName(name) != nil {
		log.Printf("Room name '%s' already taken", name)
		return -1
	}

	var r *room
	for i := range s.rooms {
		if !s.rooms[i].active {
			r = &s.rooms[i]
			break
		}
	}
	if r == nil {
		log.Print("No free room slots available")
		return -1
	}

	r.name = name
	r.active = true
	r.count = 0
	r.seats = [nim.PlayersPerRoom]int{-1, -1}
	r.game.Init()

	if !s.seatPlayer(r, creator) {
		r.active = false
		return -1
	}

	log.Printf("Room '%s' (ID: %d) created by '%s'", r.name, r.id, creator.nick)
	return r.id
}

// seatPlayer puts a player on the first empty seat of a room.
func (s *Server) seatPlayer(r *room, p *player) bool {
	if r.full() {
		log.Printf("Cannot add player to full room %d", r.id)
		return false
	}
	for i := range r.seats {
		if r.seats[i] == -1 {
			r.seats[i] = p.slot
			r.count++
			p.room = r.id
			p.skips = nim.SkipsPerPlayer
			log.Printf("Player '%s' joined room '%s' (ID: %d)", p.name(), r.name, r.id)
			return true
		}
	}
	return false
}

// unseatPlayer removes a player from a room; an emptied room is
// deactivated.
func (s *Server) unseatPlayer(r *room, p *player) {
	i := r.seatOf(p.slot)
	if i < 0 {
		return
	}
	r.seats[i] = -1
	r.count--
	p.room = -1
	log.Printf("Player '%s' left room '%s' (ID: %d)", p.name(), r.name, r.id)

	if r.count == 0 {
		s.destroyRoom(r)
	}
}

func (s *Server) destroyRoom(r *room) {
	log.Printf("Room '%s' (ID: %d) destroyed", r.name, r.id)
	for i, slot := range r.seats {
		if slot >= 0 {
			s.players[slot].room = -1
			r.seats[i] = -1
		}
	}
	r.count = 0
	r.name = ""
	r.active = false
	r.game.Init()
}

// seatedOpponent returns the player seated opposite the given slot,
// whether or not it currently has a connection.  Pass -1 to get the
// first occupant.
func (r *room) seatedOpponent(s *Server, slot int) *player {
	for _, other := range r.seats {
		if other >= 0 && other != slot {
			return &s.players[other]
		}
	}
	return nil
}

// startGame begins play in a full room and moves both players to the
// in-game state.
func (s *Server) startGame(r *room) bool {
	if !r.full() {
		log.Print("Cannot start game - room not full")
		return false
	}
	if !r.game.Start() {
		log.Print("Cannot start game - game already in progress or finished")
		return false
	}
	r.started = time.Now()
	for _, slot := range r.seats {
		if slot >= 0 {
			s.players[slot].state = nim.InGame
			s.players[slot].skips = nim.SkipsPerPlayer
		}
	}
	log.Printf("Game started in room '%s' (ID: %d)", r.name, r.id)
	return true
}

// listRooms renders the LIST_ROOMS payload: the active count followed
// by one id,name,players,capacity quad per active room.
func (s *Server) listRooms() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", s.activeRooms())
	for i := range s.rooms {
		r := &s.rooms[i]
		if r.active {
			fmt.Fprintf(&b, ";%d,%s,%d,%d", r.id, r.name, r.count, nim.PlayersPerRoom)
		}
	}
	return b.String()
}

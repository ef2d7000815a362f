// Player Records
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
	"io"
	"time"

	"go-nim"
)

// player is one session slot in the server's fixed arena.  The slot
// index is the record's identity; rooms refer to players by index, so
// a reconnect can swap the record behind a room seat without leaving
// dangling references.
type player struct {
	slot int

	// gen is bumped whenever the slot changes hands so events from
	// a stale reader goroutine can be told apart and dropped.
	gen uint64

	conn   io.ReadWriteCloser // nil while disconnected
	remote string

	nick  string
	state nim.PlayerState
	room  int // room slot index, -1 when none
	skips int

	buf []byte // unterminated inbound tail

	lastActivity   time.Time
	disconnectedAt time.Time
	lastPing       time.Time
	awaitingPong   bool

	invalid   int
	msgCount  int
	msgSecond int64

	active bool
}

// name returns the nickname for log output.
func (p *player) name() string {
	if p.nick == "" {
		return "(unknown)"
	}
	return p.nick
}

// attach takes over a free slot for a fresh connection.
func (p *player) attach(conn io.ReadWriteCloser, remote string, now time.Time) {
	p.gen++
	p.conn = conn
	p.remote = remote
	p.nick = ""
	p.state = nim.Connecting
	p.room = -1
	p.skips = nim.SkipsPerPlayer
	p.buf = nil
	p.lastActivity = now
	p.disconnectedAt = time.Time{}
	p.lastPing = time.Time{}
	p.awaitingPong = false
	p.invalid = 0
	p.msgCount = 0
	p.msgSecond = 0
	p.active = true
}

// park closes the socket but keeps nickname and room so a matching
// LOGIN within the reconnect window can reclaim the session.
func (p *player) park(now time.Time) {
	if p.conn != nil {
		p.conn.Close()
	}
	p.gen++
	p.conn = nil
	p.state = nim.Disconnected
	p.disconnectedAt = now
	p.buf = nil
	p.awaitingPong = false
	p.invalid = 0
}

// release frees the slot entirely.
func (p *player) release() {
	if p.conn != nil {
		p.conn.Close()
	}
	p.gen++
	p.conn = nil
	p.remote = ""
	p.nick = ""
	p.state = nim.Connecting
	p.room = -1
	p.skips = 0
	p.buf = nil
	p.awaitingPong = false
	p.invalid = 0
	p.active = false
}

// allowMessage implements the per-wall-second frame budget.
func (p *player) allowMessage(now time.Time) bool {
	sec := now.Unix()
	if p.msgSecond != sec {
		p.msgSecond = sec
		p.msgCount = 0
	}
	p.msgCount++
	return p.msgCount <= nim.MaxMessagesPerSecond
}

func (p *player) needsPing(now time.Time, interval time.Duration) bool {
	if p.conn == nil || p.awaitingPong {
		return false
	}
	return now.Sub(p.lastActivity) > interval
}

func (p *player) pongExpired(now time.Time, timeout time.Duration) bool {
	return p.awaitingPong && now.Sub(p.lastPing) > timeout
}

func (p *player) reconnectExpired(now time.Time, window time.Duration) bool {
	if p.state != nim.Disconnected {
		return false
	}
	return now.Sub(p.disconnectedAt) > window
}

// findFreeSlot returns the lowest inactive player slot, or -1.
func (s *Server) findFreeSlot() int {
	for i := range s.players {
		if !s.players[i].active {
			return i
		}
	}
	return -1
}

// findByNickname returns the active record holding a nickname.
func (s *Server) findByNickname(nick string) *player {
	for i := range s.players {
		p := &s.players[i]
		if p.active && p.nick != "" && p.nick == nick {
			return p
		}
	}
	return nil
}

// findDisconnected returns the dormant record awaiting reconnection
// under the given nickname.
func (s *Server) findDisconnected(nick string) *player {
	for i := range s.players {
		p := &s.players[i]
		if p.active && p.state == nim.Disconnected && p.nick == nick {
			return p
		}
	}
	return nil
}

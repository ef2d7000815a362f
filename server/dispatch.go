// Command Dispatch and Session Lifecycle
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
	"log"
	"strconv"
	"time"

	"go-nim"
	"go-nim/game"
	"go-nim/proto"
)

// handleMessage parses and dispatches one complete line.  A frame
// that fails to parse, which includes unknown commands, only counts
// against the invalid-message budget; no reply is sent for it.
func (s *Server) handleMessage(p *player, line string) {
	msg, ok := proto.Parse(line)
	if !ok {
		log.Printf("Invalid message from '%s': %s", p.name(), line)
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	switch msg.Type {
	case proto.Login:
		s.handleLogin(p, msg)
	case proto.ListRooms:
		s.handleListRooms(p)
	case proto.CreateRoom:
		s.handleCreateRoom(p, msg)
	case proto.JoinRoom:
		s.handleJoinRoom(p, msg)
	case proto.LeaveRoom:
		s.handleLeaveRoom(p)
	case proto.Take:
		s.handleTake(p, msg)
	case proto.Skip:
		s.handleSkip(p)
	case proto.Ping:
		s.send(p, proto.PongMsg())
	case proto.Pong:
		p.awaitingPong = false
		p.lastActivity = time.Now()
	case proto.Logout:
		log.Printf("Player '%s' logging out", p.name())
		s.disconnect(p, true)
	}
}

func (s *Server) handleLogin(p *player, msg proto.Message) {
	if p.state != nim.Connecting {
		s.send(p, proto.LoginErr(nim.ErrAlreadyLoggedIn, ""))
		return
	}

	if len(msg.Params) < 1 {
		s.send(p, proto.LoginErr(nim.ErrInvalidParams, "Missing nickname"))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	nick := msg.Params[0]
	if err := proto.ValidateNickname(nick); err != nim.ErrNone {
		s.send(p, proto.LoginErr(err, ""))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	// A dormant session under the same nickname means this login is
	// a reconnection; it takes precedence over the collision check.
	if d := s.findDisconnected(nick); d != nil {
		s.resumeSession(p, d, nick)
		return
	}

	if s.findByNickname(nick) != nil {
		s.send(p, proto.LoginErr(nim.ErrNicknameTaken, ""))
		return
	}

	p.nick = nick
	p.state = nim.Lobby
	s.send(p, proto.LoginOK())
	log.Printf("Player '%s' logged in", nick)
}

// resumeSession moves a parked session behind the freshly logged-in
// connection.  The room seat is re-pointed at the new slot, the old
// record is freed, and a paused game resumes if the opponent is still
// there.
func (s *Server) resumeSession(p *player, d *player, nick string) {
	log.Printf("Player '%s' reconnecting", nick)

	oldRoom := d.room
	p.nick = nick
	p.skips = d.skips
	p.room = oldRoom

	r := s.roomByID(oldRoom)
	if r != nil {
		if i := r.seatOf(d.slot); i >= 0 {
			r.seats[i] = p.slot
		}
	}
	d.room = -1
	d.release()

	s.send(p, proto.LoginOK())

	if r == nil {
		// The room may have been torn down while the player was
		// away; the session falls back to the lobby.
		p.room = -1
		p.state = nim.Lobby
		return
	}

	p.state = nim.InGame

	if r.game.Phase == game.Paused {
		r.game.Resume()

		seat := r.seatOf(p.slot)
		s.send(p, proto.GameResumed(r.game.Stones, r.game.IsTurn(seat),
			p.skips, r.game.Skips[1-seat]))

		opp := r.seatedOpponent(s, p.slot)
		if opp != nil && opp.conn != nil {
			s.send(opp, proto.PlayerStatus(nick, proto.StatusReconnected))
		}
	}
}

func (s *Server) handleListRooms(p *player) {
	if p.state == nim.Connecting {
		s.send(p, proto.Error(nim.ErrNotLoggedIn, ""))
		return
	}
	s.send(p, proto.Rooms(s.listRooms()))
}

// lobbyOnly reports the error code for room commands issued outside
// the lobby.
func lobbyOnly(p *player) nim.ErrorCode {
	if p.state == nim.Connecting {
		return nim.ErrNotLoggedIn
	}
	return nim.ErrGameInProgress
}

func (s *Server) handleCreateRoom(p *player, msg proto.Message) {
	if p.state != nim.Lobby {
		s.send(p, proto.RoomErr(lobbyOnly(p), ""))
		return
	}

	if len(msg.Params) < 1 {
		s.send(p, proto.RoomErr(nim.ErrInvalidParams, "Missing room name"))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	name := msg.Params[0]
	if err := proto.ValidateRoomName(name); err != nim.ErrNone {
		s.send(p, proto.RoomErr(err, ""))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	if s.activeRooms() >= s.conf.Server.MaxRooms {
		s.send(p, proto.RoomErr(nim.ErrMaxRooms, ""))
		return
	}

	id := s.createRoom(name, p)
	if id < 0 {
		s.send(p, proto.RoomErr(nim.ErrRoomNameTaken, ""))
		return
	}

	p.state = nim.InRoom
	s.send(p, proto.RoomCreated(id))
	s.send(p, proto.WaitOpponent())
}

func (s *Server) handleJoinRoom(p *player, msg proto.Message) {
	if p.state != nim.Lobby {
		s.send(p, proto.RoomErr(lobbyOnly(p), ""))
		return
	}

	if len(msg.Params) < 1 {
		s.send(p, proto.RoomErr(nim.ErrInvalidParams, "Missing room ID"))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	// Unparsable ids behave like id 0, the first room slot.
	id, _ := strconv.Atoi(msg.Params[0])

	r := s.roomByID(id)
	if r == nil {
		s.send(p, proto.RoomErr(nim.ErrRoomNotFound, ""))
		return
	}
	if r.full() {
		s.send(p, proto.RoomErr(nim.ErrRoomFull, ""))
		return
	}

	opp := r.seatedOpponent(s, -1)
	if !s.seatPlayer(r, p) {
		s.send(p, proto.RoomErr(nim.ErrInternal, ""))
		return
	}

	p.state = nim.InRoom
	oppNick := ""
	if opp != nil {
		oppNick = opp.name()
	}
	s.send(p, proto.RoomJoined(r.id, oppNick))

	if r.full() && s.startGame(r) {
		for _, slot := range r.seats {
			if slot < 0 {
				continue
			}
			q := &s.players[slot]
			if q.conn == nil {
				continue
			}
			other := r.seatedOpponent(s, q.slot)
			otherNick := ""
			if other != nil {
				otherNick = other.name()
			}
			seat := r.seatOf(q.slot)
			s.send(q, proto.GameStart(r.game.Stones, r.game.IsTurn(seat), otherNick))
		}
	}
}

func (s *Server) handleLeaveRoom(p *player) {
	if p.state != nim.InRoom && p.state != nim.InGame {
		s.send(p, proto.Error(nim.ErrNotInRoom, ""))
		return
	}

	r := s.roomByID(p.room)
	if r == nil {
		s.send(p, proto.Error(nim.ErrInternal, ""))
		return
	}

	if r.game.Phase == game.Playing || r.game.Phase == game.Paused {
		// Walking out of a live game concedes it.
		s.forfeitGame(r, p, "forfeit")
	} else if opp := r.seatedOpponent(s, p.slot); opp != nil && opp.conn != nil {
		s.send(opp, proto.PlayerStatus(p.name(), proto.StatusDisconnected))
		s.unseatPlayer(r, opp)
		opp.state = nim.Lobby
	}

	s.unseatPlayer(r, p)
	p.state = nim.Lobby
	s.send(p, proto.LeaveOK())
}

func (s *Server) handleTake(p *player, msg proto.Message) {
	if p.state != nim.InGame {
		s.send(p, proto.TakeErr(nim.ErrNotInGame, ""))
		return
	}

	if len(msg.Params) < 1 {
		s.send(p, proto.TakeErr(nim.ErrInvalidParams, "Missing count"))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	count, _ := strconv.Atoi(msg.Params[0])

	r := s.roomByID(p.room)
	if r == nil {
		s.send(p, proto.TakeErr(nim.ErrInternal, ""))
		return
	}
	seat := r.seatOf(p.slot)

	if !r.game.IsTurn(seat) {
		s.send(p, proto.TakeErr(nim.ErrNotYourTurn, ""))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	if !r.game.ValidTake(count) {
		s.send(p, proto.TakeErr(nim.ErrInvalidMove, ""))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	if !r.game.Take(seat, count) {
		s.send(p, proto.TakeErr(nim.ErrInvalidMove, ""))
		return
	}

	remaining := r.game.Stones
	opp := r.seatedOpponent(s, p.slot)

	if r.game.Over() {
		var winner, loser *player
		if r.game.Winner == seat {
			winner, loser = p, opp
		} else {
			winner, loser = opp, p
		}

		over := proto.GameOver(winner.name(), loser.name())
		s.send(p, over)
		if opp != nil && opp.conn != nil {
			s.send(opp, over)
		}
		s.record(r, winner, loser, "played")

		p.state = nim.Lobby
		if opp != nil {
			opp.state = nim.Lobby
			s.unseatPlayer(r, opp)
		}
		s.unseatPlayer(r, p)
		return
	}

	s.send(p, proto.TakeOK(remaining, r.game.IsTurn(seat)))
	if opp != nil && opp.conn != nil {
		s.send(opp, proto.OpponentAction("TAKE", count, remaining))
	}
}

func (s *Server) handleSkip(p *player) {
	if p.state != nim.InGame {
		s.send(p, proto.SkipErr(nim.ErrNotInGame, ""))
		return
	}

	r := s.roomByID(p.room)
	if r == nil {
		s.send(p, proto.SkipErr(nim.ErrInternal, ""))
		return
	}
	seat := r.seatOf(p.slot)

	if !r.game.IsTurn(seat) {
		s.send(p, proto.SkipErr(nim.ErrNotYourTurn, ""))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	if !r.game.CanSkip(seat) {
		s.send(p, proto.SkipErr(nim.ErrNoSkipsLeft, ""))
		p.invalid++
		s.enforceInvalidCap(p)
		return
	}

	if !r.game.Skip(seat) {
		s.send(p, proto.SkipErr(nim.ErrInternal, ""))
		return
	}
	p.skips = r.game.Skips[seat]

	s.send(p, proto.SkipOK(r.game.IsTurn(seat)))
	if opp := r.seatedOpponent(s, p.slot); opp != nil && opp.conn != nil {
		s.send(opp, proto.OpponentAction("SKIP", 0, r.game.Stones))
	}
}

// disconnect ends a session.  An ungraceful break inside a room
// parks the record for the reconnect window and pauses a running
// game; everything else frees the slot, conceding any live game.
func (s *Server) disconnect(p *player, graceful bool) {
	nim.Debug.Printf("Disconnect: player='%s', graceful=%v, room=%d",
		p.name(), graceful, p.room)

	if r := s.roomByID(p.room); r != nil {
		opp := r.seatedOpponent(s, p.slot)

		if !graceful && opp != nil {
			if opp.conn != nil {
				s.send(opp, proto.PlayerStatus(p.name(), proto.StatusDisconnected))
			}
			if r.game.Phase == game.Playing {
				r.game.Pause()
			}
			p.park(time.Now())
			return
		}

		if r.game.Phase == game.Playing || r.game.Phase == game.Paused {
			s.forfeitGame(r, p, "forfeit")
		}
		s.unseatPlayer(r, p)
	}

	p.release()
}

// reconnectTimeout gives up on a parked session: the opponent, if
// any, wins the suspended game.
func (s *Server) reconnectTimeout(p *player) {
	log.Printf("Player '%s' reconnect timeout expired", p.name())

	if r := s.roomByID(p.room); r != nil {
		opp := r.seatedOpponent(s, p.slot)
		if opp != nil {
			s.record(r, opp, p, "timeout")
		}
		if opp != nil && opp.conn != nil {
			s.send(opp, proto.GameOver(opp.name(), p.name()))
			s.unseatPlayer(r, opp)
			opp.state = nim.Lobby
		}
		s.unseatPlayer(r, p)
	}

	p.release()
}

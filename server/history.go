// Game History Hook
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
	"time"

	"go-nim"
	"go-nim/game"
	"go-nim/proto"
)

// GameRecord describes one finished game for the history store.
type GameRecord struct {
	Room        string
	Winner      string
	Loser       string
	Reason      string // "played", "forfeit" or "timeout"
	StonesTaken int
	Started     time.Time
	Finished    time.Time
}

// History consumes finished games.  Record must not block the caller.
type History interface {
	Record(rec GameRecord)
}

// record hands a finished game to the history store, if one is
// configured.
func (s *Server) record(r *room, winner, loser *player, reason string) {
	if s.history == nil {
		return
	}
	s.history.Record(GameRecord{
		Room:        r.name,
		Winner:      winner.name(),
		Loser:       loser.name(),
		Reason:      reason,
		StonesTaken: nim.InitialStones - r.game.Stones,
		Started:     r.started,
		Finished:    time.Now(),
	})
}

// forfeitGame ends a live game in favour of the opponent of the
// departing player.  The connected opponent is told and moved back to
// the lobby; a dormant opponent keeps its seat.
func (s *Server) forfeitGame(r *room, leaver *player, reason string) {
	opp := r.seatedOpponent(s, leaver.slot)
	r.game.Phase = game.Finished
	if opp != nil {
		r.game.Winner = r.seatOf(opp.slot)
		s.record(r, opp, leaver, reason)
	}
	if opp != nil && opp.conn != nil {
		s.send(opp, proto.GameOver(opp.name(), leaver.name()))
		s.unseatPlayer(r, opp)
		opp.state = nim.Lobby
	}
}

// Misere Nim Rules
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

// Package game holds the rules of one-pile misere Nim: players
// alternate removing 1 to 3 stones, each may skip once per game, and
// whoever removes the last stone loses.  The position is a plain value
// with no I/O; every operation reports success as a boolean and leaves
// the position untouched on failure.
package game

import (
	"fmt"

	"go-nim"
)

// Phase of a game within a room.
type Phase uint8

const (
	Waiting Phase = iota
	Playing
	Paused
	Finished
)

func (p Phase) String() string {
	switch p {
	case Waiting:
		return "WAITING"
	case Playing:
		return "PLAYING"
	case Paused:
		return "PAUSED"
	case Finished:
		return "FINISHED"
	default:
		panic(fmt.Sprintf("Illegal phase: %d", uint8(p)))
	}
}

// Game is one misere Nim position between the two players of a room,
// identified by their in-room indices 0 and 1.
type Game struct {
	Phase   Phase
	Stones  int
	Current int
	Skips   [2]int
	Winner  int // -1 until decided
}

// Init resets the position to its pre-game state.
func (g *Game) Init() {
	g.Phase = Waiting
	g.Stones = nim.InitialStones
	g.Current = 0
	g.Skips[0] = nim.SkipsPerPlayer
	g.Skips[1] = nim.SkipsPerPlayer
	g.Winner = -1
}

// Start begins play.  Player 0 moves first.
func (g *Game) Start() bool {
	if g.Phase != Waiting {
		return false
	}
	g.Phase = Playing
	g.Stones = nim.InitialStones
	g.Current = 0
	g.Skips[0] = nim.SkipsPerPlayer
	g.Skips[1] = nim.SkipsPerPlayer
	g.Winner = -1
	return true
}

// ValidTake reports whether removing count stones is within the take
// range and the pile.
func (g *Game) ValidTake(count int) bool {
	if count < nim.MinTake || count > nim.MaxTake {
		return false
	}
	return count <= g.Stones
}

// Take removes count stones for the given player.  Removing the last
// stone finishes the game with the opponent as winner.
func (g *Game) Take(player, count int) bool {
	if g.Phase != Playing || g.Current != player {
		return false
	}
	if !g.ValidTake(count) {
		return false
	}

	g.Stones -= count
	if g.Stones == 0 {
		g.Phase = Finished
		g.Winner = 1 - player
		return true
	}

	g.Current = 1 - g.Current
	return true
}

// Skip passes the turn, spending one of the player's skip credits.
func (g *Game) Skip(player int) bool {
	if g.Phase != Playing || g.Current != player {
		return false
	}
	if g.Skips[player] <= 0 {
		return false
	}

	g.Skips[player]--
	g.Current = 1 - g.Current
	return true
}

// CanSkip reports whether the player has skip credit left.
func (g *Game) CanSkip(player int) bool {
	return g.Skips[player] > 0
}

// IsTurn reports whether it is the given player's move.
func (g *Game) IsTurn(player int) bool {
	return g.Phase == Playing && g.Current == player
}

// Pause suspends a running game, keeping the whole position so a
// later Resume is lossless.
func (g *Game) Pause() bool {
	if g.Phase != Playing {
		return false
	}
	g.Phase = Paused
	return true
}

func (g *Game) Resume() bool {
	if g.Phase != Paused {
		return false
	}
	g.Phase = Playing
	return true
}

func (g *Game) Over() bool {
	return g.Phase == Finished
}

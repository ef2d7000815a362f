// Protocol Emission
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

package proto

import (
	"fmt"

	"go-nim"
)

// Status values carried by PLAYER_STATUS.
type Status uint8

const (
	StatusConnected Status = iota
	StatusDisconnected
	StatusReconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "CONNECTED"
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusReconnected:
		return "RECONNECTED"
	default:
		return "UNKNOWN"
	}
}

// One helper per server message, each producing the exact wire form
// including the trailing newline.

func LoginOK() string {
	return "LOGIN_OK\n"
}

func LoginErr(code nim.ErrorCode, reason string) string {
	if reason == "" {
		reason = code.String()
	}
	return fmt.Sprintf("LOGIN_ERR;%d;%s\n", code, reason)
}

// Rooms wraps an already rendered room listing.  With no active rooms
// the payload is the bare count, producing the ROOMS;0 frame.
func Rooms(listing string) string {
	if listing == "" {
		listing = "0"
	}
	return fmt.Sprintf("ROOMS;%s\n", listing)
}

func RoomCreated(id int) string {
	return fmt.Sprintf("ROOM_CREATED;%d\n", id)
}

func RoomJoined(id int, opponent string) string {
	return fmt.Sprintf("ROOM_JOINED;%d;%s\n", id, opponent)
}

func RoomErr(code nim.ErrorCode, reason string) string {
	if reason == "" {
		reason = code.String()
	}
	return fmt.Sprintf("ROOM_ERR;%d;%s\n", code, reason)
}

func LeaveOK() string {
	return "LEAVE_OK\n"
}

func GameStart(stones int, yourTurn bool, opponent string) string {
	return fmt.Sprintf("GAME_START;%d;%d;%s\n", stones, b2i(yourTurn), opponent)
}

func TakeOK(remaining int, yourTurn bool) string {
	return fmt.Sprintf("TAKE_OK;%d;%d\n", remaining, b2i(yourTurn))
}

func TakeErr(code nim.ErrorCode, reason string) string {
	if reason == "" {
		reason = code.String()
	}
	return fmt.Sprintf("TAKE_ERR;%d;%s\n", code, reason)
}

func SkipOK(yourTurn bool) string {
	return fmt.Sprintf("SKIP_OK;%d\n", b2i(yourTurn))
}

func SkipErr(code nim.ErrorCode, reason string) string {
	if reason == "" {
		reason = code.String()
	}
	return fmt.Sprintf("SKIP_ERR;%d;%s\n", code, reason)
}

func OpponentAction(action string, param, remaining int) string {
	return fmt.Sprintf("OPPONENT_ACTION;%s;%d;%d\n", action, param, remaining)
}

func GameOver(winner, loser string) string {
	return fmt.Sprintf("GAME_OVER;%s;%s\n", winner, loser)
}

func PingMsg() string {
	return "PING\n"
}

func PongMsg() string {
	return "PONG\n"
}

func PlayerStatus(nick string, status Status) string {
	return fmt.Sprintf("PLAYER_STATUS;%s;%s\n", nick, status)
}

func Error(code nim.ErrorCode, message string) string {
	if message == "" {
		message = code.String()
	}
	return fmt.Sprintf("ERROR;%d;%s\n", code, message)
}

func ServerShutdown() string {
	return "SERVER_SHUTDOWN\n"
}

func WaitOpponent() string {
	return "WAIT_OPPONENT\n"
}

func GameResumed(stones int, yourTurn bool, yourSkips, opponentSkips int) string {
	return fmt.Sprintf("GAME_RESUMED;%d;%d;%d;%d\n",
		stones, b2i(yourTurn), yourSkips, opponentSkips)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Common Constants and Shared Vocabulary
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

package nim

import (
	"fmt"
	"time"
)

// Network defaults and hard limits
const (
	DefaultPort       = 10000
	DefaultBindAddr   = "0.0.0.0"
	DefaultMaxClients = 50
	DefaultMaxRooms   = 10

	// Per-connection receive buffer; one byte is reserved for the
	// line terminator so at most BufferSize-1 bytes accumulate.
	BufferSize = 1024

	// A single frame, terminator included
	MaxMessageLength = 512

	PlayersPerRoom    = 2
	MaxNicknameLength = 32
	MaxRoomNameLength = 64
)

// Game constants
const (
	InitialStones  = 21
	MinTake        = 1
	MaxTake        = 3
	SkipsPerPlayer = 1
)

// Liveness and abuse limits
const (
	ReconnectWindow = 30 * time.Second
	PingInterval    = 10 * time.Second
	PongTimeout     = 5 * time.Second
	LoginTimeout    = 30 * time.Second

	MaxInvalidMessages   = 3
	MaxMessagesPerSecond = 20
	MaxUnterminatedBytes = 256
)

// ErrorCode enumerates the protocol error codes.  The numeric values
// are part of the wire format and must not be reordered.
type ErrorCode int

const (
	ErrNone            ErrorCode = 0
	ErrInvalidFormat   ErrorCode = 1
	ErrUnknownCommand  ErrorCode = 2
	ErrInvalidParams   ErrorCode = 3
	ErrNotLoggedIn     ErrorCode = 4
	ErrAlreadyLoggedIn ErrorCode = 5
	ErrNicknameTaken   ErrorCode = 6
	ErrNicknameInvalid ErrorCode = 7
	ErrRoomNotFound    ErrorCode = 8
	ErrRoomFull        ErrorCode = 9
	ErrRoomNameTaken   ErrorCode = 10
	ErrNotInRoom       ErrorCode = 11
	ErrNotInGame       ErrorCode = 12
	ErrNotYourTurn     ErrorCode = 13
	ErrInvalidMove     ErrorCode = 14
	ErrNoSkipsLeft     ErrorCode = 15
	ErrServerFull      ErrorCode = 16
	ErrMaxRooms        ErrorCode = 17
	ErrGameInProgress  ErrorCode = 18
	ErrInternal        ErrorCode = 99
)

// String returns the canonical message for an error code.  Clients
// only ever see these strings, never internal error text.
func (e ErrorCode) String() string {
	switch e {
	case ErrNone:
		return "OK"
	case ErrInvalidFormat:
		return "Invalid message format"
	case ErrUnknownCommand:
		return "Unknown command"
	case ErrInvalidParams:
		return "Invalid parameters"
	case ErrNotLoggedIn:
		return "Not logged in"
	case ErrAlreadyLoggedIn:
		return "Already logged in"
	case ErrNicknameTaken:
		return "Nickname already taken"
	case ErrNicknameInvalid:
		return "Invalid nickname"
	case ErrRoomNotFound:
		return "Room not found"
	case ErrRoomFull:
		return "Room is full"
	case ErrRoomNameTaken:
		return "Room name already taken"
	case ErrNotInRoom:
		return "Not in a room"
	case ErrNotInGame:
		return "Not in a game"
	case ErrNotYourTurn:
		return "Not your turn"
	case ErrInvalidMove:
		return "Invalid move"
	case ErrNoSkipsLeft:
		return "No skips remaining"
	case ErrServerFull:
		return "Server is full"
	case ErrMaxRooms:
		return "Maximum rooms reached"
	case ErrGameInProgress:
		return "Game already in progress"
	case ErrInternal:
		return "Internal server error"
	default:
		return "Unknown error"
	}
}

// PlayerState tracks where a session is in its lifecycle.
type PlayerState uint8

const (
	Connecting PlayerState = iota
	Lobby
	InRoom
	InGame
	Disconnected
)

func (s PlayerState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Lobby:
		return "LOBBY"
	case InRoom:
		return "IN_ROOM"
	case InGame:
		return "IN_GAME"
	case Disconnected:
		return "DISCONNECTED"
	default:
		panic(fmt.Sprintf("Illegal player state: %d", uint8(s)))
	}
}

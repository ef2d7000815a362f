// Protocol Parsing and Validation
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

// Package proto implements the line protocol spoken between client
// and server.  A frame is one newline-terminated line of printable
// 7-bit text; fields are separated by semicolons, the first field
// naming the command.  The codec is pure: it never touches a socket.
package proto

import (
	"strings"

	"go-nim"
)

// Type identifies a client command.
type Type uint8

const (
	Unknown Type = iota
	Login
	ListRooms
	CreateRoom
	JoinRoom
	LeaveRoom
	Take
	Skip
	Ping
	Pong
	Logout
)

var commands = map[string]Type{
	"LOGIN":       Login,
	"LIST_ROOMS":  ListRooms,
	"CREATE_ROOM": CreateRoom,
	"JOIN_ROOM":   JoinRoom,
	"LEAVE_ROOM":  LeaveRoom,
	"TAKE":        Take,
	"SKIP":        Skip,
	"PING":        Ping,
	"PONG":        Pong,
	"LOGOUT":      Logout,
}

// Message is one parsed client frame.
type Message struct {
	Type   Type
	Params []string
	Raw    string
}

const (
	maxParams      = 10
	maxParamLength = 128
)

// Parse destructs a single frame, already stripped of its newline.
// Empty fields are skipped, at most maxParams parameters are kept and
// each is truncated to maxParamLength-1 bytes, mirroring the limits
// of the wire format.  The boolean result is false when the frame is
// empty, oversized or names no known command.
func Parse(raw string) (Message, bool) {
	msg := Message{Type: Unknown, Raw: raw}

	if len(raw) == 0 || len(raw) >= nim.MaxMessageLength {
		return msg, false
	}

	line := strings.TrimSuffix(raw, "\n")
	line = strings.TrimSuffix(line, "\r")
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}

	var fields []string
	for _, f := range strings.Split(line, ";") {
		if f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return msg, false
	}

	msg.Type = commands[fields[0]]
	for _, p := range fields[1:] {
		if len(msg.Params) >= maxParams {
			break
		}
		if len(p) >= maxParamLength {
			p = p[:maxParamLength-1]
		}
		msg.Params = append(msg.Params, p)
	}

	return msg, msg.Type != Unknown
}

// ValidateNickname checks the claimed nickname: nonempty, at most 32
// bytes, alphanumeric or underscore, first byte a letter.
func ValidateNickname(nick string) nim.ErrorCode {
	if len(nick) == 0 || len(nick) > nim.MaxNicknameLength {
		return nim.ErrNicknameInvalid
	}
	for i := 0; i < len(nick); i++ {
		c := nick[i]
		if !isAlnum(c) && c != '_' {
			return nim.ErrNicknameInvalid
		}
	}
	if !isAlpha(nick[0]) {
		return nim.ErrNicknameInvalid
	}
	return nim.ErrNone
}

// ValidateRoomName checks a room name: nonempty, at most 64 bytes,
// alphanumeric, underscore or space.
func ValidateRoomName(name string) nim.ErrorCode {
	if len(name) == 0 || len(name) > nim.MaxRoomNameLength {
		return nim.ErrInvalidParams
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isAlnum(c) && c != '_' && c != ' ' {
			return nim.ErrInvalidParams
		}
	}
	return nim.ErrNone
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool {
	return isAlpha(c) || (c >= '0' && c <= '9')
}

// Printable reports whether every byte of data is either printable
// 7-bit ASCII or a line terminator.  Anything else is treated as
// binary garbage by the read path.
func Printable(data []byte) bool {
	for _, c := range data {
		if c >= 32 && c <= 126 {
			continue
		}
		if c == '\n' || c == '\r' {
			continue
		}
		return false
	}
	return true
}

// Protocol Codec Tests
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
	"strings"
	"testing"

	"go-nim"
)

func TestParse(t *testing.T) {
	for _, test := range []struct {
		input  string
		ok     bool
		want   Type
		params []string
	}{
		{"LOGIN;alice", true, Login, []string{"alice"}},
		{"LOGIN;alice\r", true, Login, []string{"alice"}},
		{"LIST_ROOMS", true, ListRooms, nil},
		{"CREATE_ROOM;my room", true, CreateRoom, []string{"my room"}},
		{"JOIN_ROOM;3", true, JoinRoom, []string{"3"}},
		{"TAKE;2", true, Take, []string{"2"}},
		{"SKIP", true, Skip, nil},
		{"PING", true, Ping, nil},
		{"PONG", true, Pong, nil},
		{"LOGOUT", true, Logout, nil},

		// empty fields are skipped
		{"LOGIN;;alice", true, Login, []string{"alice"}},
		{";LOGIN;alice", true, Login, []string{"alice"}},

		// failures
		{"", false, Unknown, nil},
		{";;;", false, Unknown, nil},
		{"FROBNICATE;1", false, Unknown, nil},
		{"login;alice", false, Unknown, nil},
		{strings.Repeat("A", nim.MaxMessageLength), false, Unknown, nil},
	} {
		msg, ok := Parse(test.input)
		if ok != test.ok {
			t.Errorf("Parse(%q): ok = %v, want %v", test.input, ok, test.ok)
			continue
		}
		if !ok {
			continue
		}
		if msg.Type != test.want {
			t.Errorf("Parse(%q): type = %v, want %v", test.input, msg.Type, test.want)
		}
		if len(msg.Params) != len(test.params) {
			t.Errorf("Parse(%q): %d params, want %d",
				test.input, len(msg.Params), len(test.params))
			continue
		}
		for i, p := range test.params {
			if msg.Params[i] != p {
				t.Errorf("Parse(%q): param %d = %q, want %q",
					test.input, i, msg.Params[i], p)
			}
		}
	}
}

func TestParseLimits(t *testing.T) {
	// more than maxParams fields
	line := "LOGIN" + strings.Repeat(";x", maxParams+5)
	msg, ok := Parse(line)
	if !ok {
		t.Fatal("parse failed")
	}
	if len(msg.Params) != maxParams {
		t.Errorf("kept %d params, want %d", len(msg.Params), maxParams)
	}

	// oversized parameter is truncated
	long := strings.Repeat("a", maxParamLength+50)
	msg, ok = Parse("LOGIN;" + long)
	if !ok {
		t.Fatal("parse failed")
	}
	if len(msg.Params[0]) != maxParamLength-1 {
		t.Errorf("param length %d, want %d", len(msg.Params[0]), maxParamLength-1)
	}
}

func TestValidateNickname(t *testing.T) {
	for _, test := range []struct {
		nick string
		want nim.ErrorCode
	}{
		{"alice", nim.ErrNone},
		{"Bob_2", nim.ErrNone},
		{"a", nim.ErrNone},
		{strings.Repeat("a", nim.MaxNicknameLength), nim.ErrNone},

		{"", nim.ErrNicknameInvalid},
		{"1alice", nim.ErrNicknameInvalid},
		{"_alice", nim.ErrNicknameInvalid},
		{"al ice", nim.ErrNicknameInvalid},
		{"al-ice", nim.ErrNicknameInvalid},
		{strings.Repeat("a", nim.MaxNicknameLength+1), nim.ErrNicknameInvalid},
	} {
		if got := ValidateNickname(test.nick); got != test.want {
			t.Errorf("ValidateNickname(%q) = %v, want %v", test.nick, got, test.want)
		}
	}
}

func TestValidateRoomName(t *testing.T) {
	for _, test := range []struct {
		name string
		want nim.ErrorCode
	}{
		{"lounge", nim.ErrNone},
		{"room 1", nim.ErrNone},
		{"_x_", nim.ErrNone},
		{strings.Repeat("r", nim.MaxRoomNameLength), nim.ErrNone},

		{"", nim.ErrInvalidParams},
		{"room;1", nim.ErrInvalidParams},
		{"room\t1", nim.ErrInvalidParams},
		{strings.Repeat("r", nim.MaxRoomNameLength+1), nim.ErrInvalidParams},
	} {
		if got := ValidateRoomName(test.name); got != test.want {
			t.Errorf("ValidateRoomName(%q) = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestPrintable(t *testing.T) {
	for _, test := range []struct {
		data []byte
		want bool
	}{
		{[]byte("LOGIN;alice\r\n"), true},
		{[]byte(" ~"), true},
		{nil, true},
		{[]byte{0x00}, false},
		{[]byte{0x1b, '[', 'A'}, false},
		{[]byte("abc\x80def"), false},
		{[]byte{'\t'}, false},
	} {
		if got := Printable(test.data); got != test.want {
			t.Errorf("Printable(%q) = %v, want %v", test.data, got, test.want)
		}
	}
}

func TestEmit(t *testing.T) {
	for _, test := range []struct {
		got, want string
	}{
		{LoginOK(), "LOGIN_OK\n"},
		{LoginErr(nim.ErrNicknameTaken, ""), "LOGIN_ERR;6;Nickname already taken\n"},
		{Rooms(""), "ROOMS;0\n"},
		{Rooms("1;0,lounge,1,2"), "ROOMS;1;0,lounge,1,2\n"},
		{RoomCreated(4), "ROOM_CREATED;4\n"},
		{RoomJoined(4, "alice"), "ROOM_JOINED;4;alice\n"},
		{LeaveOK(), "LEAVE_OK\n"},
		{GameStart(21, true, "bob"), "GAME_START;21;1;bob\n"},
		{TakeOK(18, false), "TAKE_OK;18;0\n"},
		{TakeErr(nim.ErrNotYourTurn, ""), "TAKE_ERR;13;Not your turn\n"},
		{SkipOK(false), "SKIP_OK;0\n"},
		{SkipErr(nim.ErrNoSkipsLeft, ""), "SKIP_ERR;15;No skips remaining\n"},
		{OpponentAction("TAKE", 3, 18), "OPPONENT_ACTION;TAKE;3;18\n"},
		{OpponentAction("SKIP", 0, 18), "OPPONENT_ACTION;SKIP;0;18\n"},
		{GameOver("alice", "bob"), "GAME_OVER;alice;bob\n"},
		{PlayerStatus("bob", StatusDisconnected), "PLAYER_STATUS;bob;DISCONNECTED\n"},
		{PlayerStatus("bob", StatusReconnected), "PLAYER_STATUS;bob;RECONNECTED\n"},
		{Error(nim.ErrNotLoggedIn, "Login timeout"), "ERROR;4;Login timeout\n"},
		{Error(nim.ErrInvalidFormat, ""), "ERROR;1;Invalid message format\n"},
		{ServerShutdown(), "SERVER_SHUTDOWN\n"},
		{WaitOpponent(), "WAIT_OPPONENT\n"},
		{GameResumed(17, true, 1, 0), "GAME_RESUMED;17;1;1;0\n"},
	} {
		if test.got != test.want {
			t.Errorf("got %q, want %q", test.got, test.want)
		}
	}
}

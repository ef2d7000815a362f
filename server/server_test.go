// Session Engine Tests
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
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-nim"
	"go-nim/conf"
)

// testConf returns a configuration with timeouts far in the future,
// so only the behavior under test is time-sensitive.
func testConf() *conf.Conf {
	return &conf.Conf{
		Server: conf.ServerConf{
			BindAddr:   "127.0.0.1",
			Port:       0,
			MaxClients: 8,
			MaxRooms:   4,
		},
		Proto: conf.ProtoConf{
			PingInterval:    time.Hour,
			PongTimeout:     time.Hour,
			LoginTimeout:    time.Hour,
			ReconnectWindow: time.Hour,
			Tick:            10 * time.Millisecond,
		},
	}
}

func startServer(t *testing.T, c *conf.Conf) *Server {
	t.Helper()
	s := New(c, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s
}

// client is one scripted protocol peer over an in-memory pipe.
type client struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

func connect(t *testing.T, s *Server) *client {
	t.Helper()
	ours, theirs := net.Pipe()
	c := &client{t: t, conn: ours, lines: make(chan string, 64)}

	go func() {
		scan := bufio.NewScanner(ours)
		for scan.Scan() {
			c.lines <- scan.Text()
		}
		close(c.lines)
	}()

	s.Connect(theirs, "pipe")
	return c
}

func (c *client) send(line string) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *client) sendRaw(data []byte) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err := c.conn.Write(data)
	require.NoError(c.t, err)
}

// expect asserts the next line from the server.
func (c *client) expect(want string) {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		require.True(c.t, ok, "connection closed, expected %q", want)
		require.Equal(c.t, want, line)
	case <-time.After(2 * time.Second):
		c.t.Fatalf("timeout waiting for %q", want)
	}
}

// expectEventually drains lines until the wanted one arrives.
func (c *client) expectEventually(want string) {
	c.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-c.lines:
			require.True(c.t, ok, "connection closed, expected %q", want)
			if line == want {
				return
			}
		case <-deadline:
			c.t.Fatalf("timeout waiting for %q", want)
		}
	}
}

// expectClosed asserts the server hangs up.
func (c *client) expectClosed() {
	c.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.lines:
			if !ok {
				return
			}
		case <-deadline:
			c.t.Fatal("timeout waiting for close")
		}
	}
}

func (c *client) login(nick string) {
	c.t.Helper()
	c.send("LOGIN;" + nick)
	c.expect("LOGIN_OK")
}

// startedGame logs in both players and brings them into a running
// game; alice created the room and moves first.
func startedGame(t *testing.T, s *Server) (alice, bob *client) {
	t.Helper()
	alice = connect(t, s)
	alice.login("alice")
	bob = connect(t, s)
	bob.login("bob")

	alice.send("CREATE_ROOM;lounge")
	alice.expect("ROOM_CREATED;0")
	alice.expect("WAIT_OPPONENT")

	bob.send("JOIN_ROOM;0")
	bob.expect("ROOM_JOINED;0;alice")
	alice.expect("GAME_START;21;1;bob")
	bob.expect("GAME_START;21;0;alice")
	return alice, bob
}

func TestLogin(t *testing.T) {
	s := startServer(t, testConf())
	c := connect(t, s)

	c.send("LIST_ROOMS")
	c.expect("ERROR;4;Not logged in")

	c.send("LOGIN;1bad")
	c.expect("LOGIN_ERR;7;Invalid nickname")

	c.login("alice")

	c.send("LOGIN;alice")
	c.expect("LOGIN_ERR;5;Already logged in")

	c.send("LIST_ROOMS")
	c.expect("ROOMS;0")
}

func TestNicknameTaken(t *testing.T) {
	s := startServer(t, testConf())
	a := connect(t, s)
	a.login("alice")

	b := connect(t, s)
	b.send("LOGIN;alice")
	b.expect("LOGIN_ERR;6;Nickname already taken")

	// the slot is still usable under another name
	b.login("bob")
}

func TestServerFull(t *testing.T) {
	c := testConf()
	c.Server.MaxClients = 1
	s := startServer(t, c)

	a := connect(t, s)
	a.login("alice")

	b := connect(t, s)
	b.expect("LOGIN_ERR;16;Server is full")
	b.expectClosed()
}

func TestRooms(t *testing.T) {
	s := startServer(t, testConf())
	a := connect(t, s)
	a.login("alice")

	a.send("CREATE_ROOM;bad/name")
	a.expect("ROOM_ERR;3;Invalid parameters")

	a.send("CREATE_ROOM;lounge")
	a.expect("ROOM_CREATED;0")
	a.expect("WAIT_OPPONENT")

	a.send("CREATE_ROOM;another")
	a.expect("ROOM_ERR;18;Game already in progress")

	b := connect(t, s)
	b.login("bob")
	b.send("LIST_ROOMS")
	b.expect("ROOMS;1;0,lounge,1,2")

	b.send("CREATE_ROOM;lounge")
	b.expect("ROOM_ERR;10;Room name already taken")

	b.send("JOIN_ROOM;7")
	b.expect("ROOM_ERR;8;Room not found")

	// leaving the only seat tears the room down
	a.send("LEAVE_ROOM")
	a.expect("LEAVE_OK")
	b.send("LIST_ROOMS")
	b.expect("ROOMS;0")
}

func TestMaxRooms(t *testing.T) {
	c := testConf()
	c.Server.MaxRooms = 1
	s := startServer(t, c)

	a := connect(t, s)
	a.login("alice")
	a.send("CREATE_ROOM;one")
	a.expect("ROOM_CREATED;0")
	a.expect("WAIT_OPPONENT")

	b := connect(t, s)
	b.login("bob")
	b.send("CREATE_ROOM;two")
	b.expect("ROOM_ERR;17;Maximum rooms reached")
}

// A numeric room id that fails to parse behaves like id 0.
func TestJoinRoomLooseID(t *testing.T) {
	s := startServer(t, testConf())
	a := connect(t, s)
	a.login("alice")
	a.send("CREATE_ROOM;lounge")
	a.expect("ROOM_CREATED;0")
	a.expect("WAIT_OPPONENT")

	b := connect(t, s)
	b.login("bob")
	b.send("JOIN_ROOM;xyz")
	b.expect("ROOM_JOINED;0;alice")
}

func TestFullGame(t *testing.T) {
	s := startServer(t, testConf())
	alice, bob := startedGame(t, s)

	take := func(from, other *client, count, left int) {
		t.Helper()
		from.send("TAKE;" + strconv.Itoa(count))
		from.expect("TAKE_OK;" + strconv.Itoa(left) + ";0")
		other.expect("OPPONENT_ACTION;TAKE;" + strconv.Itoa(count) + ";" + strconv.Itoa(left))
	}

	bob.send("TAKE;1")
	bob.expect("TAKE_ERR;13;Not your turn")

	alice.send("TAKE;4")
	alice.expect("TAKE_ERR;14;Invalid move")

	take(alice, bob, 3, 18)
	take(bob, alice, 3, 15)
	take(alice, bob, 3, 12)
	take(bob, alice, 3, 9)
	take(alice, bob, 3, 6)
	take(bob, alice, 3, 3)
	take(alice, bob, 2, 1)

	// bob has to take the last stone and loses
	bob.send("TAKE;1")
	bob.expect("GAME_OVER;alice;bob")
	alice.expect("GAME_OVER;alice;bob")

	// both are back in the lobby, the room is gone
	alice.send("LIST_ROOMS")
	alice.expect("ROOMS;0")
	bob.send("CREATE_ROOM;rematch")
	bob.expect("ROOM_CREATED;0")
	bob.expect("WAIT_OPPONENT")
}

func TestSkip(t *testing.T) {
	s := startServer(t, testConf())
	alice, bob := startedGame(t, s)

	alice.send("SKIP")
	alice.expect("SKIP_OK;0")
	bob.expect("OPPONENT_ACTION;SKIP;0;21")

	bob.send("SKIP")
	bob.expect("SKIP_OK;0")
	alice.expect("OPPONENT_ACTION;SKIP;0;21")

	alice.send("TAKE;1")
	alice.expect("TAKE_OK;20;0")
	bob.expect("OPPONENT_ACTION;TAKE;1;20")

	bob.send("SKIP")
	bob.expect("SKIP_ERR;15;No skips remaining")
}

func TestLeaveDuringGame(t *testing.T) {
	s := startServer(t, testConf())
	alice, bob := startedGame(t, s)

	bob.send("LEAVE_ROOM")
	bob.expect("LEAVE_OK")
	alice.expect("GAME_OVER;alice;bob")

	alice.send("LIST_ROOMS")
	alice.expect("ROOMS;0")
}

func TestLogoutDuringGame(t *testing.T) {
	s := startServer(t, testConf())
	alice, bob := startedGame(t, s)

	bob.send("LOGOUT")
	alice.expect("GAME_OVER;alice;bob")
	bob.expectClosed()

	// the nickname is free again
	c := connect(t, s)
	c.login("bob")
}

func TestReconnect(t *testing.T) {
	s := startServer(t, testConf())
	alice, bob := startedGame(t, s)

	alice.send("TAKE;3")
	alice.expect("TAKE_OK;18;0")
	bob.expect("OPPONENT_ACTION;TAKE;3;18")

	// abrupt connection loss pauses the game
	bob.conn.Close()
	alice.expect("PLAYER_STATUS;bob;DISCONNECTED")

	alice.send("TAKE;1")
	alice.expect("TAKE_ERR;13;Not your turn")

	// a new connection under the same nickname resumes losslessly
	bob2 := connect(t, s)
	bob2.send("LOGIN;bob")
	bob2.expect("LOGIN_OK")
	bob2.expect("GAME_RESUMED;18;1;1;1")
	alice.expect("PLAYER_STATUS;bob;RECONNECTED")

	bob2.send("TAKE;2")
	bob2.expect("TAKE_OK;16;0")
	alice.expect("OPPONENT_ACTION;TAKE;2;16")
}

func TestReconnectExpiry(t *testing.T) {
	c := testConf()
	c.Proto.ReconnectWindow = 50 * time.Millisecond
	s := startServer(t, c)
	alice, bob := startedGame(t, s)

	bob.conn.Close()
	alice.expect("PLAYER_STATUS;bob;DISCONNECTED")
	alice.expect("GAME_OVER;alice;bob")

	// the dormant session was freed along with its nickname
	d := connect(t, s)
	d.login("bob")
	d.send("LIST_ROOMS")
	d.expect("ROOMS;0")
}

func TestLoginTimeout(t *testing.T) {
	c := testConf()
	c.Proto.LoginTimeout = 50 * time.Millisecond
	s := startServer(t, c)

	a := connect(t, s)
	a.expect("ERROR;4;Login timeout")
	a.expectClosed()
}

func TestPingPong(t *testing.T) {
	c := testConf()
	c.Proto.PingInterval = 30 * time.Millisecond
	s := startServer(t, c)

	a := connect(t, s)
	a.login("alice")
	a.expect("PING")
	a.send("PONG")

	// answering keeps the session alive through the next round
	a.expect("PING")
	a.send("PONG")
	a.send("LIST_ROOMS")
	a.expect("ROOMS;0")
}

func TestPongTimeout(t *testing.T) {
	c := testConf()
	c.Proto.PingInterval = 30 * time.Millisecond
	c.Proto.PongTimeout = 30 * time.Millisecond
	s := startServer(t, c)

	a := connect(t, s)
	a.login("alice")
	a.expect("PING")
	a.expectClosed()
}

func TestClientPing(t *testing.T) {
	s := startServer(t, testConf())
	a := connect(t, s)
	a.login("alice")
	a.send("PING")
	a.expect("PONG")
}

func TestInvalidMessageCap(t *testing.T) {
	s := startServer(t, testConf())
	a := connect(t, s)
	a.login("alice")

	a.send("FROBNICATE")
	a.send("FROBNICATE")
	a.send("FROBNICATE")
	a.expect("ERROR;1;Too many invalid messages")
	a.expectClosed()
}

func TestBinaryData(t *testing.T) {
	s := startServer(t, testConf())
	a := connect(t, s)
	a.login("alice")

	junk := []byte{0x00, 0x01, 0x02, '\n'}
	a.sendRaw(junk)
	a.sendRaw(junk)
	a.sendRaw(junk)
	a.expect("ERROR;1;Binary data not allowed")
	a.expectClosed()
}

func TestUnterminatedFlood(t *testing.T) {
	s := startServer(t, testConf())
	a := connect(t, s)
	a.login("alice")

	a.sendRaw([]byte(strings.Repeat("A", nim.MaxUnterminatedBytes+50)))
	a.expect("ERROR;1;Message too long")
	a.expectClosed()
}

func TestRateLimit(t *testing.T) {
	s := startServer(t, testConf())
	a := connect(t, s)
	a.login("alice")

	// Enough frames in one burst to overrun the per-second budget
	// even if the burst straddles a second boundary.
	var b strings.Builder
	for i := 0; i < 3*nim.MaxMessagesPerSecond; i++ {
		b.WriteString("PING\n")
	}
	a.sendRaw([]byte(b.String()))

	a.expectEventually("ERROR;1;Too many invalid messages")
	a.expectClosed()
}

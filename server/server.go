// Connection Loop and Framing
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

// Package server contains the session and room engine: a single
// goroutine owns every player and room record and consumes events
// from an internal channel, so one message is always dispatched to
// completion, replies flushed, before the next is looked at.  Each
// connection only gets a reader goroutine that forwards raw chunks
// into the loop.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"go-nim"
	"go-nim/conf"
	"go-nim/game"
	"go-nim/proto"
)

const writeTimeout = 5 * time.Second

// event is what the loop consumes: one read result from a session's
// reader goroutine, or a fresh connection.
type event struct {
	conn   io.ReadWriteCloser // non-nil for a new connection
	remote string

	slot int
	gen  uint64
	data []byte
	err  error
}

// RoomInfo is a read-only room snapshot handed out to the web layer.
type RoomInfo struct {
	ID       int
	Name     string
	Players  int
	Capacity int
	Phase    string
	Stones   int
}

type Server struct {
	conf    *conf.Conf
	players []player
	rooms   []room
	history History

	ln     net.Listener
	events chan event
	snaps  chan chan []RoomInfo
	quit   chan struct{}
}

// New creates a server with empty player and room arenas.  history
// may be nil when no game-history store is configured.
func New(c *conf.Conf, history History) *Server {
	s := &Server{
		conf:    c,
		players: make([]player, c.Server.MaxClients),
		rooms:   make([]room, c.Server.MaxRooms),
		history: history,
		events:  make(chan event, 64),
		snaps:   make(chan chan []RoomInfo),
		quit:    make(chan struct{}),
	}
	for i := range s.players {
		s.players[i].slot = i
		s.players[i].room = -1
	}
	for i := range s.rooms {
		s.rooms[i].init(i)
	}
	return s
}

// Listen binds the TCP listener and starts accepting.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.conf.Server.BindAddr, strconv.Itoa(int(s.conf.Server.Port)))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go s.accept()
	log.Printf("Server initialized on %s (max clients: %d, max rooms: %d)",
		addr, s.conf.Server.MaxClients, s.conf.Server.MaxRooms)
	return nil
}

// Addr returns the bound listener address, for tests binding port 0.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) accept() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("Accept failed: %v", err)
			}
			return
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			err := tcp.SetKeepAlive(true)
			if err == nil {
				err = tcp.SetKeepAlivePeriod(10 * time.Second)
			}
			if err != nil {
				// Not every OS exposes all three knobs.
				nim.Debug.Printf("Keepalive not fully applied: %v", err)
			}
		}

		s.Connect(conn, conn.RemoteAddr().String())
	}
}

// Connect hands a connection to the loop.  It is the entry point for
// both accepted TCP sockets and upgraded websockets.
func (s *Server) Connect(conn io.ReadWriteCloser, remote string) {
	select {
	case s.events <- event{conn: conn, remote: remote}:
	case <-s.quit:
		conn.Close()
	}
}

// post forwards a reader event unless the loop has already exited.
func (s *Server) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	}
}

// readLoop pumps raw chunks from one connection into the loop.
func (s *Server) readLoop(slot int, gen uint64, conn io.ReadWriteCloser) {
	buf := make([]byte, nim.BufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !s.post(event{slot: slot, gen: gen, data: data}) {
				return
			}
		}
		if err != nil {
			s.post(event{slot: slot, gen: gen, err: err})
			return
		}
	}
}

// Run drives the loop until the context is cancelled.  All state
// mutation happens on this goroutine.
func (s *Server) Run(ctx context.Context) {
	log.Print("Server started, waiting for connections...")
	ticker := time.NewTicker(s.conf.Proto.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Print("Server shutting down...")
			s.shutdown()
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		case resp := <-s.snaps:
			resp <- s.snapshot()
		case <-ticker.C:
			s.checkTimeouts(time.Now())
		}
	}
}

func (s *Server) handleEvent(ev event) {
	if ev.conn != nil {
		s.handleConnect(ev.conn, ev.remote)
		return
	}

	p := &s.players[ev.slot]
	if !p.active || p.gen != ev.gen || p.conn == nil {
		return // stale reader
	}

	if ev.data != nil {
		s.handleData(p, ev.data, time.Now())
		return
	}

	if errors.Is(ev.err, io.EOF) {
		log.Printf("Client '%s' disconnected (connection closed)", p.name())
		// A clean close outside a live game frees the slot.
		s.disconnect(p, !s.inLiveGame(p))
	} else {
		log.Printf("Read error from '%s': %v", p.name(), ev.err)
		s.disconnect(p, false)
	}
}

// inLiveGame reports whether the player sits in a room whose game is
// running or paused.
func (s *Server) inLiveGame(p *player) bool {
	r := s.roomByID(p.room)
	if r == nil {
		return false
	}
	return r.game.Phase == game.Playing || r.game.Phase == game.Paused
}

func (s *Server) handleConnect(conn io.ReadWriteCloser, remote string) {
	slot := s.findFreeSlot()
	if slot < 0 {
		log.Printf("Server full, rejecting connection from %s", remote)
		io.WriteString(conn, proto.LoginErr(nim.ErrServerFull, ""))
		conn.Close()
		return
	}

	p := &s.players[slot]
	p.attach(conn, remote, time.Now())
	log.Printf("New client connected from %s (slot %d)", remote, slot)

	go s.readLoop(slot, p.gen, conn)
}

// handleData runs the guarded read path: character whitelist, buffer
// fit, flood cap, line extraction, rate limit, dispatch.
func (s *Server) handleData(p *player, data []byte, now time.Time) {
	p.lastActivity = now

	if !proto.Printable(data) {
		log.Printf("Binary/invalid data from '%s', counting as invalid message", p.name())
		p.invalid++
		if p.invalid >= nim.MaxInvalidMessages {
			log.Printf("Too many invalid messages from '%s', disconnecting", p.name())
			s.send(p, proto.Error(nim.ErrInvalidFormat, "Binary data not allowed"))
			s.disconnect(p, false)
		}
		return // the whole batch is discarded
	}

	if len(p.buf)+len(data) > nim.BufferSize-1 {
		log.Printf("Buffer overflow for player '%s', disconnecting", p.name())
		s.disconnect(p, false)
		return
	}
	p.buf = append(p.buf, data...)

	if len(p.buf) > nim.MaxUnterminatedBytes && bytes.IndexByte(p.buf, '\n') < 0 {
		log.Printf("Message too long without newline from '%s', disconnecting", p.name())
		s.send(p, proto.Error(nim.ErrInvalidFormat, "Message too long"))
		s.disconnect(p, false)
		return
	}

	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(p.buf[:i]), "\r")
		p.buf = p.buf[i+1:]

		if line == "" {
			continue
		}

		if !p.allowMessage(now) {
			log.Printf("Rate limit exceeded for '%s'", p.name())
			p.invalid++
			if s.enforceInvalidCap(p) {
				return
			}
			continue
		}

		nim.Debug.Printf("Received from '%s': %s", p.name(), line)
		s.handleMessage(p, line)

		if !p.active || p.conn == nil {
			return // disconnected during dispatch, drop the rest
		}
	}

	// Drop the exhausted buffer so its backing array can be reclaimed.
	if len(p.buf) == 0 {
		p.buf = nil
	}
}

// enforceInvalidCap terminates the session once the invalid-message
// budget is used up.  Returns true when the player was disconnected.
func (s *Server) enforceInvalidCap(p *player) bool {
	if p.invalid < nim.MaxInvalidMessages {
		return false
	}
	log.Printf("Too many invalid messages from '%s', disconnecting", p.name())
	s.send(p, proto.Error(nim.ErrInvalidFormat, "Too many invalid messages"))
	s.disconnect(p, false)
	return true
}

// send writes one message to a player's connection.  A write failure
// is logged and reported to the caller; the broken socket surfaces as
// a read error right after, so no retry happens here.
func (s *Server) send(p *player, msg string) bool {
	if p == nil || p.conn == nil {
		return false
	}
	if c, ok := p.conn.(net.Conn); ok {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	if _, err := io.WriteString(p.conn, msg); err != nil {
		log.Printf("Failed to send to '%s': %v", p.name(), err)
		return false
	}
	nim.Debug.Printf("Sent to '%s': %s", p.name(), strings.TrimSuffix(msg, "\n"))
	return true
}

// checkTimeouts runs the liveness sweep: reconnect expiry, login
// timeout, ping emission and pong timeout, in that order.
func (s *Server) checkTimeouts(now time.Time) {
	pc := &s.conf.Proto
	for i := range s.players {
		p := &s.players[i]
		if !p.active {
			continue
		}

		if p.state == nim.Disconnected {
			if p.reconnectExpired(now, pc.ReconnectWindow) {
				s.reconnectTimeout(p)
			}
			continue
		}

		if p.state == nim.Connecting && p.conn != nil &&
			now.Sub(p.lastActivity) > pc.LoginTimeout {
			log.Printf("Client at slot %d login timeout (no LOGIN received)", p.slot)
			s.send(p, proto.Error(nim.ErrNotLoggedIn, "Login timeout"))
			s.disconnect(p, false)
			continue
		}

		if p.needsPing(now, pc.PingInterval) {
			if s.send(p, proto.PingMsg()) {
				p.lastPing = now
				p.awaitingPong = true
			}
		}

		if p.pongExpired(now, pc.PongTimeout) {
			log.Printf("Player '%s' PONG timeout", p.name())
			s.disconnect(p, false)
		}
	}
}

// snapshot renders the room table for the web layer.
func (s *Server) snapshot() []RoomInfo {
	var infos []RoomInfo
	for i := range s.rooms {
		r := &s.rooms[i]
		if !r.active {
			continue
		}
		infos = append(infos, RoomInfo{
			ID:       r.id,
			Name:     r.name,
			Players:  r.count,
			Capacity: nim.PlayersPerRoom,
			Phase:    r.game.Phase.String(),
			Stones:   r.game.Stones,
		})
	}
	return infos
}

// Rooms answers a room snapshot from outside the loop goroutine.
func (s *Server) Rooms() []RoomInfo {
	resp := make(chan []RoomInfo, 1)
	select {
	case s.snaps <- resp:
	case <-s.quit:
		return nil
	}
	select {
	case infos := <-resp:
		return infos
	case <-s.quit:
		return nil
	}
}

// shutdown notifies every live socket and releases all resources.
func (s *Server) shutdown() {
	for i := range s.players {
		p := &s.players[i]
		if p.active && p.conn != nil {
			s.send(p, proto.ServerShutdown())
			p.conn.Close()
		}
	}
	if s.ln != nil {
		s.ln.Close()
	}
	close(s.quit)
	log.Print("Server shutdown complete")
}

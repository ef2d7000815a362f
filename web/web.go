// Status Web Interface
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

// Package web serves a read-only status page over HTTP and, when
// enabled, accepts websocket clients that speak the same line
// protocol as plain TCP connections.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"

	"go-nim/conf"
	"go-nim/server"
)

//go:embed *.tmpl
var html embed.FS

var funcs = template.FuncMap{
	"timefmt": func(t time.Time) string {
		s := time.Since(t).Round(time.Second)
		switch {
		case s < 5*time.Second:
			return "now"
		case s < time.Minute:
			return fmt.Sprintf("%.0fs ago", s.Seconds())
		default:
			return t.Format(time.Stamp)
		}
	},
	"now": func() string {
		return time.Now().Format(time.RFC3339)
	},
}

const recentGames = 25

// RoomSource produces a snapshot of the active rooms.
type RoomSource interface {
	Rooms() []server.RoomInfo
}

// GameSource produces recently finished games.
type GameSource interface {
	RecentGames(ctx context.Context, limit int) ([]server.GameRecord, error)
}

// Connector accepts a protocol connection; the session engine
// implements it.
type Connector interface {
	Connect(conn io.ReadWriteCloser, remote string)
}

type Web struct {
	conf  *conf.Conf
	rooms RoomSource
	games GameSource
	tmpl  *template.Template
	mux   *http.ServeMux
}

// New builds the web interface.  games may be nil when the history
// database is disabled.
func New(c *conf.Conf, rooms RoomSource, games GameSource, conn Connector) *Web {
	w := &Web{
		conf:  c,
		rooms: rooms,
		games: games,
		tmpl:  template.Must(template.New("index.tmpl").Funcs(funcs).ParseFS(html, "*.tmpl")),
		mux:   http.NewServeMux(),
	}

	w.mux.HandleFunc("/", w.index)
	if c.Web.WebSocket {
		w.mux.HandleFunc("/socket", upgrader(conn, c))
	}

	return w
}

// Start runs the HTTP listener until the process ends.
func (w *Web) Start() {
	addr := fmt.Sprintf(":%d", w.conf.Web.Port)
	log.Printf("Listening via HTTP on %s", addr)

	if err := http.ListenAndServe(addr, w.mux); err != nil {
		log.Print(err)
	}
}

func (w *Web) index(wr http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(wr, r)
		return
	}

	var games []server.GameRecord
	if w.games != nil {
		var err error
		games, err = w.games.RecentGames(r.Context(), recentGames)
		if err != nil {
			log.Print(err)
		}
	}

	data := struct {
		Rooms []server.RoomInfo
		Games []server.GameRecord
	}{
		Rooms: w.rooms.Rooms(),
		Games: games,
	}

	if err := w.tmpl.Execute(wr, data); err != nil {
		log.Print(err)
	}
}

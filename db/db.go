// Game History Database
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

// Package db stores finished games in a SQLite database.  Two
// handles are kept, one for reads and one with a single connection
// for writes; the statements live in the embedded .sql files next to
// this one, keyed by their file name.
package db

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"log"
	"path"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"go-nim"
	"go-nim/server"
)

//go:embed *.sql
var sql_dir embed.FS

type Store struct {
	read  *sql.DB
	write *sql.DB

	// Statements from select-*.sql run on READ, everything else on
	// WRITE; create-*.sql files are executed once at startup.
	queries  map[string]*sql.Stmt
	commands map[string]*sql.Stmt

	recs chan server.GameRecord
	done chan struct{}
}

// Open prepares the history store.  Failure to set up the schema or
// the statements is fatal, a server that silently drops history is
// worse than one that refuses to start.
func Open(file string) *Store {
	read, err := sql.Open("sqlite3", file)
	if err != nil {
		log.Fatal(err, ": ", file)
	}
	read.SetConnMaxLifetime(0)
	read.SetMaxIdleConns(1)

	write, err := sql.Open("sqlite3", file)
	if err != nil {
		log.Fatal(err, ": ", file)
	}
	write.SetConnMaxLifetime(0)
	write.SetMaxIdleConns(1)
	write.SetMaxOpenConns(1)

	st := &Store{
		read:     read,
		write:    write,
		queries:  make(map[string]*sql.Stmt),
		commands: make(map[string]*sql.Stmt),
		recs:     make(chan server.GameRecord, 16),
		done:     make(chan struct{}),
	}

	for _, pragma := range []string{
		// https://www.sqlite.org/pragma.html#pragma_journal_mode
		"journal_mode = WAL",
		// https://www.sqlite.org/pragma.html#pragma_synchronous
		"synchronous = normal",
		// https://www.sqlite.org/pragma.html#pragma_temp_store
		"temp_store = memory",
	} {
		nim.Debug.Printf("Run PRAGMA %v", pragma)
		if _, err := st.write.Exec("PRAGMA " + pragma + ";"); err != nil {
			log.Fatal(err)
		}
	}

	entries, err := sql_dir.ReadDir(".")
	if err != nil {
		log.Fatal(err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		base := path.Base(entry.Name())
		data, err := fs.ReadFile(sql_dir, entry.Name())
		if err != nil {
			log.Fatal(err)
		}

		if strings.HasPrefix(base, "create-") {
			_, err = st.write.Exec(string(data))
			nim.Debug.Printf("Executed query %v", base)
		} else {
			query := strings.TrimSuffix(base, ".sql")
			if strings.HasPrefix(query, "select-") {
				st.queries[query], err = st.read.Prepare(string(data))
				nim.Debug.Printf("Registered query %v", query)
			} else {
				st.commands[query], err = st.write.Prepare(string(data))
				nim.Debug.Printf("Registered command %v", query)
			}
		}
		if err != nil {
			log.Fatal(entry.Name(), ": ", err)
		}
	}

	go st.writer()
	return st
}

// Record queues a finished game.  The write happens on the store's
// own goroutine so the caller, the server loop, never blocks on the
// database; when the queue is full the record is dropped.
func (st *Store) Record(rec server.GameRecord) {
	select {
	case st.recs <- rec:
	default:
		log.Printf("History queue full, dropping game %s vs %s",
			rec.Winner, rec.Loser)
	}
}

func (st *Store) writer() {
	for rec := range st.recs {
		_, err := st.commands["insert-game"].Exec(
			rec.Room, rec.Winner, rec.Loser, rec.Reason,
			rec.StonesTaken, rec.Started, rec.Finished)
		if err != nil {
			log.Print(err)
		}
	}
	close(st.done)
}

// RecentGames returns the most recently finished games, newest first.
func (st *Store) RecentGames(ctx context.Context, limit int) ([]server.GameRecord, error) {
	rows, err := st.queries["select-games"].QueryContext(ctx, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []server.GameRecord
	for rows.Next() {
		var rec server.GameRecord
		err := rows.Scan(&rec.Room, &rec.Winner, &rec.Loser, &rec.Reason,
			&rec.StonesTaken, &rec.Started, &rec.Finished)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close drains the record queue and releases both handles.
func (st *Store) Close() {
	close(st.recs)
	<-st.done

	// https://www.sqlite.org/pragma.html#pragma_optimize
	if _, err := st.write.Exec("PRAGMA optimize;"); err != nil {
		log.Print(err)
	}
	if err := st.write.Close(); err != nil {
		log.Print(err)
	}
	if err := st.read.Close(); err != nil {
		log.Print(err)
	}
}

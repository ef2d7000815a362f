// Entry point
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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-nim/conf"
	"go-nim/db"
	"go-nim/server"
	"go-nim/web"
)

func main() {
	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Too many arguments passed to %s.\nUsage:\n",
			os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	config := conf.Load()

	// The operational log goes to a file unless -v redirects it to
	// standard output.
	if !conf.Verbose() && config.Log.File != "" {
		f, err := os.OpenFile(config.Log.File,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	var hist *db.Store
	if config.Database.File != "" {
		hist = db.Open(config.Database.File)
		defer hist.Close()
	}

	srv := server.New(config, historyOrNil(hist))
	if err := srv.Listen(); err != nil {
		log.Fatal(err)
	}

	if config.Web.Enabled {
		var games web.GameSource
		if hist != nil {
			games = hist
		}
		go web.New(config, srv, games, srv).Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.Run(ctx)
}

// historyOrNil avoids handing the server a non-nil interface holding
// a nil store.
func historyOrNil(st *db.Store) server.History {
	if st == nil {
		return nil
	}
	return st
}

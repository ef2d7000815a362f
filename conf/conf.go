// Configuration Specification and Management
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

package conf

import (
	"flag"
	"io"
	"log"
	"os"
	"time"

	"go-nim"

	"github.com/BurntSushi/toml"
)

const defconf = "go-nim.toml"

type ServerConf struct {
	BindAddr   string `toml:"bind_address"`
	Port       uint   `toml:"port"`
	MaxClients int    `toml:"max_clients"`
	MaxRooms   int    `toml:"max_rooms"`
}

type ProtoConf struct {
	PingInterval    time.Duration `toml:"ping_interval"`
	PongTimeout     time.Duration `toml:"pong_timeout"`
	LoginTimeout    time.Duration `toml:"login_timeout"`
	ReconnectWindow time.Duration `toml:"reconnect_window"`
	Tick            time.Duration `toml:"tick"`
}

type DatabaseConf struct {
	File string `toml:"file,omitempty"`
}

type WebConf struct {
	Enabled   bool `toml:"enabled"`
	Port      uint `toml:"port"`
	WebSocket bool `toml:"websocket"`
}

type LogConf struct {
	File string `toml:"file"`
}

// Internal representation
type Conf struct {
	Server   ServerConf   `toml:"server"`
	Proto    ProtoConf    `toml:"proto"`
	Database DatabaseConf `toml:"database"`
	Web      WebConf      `toml:"web"`
	Log      LogConf      `toml:"log"`
}

// Configuration object used by default
var defaultConfig = Conf{
	Server: ServerConf{
		BindAddr:   nim.DefaultBindAddr,
		Port:       nim.DefaultPort,
		MaxClients: nim.DefaultMaxClients,
		MaxRooms:   nim.DefaultMaxRooms,
	},
	Proto: ProtoConf{
		PingInterval:    nim.PingInterval,
		PongTimeout:     nim.PongTimeout,
		LoginTimeout:    nim.LoginTimeout,
		ReconnectWindow: nim.ReconnectWindow,
		Tick:            time.Second,
	},
	Database: DatabaseConf{
		File: "nim.db",
	},
	Web: WebConf{
		Enabled:   true,
		Port:      8080,
		WebSocket: true,
	},
	Log: LogConf{
		File: "nim_server.log",
	},
}

var (
	debug   = false
	verbose = false
	dump    = false
	cfile   = defconf
)

func init() {
	def := &defaultConfig

	flag.StringVar(&def.Server.BindAddr, "a", def.Server.BindAddr,
		"Address to bind the listener to")
	flag.UintVar(&def.Server.Port, "p", def.Server.Port,
		"Port to use for TCP connections")
	flag.IntVar(&def.Server.MaxClients, "c", def.Server.MaxClients,
		"Maximum number of concurrent clients")
	flag.IntVar(&def.Server.MaxRooms, "r", def.Server.MaxRooms,
		"Maximum number of rooms")

	flag.StringVar(&def.Database.File, "db", def.Database.File,
		"File to use for the game history database (empty to disable)")

	flag.BoolVar(&def.Web.Enabled, "web", def.Web.Enabled,
		"Enable the status web interface")
	flag.UintVar(&def.Web.Port, "wwwport", def.Web.Port,
		"Port to use for the HTTP server")
	flag.BoolVar(&def.Web.WebSocket, "websocket", def.Web.WebSocket,
		"Enable WebSocket connections")

	flag.StringVar(&def.Log.File, "log", def.Log.File,
		"File to append the operational log to")

	flag.BoolVar(&verbose, "v", verbose, "Log to standard output instead of a file")
	flag.BoolVar(&debug, "debug", debug, "Enable debug output")
	flag.BoolVar(&dump, "dump-config", dump, "Dump configuration to standard output")
	flag.StringVar(&cfile, "conf", cfile, "Path to configuration file")
}

// Verbose reports whether logging was redirected to standard output.
func Verbose() bool { return verbose }

// Load opens the configuration file, if any, and merges it over the
// flag-adjusted defaults.  Invalid values are fatal: a server bound to
// a nonsense port helps nobody.
func Load() *Conf {
	c := defaultConfig
	file, err := os.Open(cfile)
	if err != nil {
		if !os.IsNotExist(err) || cfile != defconf {
			log.Fatal(err)
		}
	} else {
		defer file.Close()
		if _, err := toml.NewDecoder(file).Decode(&c); err != nil {
			log.Print(err)
			c = defaultConfig
		}
	}

	if debug {
		nim.Debug.SetOutput(os.Stderr)
		log.Default().SetFlags(log.LstdFlags | log.Lshortfile)
		nim.Debug.Println("Debug logging has been enabled")
	}

	if dump {
		if err := c.Dump(os.Stdout); err != nil {
			log.Fatalln("Failed to dump configuration:", err)
		}
		os.Exit(0)
	}

	if c.Server.Port == 0 || c.Server.Port > 65535 {
		log.Fatalf("Invalid port: %d", c.Server.Port)
	}
	if c.Server.MaxClients <= 0 {
		log.Fatalf("Invalid max clients: %d", c.Server.MaxClients)
	}
	if c.Server.MaxRooms <= 0 {
		log.Fatalf("Invalid max rooms: %d", c.Server.MaxRooms)
	}

	return &c
}

// Serialise the configuration into a writer
func (c *Conf) Dump(wr io.Writer) error {
	return toml.NewEncoder(wr).Encode(c)
}

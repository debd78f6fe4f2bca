// GraphScope
// Copyright (C) 2025 Gravitational, Inc.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Command graphscope runs the scoped directory proxy.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/gravitational/graphscope/lib/config"
	"github.com/gravitational/graphscope/lib/service"
)

const version = "1.0.0"

func main() {
	app := kingpin.New("graphscope", "Scoped reverse proxy for the Microsoft Graph API.")
	app.HelpFlag.Short('h')

	start := app.Command("start", "Start the proxy.")
	configPath := start.Flag("config", "Path to the YAML configuration file.").
		Short('c').Default("/etc/graphscope.yaml").String()
	debug := start.Flag("debug", "Enable debug logging.").Short('d').Bool()

	versionCmd := app.Command("version", "Print the version and exit.")

	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	switch command {
	case start.FullCommand():
		if err := run(*configPath, *debug); err != nil {
			slog.Error("graphscope failed", "error", err)
			os.Exit(1)
		}
	case versionCmd.FullCommand():
		fmt.Println("graphscope", version)
	}
}

func run(configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	fc, err := config.ReadFromFile(configPath)
	if err != nil {
		return err
	}
	svc, err := service.New(fc)
	if err != nil {
		return err
	}
	return svc.Run(context.Background())
}

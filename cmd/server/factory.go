package main

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"

	"github.com/avbezrukov/linechat/chat"
	"github.com/avbezrukov/linechat/config"
	"github.com/avbezrukov/linechat/logging"
	"github.com/avbezrukov/linechat/server"
	"github.com/avbezrukov/linechat/state"
)

// deps groups together the objects every long-running piece of the process
// shares, mirroring the teacher's Container convention for common
// dependencies built once at startup.
type deps struct {
	cfg    config.Config
	roster *state.Roster
	chat   *chat.Service
	srv    *server.Server
	logger *slog.Logger
}

// makeDeps loads configuration from the environment, validates it, and wires
// up the roster, chat service, and listener that share it.
func makeDeps() (deps, error) {
	d := deps{}

	if err := envconfig.Process("", &d.cfg); err != nil {
		return d, fmt.Errorf("unable to process app config: %w", err)
	}
	if err := d.cfg.Validate(); err != nil {
		return d, fmt.Errorf("configuration validation failed: %w", err)
	}

	d.logger = logging.New(d.cfg.LogLevel)
	d.roster = state.NewRoster(d.cfg.HistorySize, d.cfg.DefaultNamePrefix)
	d.chat = chat.NewService(d.cfg, d.roster, d.logger)
	d.srv = server.New(d.cfg, d.chat, d.logger)

	return d, nil
}

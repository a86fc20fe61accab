package main

import (
	"io/fs"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"okey/internal/config"
	"okey/internal/game"
	"okey/internal/game/okey"
	"okey/internal/game/okey/bot"
	"okey/internal/logging"
	"okey/internal/server"
	"okey/internal/session"
	"okey/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if _, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir, Program: "okey-server"}); err != nil {
		logrus.Fatalf("setup logging: %v", err)
	}

	rules, err := cfg.Game.Rules()
	if err != nil {
		logrus.Fatalf("rules: %v", err)
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer store.Close()

	registry := game.NewRegistry()
	registry.Register(okey.Game{
		Rules: rules,
		Seats: cfg.Game.Seats,
		Bot:   bot.Brain{Salt: cfg.Game.BotSalt},
	})

	mgr := session.NewManager(registry, store)
	if err := mgr.Restore(); err != nil {
		logrus.Warnf("restore sessions: %v", err)
	}

	intervals := cfg.Game.Intervals
	go mgr.CleanupLoop(intervals.Cleanup(), intervals.MaxAge())
	go mgr.TickLoop(intervals.Tick())

	var webFS fs.FS
	if cfg.WebDir != "" {
		webFS = os.DirFS(cfg.WebDir)
	}
	srv := server.New(registry, mgr, webFS)

	logrus.WithFields(logrus.Fields{
		"addr":  cfg.Addr,
		"seats": cfg.Game.Seats,
		"turn":  rules.TurnTimeLimit,
	}).Info("listening")
	if err := http.ListenAndServe(cfg.Addr, srv); err != nil {
		logrus.Fatalf("server: %v", err)
	}
}

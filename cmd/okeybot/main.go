package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"okey/internal/botclient"
	"okey/internal/logging"
)

func main() {
	server := flag.String("server", envOr("OKEY_SERVER", "http://localhost:8080"), "server base URL")
	code := flag.String("session", os.Getenv("OKEY_SESSION"), "session code to join; empty creates one")
	player := flag.String("player", envOr("OKEY_PLAYER", "okeybot"), "player id")
	seed := flag.Uint64("seed", 0, "decision seed")
	startAt := flag.Int("start-at", 0, "start the match as host once this many players joined")
	level := flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	if _, err := logging.Setup(logging.Options{Level: *level, Dir: os.Getenv("LOG_DIR"), Program: "okeybot"}); err != nil {
		logrus.Fatalf("setup logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *code == "" {
		c, err := botclient.CreateSession(ctx, nil, *server, *player)
		if err != nil {
			logrus.Fatalf("create session: %v", err)
		}
		*code = c
		if *startAt == 0 {
			*startAt = 1
		}
		logrus.WithField("session", c).Info("created session")
	}

	client := &botclient.Client{
		URL:      botclient.SessionURL(*server, *code),
		PlayerID: *player,
		Seed:     *seed,
		StartAt:  *startAt,
	}
	res, err := client.Run(ctx)
	if err != nil {
		logrus.Fatalf("play: %v", err)
	}
	for _, r := range res.Results {
		logrus.WithFields(logrus.Fields{
			"player": r.PlayerID,
			"rank":   r.Rank,
			"score":  r.Score,
		}).Info("result")
	}
	logrus.WithField("status", res.Status).Info("match over")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

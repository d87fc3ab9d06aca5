// Command cursorbot joins a room with simulated players that move their
// cursors through the presence throttle, for demos and load checks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/spf13/pflag"
)

func main() {
	server := pflag.String("server", "http://localhost:8080", "server base URL")
	room := pflag.String("room", "", "room id to join (created when empty)")
	bots := pflag.IntP("bots", "n", 4, "number of simulated players")
	duration := pflag.DurationP("duration", "d", 30*time.Second, "how long to run")
	verbose := pflag.BoolP("verbose", "v", false, "debug logging")
	pflag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, stop := context.WithTimeout(ctx, *duration)
	defer stop()

	api := newClient(*server)
	roomID := *room
	if roomID == "" {
		id, err := api.createRoom(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("create room")
		}
		roomID = id
		log.Info().Str("room", roomID).Msg("created room")
	}

	var wg conc.WaitGroup
	for i := range *bots {
		b := &bot{api: api, room: roomID, name: botName(i), phase: float64(i)}
		wg.Go(func() {
			if err := b.run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("bot", b.name).Msg("bot stopped")
			}
		})
	}
	wg.Wait()
	log.Info().Msg("all bots done")
}

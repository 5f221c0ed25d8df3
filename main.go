package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"arena/config"
	"arena/game"
	"arena/observer"
	"arena/provider"
	"arena/rating"
	"arena/tournament"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		configPath  = flag.String("config", "", "path to arena.yaml")
		games       = flag.Int("games", 0, "matches per pairing (overrides config)")
		leaderboard = flag.Bool("leaderboard", false, "print the leaderboard and exit")
		reset       = flag.Bool("reset", false, "clear all ratings and exit")
		dashboard   = flag.Bool("dashboard", false, "serve the live dashboard websocket")
		verbose     = flag.Bool("v", false, "log every turn")
	)
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msgf("loading config %s", *configPath)
		}
		cfg = loaded
	}

	ledger, err := rating.NewLedger(cfg.LedgerPath(),
		rating.WithKFactor(cfg.KFactor()),
		rating.WithInitialRating(cfg.InitialRating()))
	if err != nil {
		log.Fatal().Err(err).Msg("opening rating ledger")
	}

	switch {
	case *reset:
		if err := ledger.Reset(); err != nil {
			log.Fatal().Err(err).Msg("resetting ratings")
		}
		fmt.Println("All ratings cleared.")
		return
	case *leaderboard:
		printStandings(ledger.Leaderboard())
		return
	}

	// Positional arguments override the configured participant list
	participants := cfg.Tournament.Participants
	if args := flag.Args(); len(args) > 0 {
		participants = args
	}
	if len(participants) < 2 {
		log.Fatal().Msg("need at least two participants, e.g. arena random greedy")
	}
	if err := cfg.Validate(participants); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	gamesPerPairing := cfg.GamesPerPairing()
	if *games > 0 {
		gamesPerPairing = *games
	}

	obs := observer.Multi{observer.Log{}}
	if *dashboard || cfg.Dashboard.Enabled {
		broadcaster := observer.NewBroadcaster()
		obs = append(obs, broadcaster)
		go serveDashboard(cfg.DashboardAddr(), broadcaster)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modelCfg := cfg.ModelConfig()
	scheduler := tournament.NewScheduler(tournament.Config{
		Participants:    participants,
		GamesPerPairing: gamesPerPairing,
		MaxTurns:        cfg.MaxTurns(),
		MatchTimeout:    cfg.MatchTimeout(),
		DecisionTimeout: cfg.DecisionTimeout(),
	}, ledger,
		func() game.State { return game.NewFrontier() },
		func(participant string) (provider.Decider, error) {
			return provider.New(participant, modelCfg)
		}, obs)

	summary, err := scheduler.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("tournament aborted")
	}

	printStandings(summary.Standings)

	writer, err := tournament.NewReportWriter("reports")
	if err != nil {
		log.Fatal().Err(err).Msg("creating report directory")
	}
	if err := writer.WriteMatches(summary.Matches); err != nil {
		log.Fatal().Err(err).Msg("writing match report")
	}
	if err := writer.WriteTurns(summary.Matches); err != nil {
		log.Fatal().Err(err).Msg("writing turn report")
	}
	if err := writer.WriteStandings(summary.Standings); err != nil {
		log.Fatal().Err(err).Msg("writing standings report")
	}
	log.Info().Msgf("reports written to %s", writer.Dir())
}

func printStandings(standings []rating.Standing) {
	if len(standings) == 0 {
		fmt.Println("No rated matches yet.")
		return
	}

	fmt.Println()
	fmt.Println("=== LEADERBOARD ===")
	fmt.Printf("%-4s %-40s %8s %7s %6s %9s\n", "#", "participant", "rating", "games", "wins", "win rate")
	fmt.Println(strings.Repeat("-", 80))
	for i, s := range standings {
		fmt.Printf("%-4d %-40s %8.1f %7d %6d %8.0f%%\n",
			i+1, s.Participant, s.Rating, s.Games, s.Wins, 100*s.WinRate())
	}
	fmt.Println()
}

func serveDashboard(addr string, broadcaster *observer.Broadcaster) {
	mux := http.NewServeMux()
	mux.Handle("/ws", broadcaster)
	log.Info().Msgf("dashboard websocket listening on %s/ws", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("dashboard server stopped")
	}
}

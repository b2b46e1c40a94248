package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/worldepixel/worlde-server/internal/config"
	"github.com/worldepixel/worlde-server/internal/httpserver"
	"github.com/worldepixel/worlde-server/internal/profile"
	"github.com/worldepixel/worlde-server/internal/session"
	"github.com/worldepixel/worlde-server/internal/wordbank"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	bank, err := wordbank.Load(cfg.WordBankFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word bank")
	}
	themes, words := bank.Stats()
	log.Info().Int("themes", themes).Int("words", words).Msg("word bank loaded")

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	var profiles profile.Store
	switch cfg.ProfileBackend {
	case "redis":
		client, err := profile.ConnectRedis(context.Background(), cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		profiles = profile.NewRedisStore(client)
	default:
		profiles = profile.NewSQLiteStore(db)
	}

	reg := session.NewRegistry(bank, cfg.SyncDebounce)
	srv := httpserver.New(cfg, db, profiles, bank, reg)
	log.Info().Str("port", cfg.Port).Str("backend", cfg.ProfileBackend).Msg("starting worlde-server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

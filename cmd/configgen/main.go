package main

import (
	"flag"

	"github.com/danmuck/shackles/internal/config"
	"github.com/danmuck/shackles/internal/observability"
	"github.com/rs/zerolog/log"
)

const defaultConfigPath = "cmd/ringctl/config.toml"

func main() {
	observability.InitLogger("configgen")

	kind := flag.String("kind", "ring", "config kind: ring|chain")
	output := flag.String("output", defaultConfigPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultConfigPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.LoadRingConfig(*input)
		if err != nil {
			log.Fatal().Err(err).Str("path", *input).Msg("configgen validate failed")
		}
		log.Info().
			Str("path", *input).
			Str("name", cfg.Name).
			Int("peers", len(cfg.Peers)).
			Bool("close_ring", *cfg.CloseRing).
			Msg("configgen validated")
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal().Err(err).Str("kind", *kind).Msg("configgen write failed")
	}
	log.Info().Str("kind", *kind).Str("path", *output).Msg("configgen wrote template")
}

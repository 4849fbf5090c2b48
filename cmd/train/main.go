package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"gridworld-rl/trainer"
)

var (
	configPath = flag.String("config", "", "Path to YAML training config")
	episodes   = flag.Int("episodes", 0, "Override episode count (0=config)")
	seed       = flag.Int64("seed", 0, "Override RNG seed (0=config)")
	outDir     = flag.String("out", "", "Override output directory")
	archive    = flag.String("archive", "", "Override sqlite archive path")
	verbose    = flag.Bool("v", false, "Debug logging")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg := trainer.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = trainer.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	if *episodes > 0 {
		cfg.Run.Episodes = *episodes
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if *outDir != "" {
		cfg.Run.OutDir = *outDir
	}
	if *archive != "" {
		cfg.Run.ArchivePath = *archive
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	tr, err := trainer.New(cfg, log)
	if err != nil {
		log.Fatalf("trainer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tr.Run(ctx); err != nil {
		log.Fatalf("training: %v", err)
	}
	fmt.Println(tr.Stats().Summary())
}

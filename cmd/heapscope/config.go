package main

import (
	"github.com/ilyakaznacheev/cleanenv"
)

type serviceConfig struct {
	Port       string  `env:"HEAPSCOPE_PORT" env-default:"8080"`
	Format     string  `env:"HEAPSCOPE_FORMAT" env-default:"text"`
	SkipEvery  uint64  `env:"HEAPSCOPE_SKIP_EVERY" env-default:"0"`
	SampleRate float64 `env:"HEAPSCOPE_SAMPLE_RATE" env-default:"0"`
	TrackFrees bool    `env:"HEAPSCOPE_TRACK_FREES" env-default:"true"`
	ArchiveDir string  `env:"HEAPSCOPE_ARCHIVE_DIR"`
	Iterations int     `env:"HEAPSCOPE_ITERATIONS" env-default:"1024"`
	Seed       int64   `env:"HEAPSCOPE_SEED" env-default:"1"`
}

func loadConfig() (serviceConfig, error) {
	var cfg serviceConfig
	err := cleanenv.ReadEnv(&cfg)
	return cfg, err
}

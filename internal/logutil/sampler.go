package logutil

import (
	"github.com/rs/zerolog"
)

// LevelSampler drops every event below Level. Useful to quiet the
// per-cycle GC lines without turning logging off entirely.
type LevelSampler struct {
	Level zerolog.Level
}

func (l LevelSampler) Sample(lvl zerolog.Level) bool {
	return lvl >= l.Level
}

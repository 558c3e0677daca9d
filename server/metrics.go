package main

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kward/boardshelf"
)

var (
	syncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boardshelf_syncs_total",
		Help: "Completed sync jobs by result.",
	}, []string{"result"})

	syncsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boardshelf_syncs_running",
		Help: "Sync jobs currently in flight.",
	})
)

func syncResultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, boardshelf.ErrInvalidUsername):
		return "invalid_username"
	case errors.Is(err, boardshelf.ErrSyncTimeout):
		return "timeout"
	default:
		return "error"
	}
}

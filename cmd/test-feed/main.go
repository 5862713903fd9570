package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/ultralive/internal/feedtest"
	"github.com/okian/ultralive/pkg/logger"
)

func main() {
	defaults := feedtest.NewConfig()

	var (
		addr       = flag.String("addr", defaults.Addr, "Listen address for the simulated feed")
		runners    = flag.Int("runners", defaults.Runners, "Field size")
		lapKm      = flag.Float64("lap-km", defaults.LapLengthKm, "Lap length in km")
		firstLapKm = flag.Float64("first-lap-km", defaults.FirstLapKm, "Opening partial lap in km")
		meanLap    = flag.Float64("mean-lap-sec", defaults.MeanLapSec, "Mean lap time in seconds")
		format     = flag.String("format", defaults.Format, "Payload shape: json or html")
		meters     = flag.Bool("meters", false, "Report distances in meters instead of km")
		seed       = flag.Int64("seed", defaults.Seed, "RNG seed; same seed, same race")
		breakEvery = flag.Int("break-every", defaults.BreakEvery, "Laps between breaks, 0 disables")
		breakSec   = flag.Float64("break-sec", defaults.BreakSec, "Break duration in seconds")
		startAgo   = flag.Duration("start-ago", 0, "Start the race this long in the past")
		jitter     = flag.Duration("jitter", 0, "Artificial response delay")
		verbose    = flag.Bool("verbose", false, "Log each served snapshot")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := feedtest.NewConfig()
	cfg.Addr = *addr
	cfg.Runners = *runners
	cfg.LapLengthKm = *lapKm
	cfg.FirstLapKm = *firstLapKm
	cfg.MeanLapSec = *meanLap
	cfg.Format = *format
	cfg.Meters = *meters
	cfg.Seed = *seed
	cfg.BreakEvery = *breakEvery
	cfg.BreakSec = *breakSec
	cfg.Start = time.Now().Add(-*startAgo)
	cfg.Jitter = *jitter
	cfg.LogRequests = *verbose

	if err := feedtest.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("feed simulator failed: " + err.Error() + "\n")
	}
}

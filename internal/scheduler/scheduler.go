// Package scheduler runs the device: bootstrap (network join, time sync) followed by
// a single-goroutine cooperative loop that services the clock, fetch and page duties
// from one timestamp per iteration.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-ticker/internal/client"
	"github.com/kjstillabower/weather-ticker/internal/display"
	"github.com/kjstillabower/weather-ticker/internal/lifecycle"
	"github.com/kjstillabower/weather-ticker/internal/network"
	"github.com/kjstillabower/weather-ticker/internal/observability"
	"github.com/kjstillabower/weather-ticker/internal/render"
	"github.com/kjstillabower/weather-ticker/internal/snapshot"
	"github.com/kjstillabower/weather-ticker/internal/traffic"
)

// ErrJoinFailed is returned by Bootstrap when the network could not be joined.
// The scheduler is Halted afterwards.
var ErrJoinFailed = errors.New("network join failed")

// Fetcher is the resilient fetch capability.
type Fetcher interface {
	Fetch(ctx context.Context, url string) client.Outcome
}

// TimeSyncer corrects the wall clock once at bootstrap.
type TimeSyncer interface {
	Sync(ctx context.Context) error
}

type Config struct {
	URL           string
	TZOffsetHours int
	Credentials   network.Credentials

	ClockInterval time.Duration
	FetchInterval time.Duration
	PageInterval  time.Duration
	// Quantum is the pause between loop iterations.
	Quantum time.Duration

	JoinTimeout    time.Duration
	JoinPoll       time.Duration
	ConnectedPause time.Duration
	SyncTimeout    time.Duration

	ParseOptions snapshot.Options
	Pages        []render.Page
}

func DefaultConfig() Config {
	return Config{
		ClockInterval:  time.Second,
		FetchInterval:  60 * time.Second,
		PageInterval:   10 * time.Second,
		Quantum:        250 * time.Millisecond,
		JoinTimeout:    20 * time.Second,
		JoinPoll:       500 * time.Millisecond,
		ConnectedPause: 3 * time.Second,
		SyncTimeout:    5 * time.Second,
		ParseOptions:   snapshot.DefaultOptions(),
		Pages:          render.DefaultPages,
	}
}

// Deps are the capabilities the scheduler drives. WeatherSink, ClockSink, Link and
// Fetcher are required; the rest default.
type Deps struct {
	WeatherSink display.Sink
	ClockSink   display.Sink
	Link        network.Link
	Fetcher     Fetcher
	Clock       network.Clock
	Syncer      TimeSyncer
	Store       *snapshot.Store
	Lifecycle   *lifecycle.Tracker
	Traffic     *traffic.Tracker
	Logger      *zap.Logger
}

type Scheduler struct {
	cfg     Config
	weather display.Sink
	clock   display.Sink
	link    network.Link
	fetcher Fetcher
	now     network.Clock
	syncer  TimeSyncer
	store   *snapshot.Store
	phase   *lifecycle.Tracker
	traffic *traffic.Tracker
	logger  *zap.Logger

	state State
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, deps Deps) (*Scheduler, error) {
	switch {
	case deps.WeatherSink == nil || deps.ClockSink == nil:
		return nil, errors.New("scheduler: both display sinks are required")
	case deps.Link == nil:
		return nil, errors.New("scheduler: network link is required")
	case deps.Fetcher == nil:
		return nil, errors.New("scheduler: fetcher is required")
	case cfg.URL == "":
		return nil, errors.New("scheduler: weather URL is required")
	}

	def := DefaultConfig()
	durations := []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&cfg.ClockInterval, def.ClockInterval},
		{&cfg.FetchInterval, def.FetchInterval},
		{&cfg.PageInterval, def.PageInterval},
		{&cfg.Quantum, def.Quantum},
		{&cfg.JoinTimeout, def.JoinTimeout},
		{&cfg.JoinPoll, def.JoinPoll},
		{&cfg.SyncTimeout, def.SyncTimeout},
	}
	for _, d := range durations {
		if *d.v <= 0 {
			*d.v = d.def
		}
	}
	if cfg.ConnectedPause < 0 {
		cfg.ConnectedPause = 0
	}
	if cfg.ParseOptions.MinDays <= 0 {
		cfg.ParseOptions = def.ParseOptions
	}
	if len(cfg.Pages) == 0 {
		cfg.Pages = def.Pages
	}

	s := &Scheduler{
		cfg:     cfg,
		weather: deps.WeatherSink,
		clock:   deps.ClockSink,
		link:    deps.Link,
		fetcher: deps.Fetcher,
		now:     deps.Clock,
		syncer:  deps.Syncer,
		store:   deps.Store,
		phase:   deps.Lifecycle,
		traffic: deps.Traffic,
		logger:  deps.Logger,
		sleep:   sleepCtx,
	}
	if s.now == nil {
		s.now = network.SystemClock{}
	}
	if s.store == nil {
		s.store = snapshot.NewStore()
	}
	if s.phase == nil {
		s.phase = lifecycle.NewTracker(nil)
	}
	if s.traffic == nil {
		s.traffic = traffic.NewTracker(10 * time.Minute)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.state = newState(cfg)
	return s, nil
}

// PageIndex returns the rotation index of the page the next page duty renders.
func (s *Scheduler) PageIndex() int {
	return s.state.Rotation.Index()
}

// Bootstrap joins the network, shows the acquired address and syncs the clock once.
// On join failure it shows the diagnostic pages, moves to Halted and returns an
// error wrapping ErrJoinFailed. A cancelled ctx returns ctx.Err().
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	s.showBoth(render.Lines{"Connecting to", "server..."})

	if err := s.link.Connect(s.cfg.Credentials); err != nil {
		return s.halt(err)
	}

	deadline := s.now.Now().Add(s.cfg.JoinTimeout)
	for frame := 0; !s.link.Connected(); frame++ {
		if !s.now.Now().Before(deadline) {
			return s.halt(fmt.Errorf("not connected after %s", s.cfg.JoinTimeout))
		}
		s.showBoth(render.Connecting("Connecting", frame))
		if err := s.sleep(ctx, s.cfg.JoinPoll); err != nil {
			return err
		}
	}

	addr := s.link.LocalAddress()
	s.logger.Info("network joined", zap.String("address", addr))
	s.showBoth(render.Connected(addr))
	if err := s.sleep(ctx, s.cfg.ConnectedPause); err != nil {
		return err
	}

	s.syncTime(ctx)
	s.phase.Set(lifecycle.Running)
	return nil
}

func (s *Scheduler) halt(cause error) error {
	s.phase.Set(lifecycle.Halted)
	s.show("weather", s.weather, render.JoinFailure("Check SSID/PW"))
	s.show("clock", s.clock, render.JoinFailure("Check Router"))
	err := fmt.Errorf("%w: %w", ErrJoinFailed, cause)
	s.logger.Error("network join failed; halting", zap.Error(err))
	return err
}

// syncTime is best effort: the clock keeps device time on failure and no retry is
// scheduled.
func (s *Scheduler) syncTime(ctx context.Context) {
	if s.syncer == nil {
		return
	}
	syncCtx, cancel := context.WithTimeout(ctx, s.cfg.SyncTimeout)
	defer cancel()
	if err := s.syncer.Sync(syncCtx); err != nil {
		s.logger.Warn("time sync failed; using device clock", zap.Error(err))
		return
	}
	s.logger.Info("time synced")
}

// Run repeats Step with the pause of Config.Quantum until ctx is cancelled, then
// returns ctx.Err(). The fetch inside Step is the only other blocking point and is
// bounded by the fetcher's overall timeout.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler running",
		zap.Duration("fetch_interval", s.cfg.FetchInterval),
		zap.Duration("page_interval", s.cfg.PageInterval))
	for {
		s.Step(ctx, s.now.Now())
		if err := s.sleep(ctx, s.cfg.Quantum); err != nil {
			return err
		}
	}
}

// Step runs one loop iteration at now. Every duty check uses the same timestamp, and
// the clock is always serviced before the fetch.
func (s *Scheduler) Step(ctx context.Context, now time.Time) {
	if s.state.Clock.Check(now) {
		observability.DutyFiresTotal.WithLabelValues(string(DutyClock)).Inc()
		s.show("clock", s.clock, render.Clock(now, s.cfg.TZOffsetHours))
	}

	if s.store.Load() == nil || s.state.Fetch.Due(now) {
		s.state.Fetch.Fire(now)
		observability.DutyFiresTotal.WithLabelValues(string(DutyFetch)).Inc()
		s.refresh(ctx)
	}

	if snap := s.store.Load(); snap != nil && s.state.Page.Check(now) {
		observability.DutyFiresTotal.WithLabelValues(string(DutyPage)).Inc()
		page := s.state.Rotation.Current()
		s.show("weather", s.weather, page.Render(snap))
		observability.PageRendersTotal.WithLabelValues(page.Name()).Inc()
		s.state.Rotation.Advance()
	}
}

// refresh fetches and parses a new snapshot. Failures never touch the stored
// snapshot; the Error page is shown only while there has never been one.
func (s *Scheduler) refresh(ctx context.Context) {
	first := s.store.Load() == nil
	fetchCtx := ctx
	if first {
		s.show("weather", s.weather, render.Loading())
		// Until the first snapshot the fetch runs every iteration; an open breaker
		// would hold the Error page long past the fetch interval.
		fetchCtx = client.WithoutBreaker(ctx)
	}

	out := s.fetcher.Fetch(fetchCtx, s.cfg.URL)
	logger := s.logger.With(zap.String("fetch_id", out.ID))

	if out.Kind != client.Success {
		result := traffic.ResultTransient
		if out.Kind == client.TimedOut {
			result = traffic.ResultTimedOut
		}
		s.traffic.Record(result)
		logger.Warn("weather fetch failed",
			zap.String("outcome", out.Kind.String()),
			zap.String("category", string(out.Category)),
			zap.Int("attempts", out.Attempts),
			zap.Duration("elapsed", out.Elapsed),
			zap.Bool("stale_snapshot_kept", !first),
			zap.Error(out.Err))
		if first {
			s.show("weather", s.weather, render.Error("No data yet"))
		}
		return
	}

	snap, err := snapshot.ParseWithOptions(out.Body, s.cfg.ParseOptions)
	if err != nil {
		s.traffic.Record(traffic.ResultParseError)
		kind := "unknown"
		var perr *snapshot.ParseError
		if errors.As(err, &perr) {
			kind = perr.Kind.String()
		}
		observability.ParseErrorsTotal.WithLabelValues(kind).Inc()
		logger.Warn("weather payload rejected",
			zap.String("kind", kind),
			zap.Bool("stale_snapshot_kept", !first),
			zap.Error(err))
		if first {
			s.show("weather", s.weather, render.Error("Bad data"))
		}
		return
	}

	s.store.Replace(snap.WithFetchedAt(s.now.Now()))
	s.traffic.Record(traffic.ResultSuccess)
	observability.SnapshotUpdatesTotal.Inc()
	logger.Info("snapshot updated",
		zap.String("area", snap.Area),
		zap.Int("temperature_c", snap.TemperatureC),
		zap.Int("attempts", out.Attempts),
		zap.Duration("elapsed", out.Elapsed))
}

func (s *Scheduler) showBoth(lines render.Lines) {
	s.show("weather", s.weather, lines)
	s.show("clock", s.clock, lines)
}

func (s *Scheduler) show(name string, sink display.Sink, lines render.Lines) {
	if err := render.Show(sink, lines); err != nil {
		s.logger.Warn("display write failed", zap.String("sink", name), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

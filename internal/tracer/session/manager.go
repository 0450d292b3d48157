// Package session wires the tracer components together and is the single
// entry point the interception layer calls into.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/phuslu/log"
	"github.com/spf13/afero"

	"hsa_tracer/internal/config"
	"hsa_tracer/internal/hsa"
	"hsa_tracer/internal/logger"
	"hsa_tracer/internal/output"
	"hsa_tracer/internal/tracer/admission"
	"hsa_tracer/internal/tracer/asynccopy"
	"hsa_tracer/internal/tracer/packets"
	"hsa_tracer/internal/tracer/queues"
	"hsa_tracer/internal/tracer/window"
)

// Options carries the collaborators a Manager talks to. Zero fields get
// defaults where one exists.
type Options struct {
	Runtime  hsa.Runtime
	Pool     hsa.SignalPool
	Profiler hsa.ProfilerModule // optional

	Clock clock.Clock     // default: wall clock
	Fs    afero.Fs        // default: OS filesystem
	Namer output.FileNamer // default: output.DirNamer{Dir: cfg.OutputDir}
	PID   int             // default: os.Getpid()

	// ThreadID identifies the calling thread for async copy records.
	ThreadID func() uint64
}

// Manager owns the per-process tracing state.
type Manager struct {
	cfg   config.TraceConfig
	clk   clock.Clock
	fs    afero.Fs
	namer output.FileNamer
	pid   int
	log   log.Logger

	policy  *admission.Policy
	queues  *queues.Registry
	copies  *asynccopy.Tracker
	packets *packets.Store
	window  *window.Controller

	tracing atomic.Bool

	apiMu      sync.Mutex
	apiRecords []hsa.APIRecord

	decisions    [4]atomic.Uint64
	flushedBytes [3]atomic.Uint64
	flushErrors  atomic.Uint64

	flushMu   sync.Mutex
	startOnce sync.Once
	closed    atomic.Bool
}

// NewManager builds a session from the trace configuration. Tracing starts
// enabled; Start applies the profiling window.
func NewManager(cfg config.TraceConfig, opts Options) (*Manager, error) {
	if opts.Runtime == nil || opts.Pool == nil {
		return nil, fmt.Errorf("session requires a runtime and a signal pool")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Namer == nil {
		opts.Namer = output.DirNamer{Dir: cfg.OutputDir}
	}
	if opts.PID == 0 {
		opts.PID = os.Getpid()
	}

	m := &Manager{
		cfg:   cfg,
		clk:   opts.Clock,
		fs:    opts.Fs,
		namer: opts.Namer,
		pid:   opts.PID,
		log:   logger.NewLoggerWithContext("session"),
	}
	m.tracing.Store(true)

	m.policy = admission.NewPolicy(cfg.MaxAPICalls)
	for _, name := range cfg.FilterAPIs {
		m.policy.AddToFilter(name)
	}
	if cfg.APIFilterFile != "" {
		n, err := m.policy.LoadFilterFile(m.fs, cfg.APIFilterFile)
		if err != nil {
			m.log.Warn().Err(err).Str("file", cfg.APIFilterFile).Msg("API filter file ignored")
		} else {
			m.log.Debug().Int("apis", n).Str("file", cfg.APIFilterFile).Msg("API filter file loaded")
		}
	}

	m.queues = queues.NewRegistry()

	copyOpts := []asynccopy.Option{asynccopy.WithTransferTimeDisabled(cfg.NoTransferTime)}
	if opts.ThreadID != nil {
		copyOpts = append(copyOpts, asynccopy.WithThreadID(opts.ThreadID))
	}
	m.copies = asynccopy.NewTracker(opts.Runtime, opts.Pool, copyOpts...)

	m.packets = packets.NewStore(m, m.policy.MaxCallTime(), opts.Profiler)

	m.window = window.NewController(m.clk, m)
	m.window.EnableDelayStart(cfg.Delay.Enabled, cfg.Delay.Interval())
	m.window.EnableDuration(cfg.Duration.Enabled, cfg.Duration.Interval())

	m.log.Debug().
		Uint64("max_api_calls", cfg.MaxAPICalls).
		Strs("filtered", m.policy.FilteredAPIs()).
		Bool("transfer_time", !cfg.NoTransferTime).
		Msg("Session created")
	return m, nil
}

// Start applies the profiling window. Only the first call has an effect.
func (m *Manager) Start() {
	m.startOnce.Do(m.window.Start)
}

// AddAPIInfoEntry records an intercepted call if the policy admits it.
// Calls dropped by the cap still advance the max call time.
func (m *Manager) AddAPIInfoEntry(rec hsa.APIRecord) admission.Decision {
	d := m.policy.Evaluate(rec.Kind, m.IsTracing())
	m.decisions[d].Add(1)

	switch d {
	case admission.Capped:
		m.policy.MaxCallTime().Record(rec.End)
	case admission.Admitted:
		m.apiMu.Lock()
		m.apiRecords = append(m.apiRecords, rec)
		m.apiMu.Unlock()
		m.policy.RecordAdmitted()
	}
	return d
}

// AddAqlPacketEntry hands p to the packet store.
func (m *Manager) AddAqlPacketEntry(p *packets.AqlPacket) bool {
	return m.packets.Submit(p)
}

// AddQueue registers a newly created queue.
func (m *Manager) AddQueue(h hsa.QueueHandle) (uint64, bool) {
	return m.queues.Register(h)
}

// QueueID returns the id assigned to h.
func (m *Manager) QueueID(h hsa.QueueHandle) (uint64, bool) {
	return m.queues.Lookup(h)
}

// ShouldIntercept reports whether calls of kind need to be observed.
func (m *Manager) ShouldIntercept(kind hsa.CallKind) bool {
	return m.policy.ShouldIntercept(kind)
}

// TransferTimeEnabled reports whether async copies should get a
// replacement signal.
func (m *Manager) TransferTimeEnabled() bool {
	return m.copies.Enabled()
}

func (m *Manager) AddReplacementAsyncCopySignal(original, replacement hsa.Signal) {
	m.copies.AddReplacementSignal(original, replacement)
}

func (m *Manager) AddAsyncCopyCompletionSignal(replacement hsa.Signal, asyncCopyID uint64) bool {
	return m.copies.AddCompletionSignal(replacement, asyncCopyID)
}

// RemoveReplacementAsyncCopySignal undoes AddReplacementAsyncCopySignal
// when the completion handler could not be armed.
func (m *Manager) RemoveReplacementAsyncCopySignal(replacement hsa.Signal) (hsa.Signal, bool) {
	return m.copies.RemoveReplacementSignal(replacement)
}

func (m *Manager) OriginalAsyncCopySignal(replacement hsa.Signal) (hsa.Signal, bool) {
	return m.copies.OriginalSignal(replacement)
}

// MarkProfilerDataReady completes profiler-timed packets matching pred.
func (m *Manager) MarkProfilerDataReady(pred func(*packets.AqlPacket) bool) int {
	return m.packets.MarkReady(pred)
}

func (m *Manager) ResumeTracing() {
	if !m.tracing.Swap(true) {
		m.log.Info().Msg("Tracing resumed")
	}
}

func (m *Manager) StopTracing() {
	if m.tracing.Swap(false) {
		m.log.Info().Msg("Tracing stopped")
	}
}

func (m *Manager) IsTracing() bool { return m.tracing.Load() }

// CapReached reports whether the traced call cap was hit.
func (m *Manager) CapReached() bool { return m.policy.CapReached() }

// MaxCallEndTime returns the latest end timestamp among calls dropped by
// the cap.
func (m *Manager) MaxCallEndTime() uint64 { return m.policy.MaxCallTime().Value() }

// Window exposes the profiling window controller.
func (m *Manager) Window() *window.Controller { return m.window }

// Run applies the profiling window and flushes every interval until ctx is
// done, then flushes one last time.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	m.Start()

	if interval <= 0 {
		<-ctx.Done()
		return m.Flush()
	}

	ticker := m.clk.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return m.Flush()
		case <-ticker.C:
			if err := m.Flush(); err != nil {
				m.log.Error().Err(err).Msg("Periodic flush failed")
			}
		}
	}
}

// Close stops the window timers and flushes what is left.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.window.Close()
	err := m.Flush()

	st := m.Stats()
	m.log.Info().
		Uint64("admitted", st.Admitted).
		Uint64("capped", st.Capped).
		Uint64("max_call_end", st.MaxCallEndTime).
		Uint64("queues", st.QueuesCreated).
		Uint64("async_copies", st.Copies.Completed).
		Uint64("packets", st.Packets.Flushed).
		Msg("Session closed")
	return err
}

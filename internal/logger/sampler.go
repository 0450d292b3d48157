package logger

import (
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"
)

const defaultSampleInterval = time.Second

var sampleInterval atomic.Int64

func init() {
	sampleInterval.Store(int64(defaultSampleInterval))
}

// setSampleInterval changes the interval for loggers created afterwards.
func setSampleInterval(d time.Duration) {
	if d <= 0 {
		d = defaultSampleInterval
	}
	sampleInterval.Store(int64(d))
}

type sampleState struct {
	sometimes  rate.Sometimes
	suppressed atomic.Uint64
}

// SampledLogger wraps a component logger and lets each key through at most
// once per interval. The first emitted entry after a quiet period carries
// the number of suppressed entries for that key.
type SampledLogger struct {
	log.Logger
	interval time.Duration
	states   *xsync.Map[string, *sampleState]
}

func newSampledLogger(l *log.Logger) *SampledLogger {
	return &SampledLogger{
		Logger:   *l,
		interval: time.Duration(sampleInterval.Load()),
		states:   xsync.NewMap[string, *sampleState](),
	}
}

func (s *SampledLogger) allow(key string) (uint64, bool) {
	st, _ := s.states.LoadOrCompute(key, func() (*sampleState, bool) {
		return &sampleState{sometimes: rate.Sometimes{Interval: s.interval}}, false
	})
	allowed := false
	st.sometimes.Do(func() { allowed = true })
	if !allowed {
		st.suppressed.Add(1)
		return 0, false
	}
	return st.suppressed.Swap(0), true
}

func (s *SampledLogger) sampled(key string, e *log.Entry) *log.Entry {
	n, ok := s.allow(key)
	if !ok {
		return nil
	}
	if n > 0 {
		e = e.Uint64("suppressed", n)
	}
	return e.Str("sample_key", key)
}

// SampledWarn returns a warn entry, or nil when key is being suppressed.
// A nil entry discards everything chained on it.
func (s *SampledLogger) SampledWarn(key string) *log.Entry {
	if s.Logger.Level > log.WarnLevel {
		return nil
	}
	return s.sampled(key, s.Warn())
}

// SampledError returns an error entry, or nil when key is being suppressed.
func (s *SampledLogger) SampledError(key string) *log.Entry {
	if s.Logger.Level > log.ErrorLevel {
		return nil
	}
	return s.sampled(key, s.Error())
}

// Suppressed returns how many entries are currently held back for key.
func (s *SampledLogger) Suppressed(key string) uint64 {
	if st, ok := s.states.Load(key); ok {
		return st.suppressed.Load()
	}
	return 0
}

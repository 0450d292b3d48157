// Package admission decides which intercepted calls are recorded.
package admission

import (
	"bufio"
	"fmt"
	"strings"
	"sync/atomic"

	"hsa_tracer/internal/hsa"
	"hsa_tracer/internal/logger"
	"hsa_tracer/internal/maps"

	"github.com/phuslu/log"
	"github.com/spf13/afero"
)

// Decision is the outcome of evaluating one intercepted call.
type Decision uint8

const (
	Admitted Decision = iota
	// Filtered calls were excluded by name.
	Filtered
	// Capped calls arrived after the call cap was reached.
	Capped
	// Disabled calls arrived while tracing was off.
	Disabled
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case Filtered:
		return "filtered"
	case Capped:
		return "capped"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// DefaultMustIntercept lists the calls later stages depend on: queue
// creation for queue ids and symbol lookups for kernel names.
var DefaultMustIntercept = []hsa.CallKind{
	hsa.CallQueueCreate,
	hsa.CallExecutableGetSymbol,
	hsa.CallExecutableSymbolGetInfo,
}

// Policy holds the filter and must-intercept sets and the call cap.
type Policy struct {
	mustIntercept *maps.Set[hsa.CallKind]
	filter        *maps.Set[hsa.CallKind]
	maxCalls      uint64
	traced        atomic.Uint64
	maxCallTime   MaxCallTime
	log           log.Logger
}

// NewPolicy returns a policy with the default must-intercept set and an
// empty filter. maxCalls 0 disables the cap.
func NewPolicy(maxCalls uint64) *Policy {
	return &Policy{
		mustIntercept: maps.NewSet(DefaultMustIntercept...),
		filter:        maps.NewSet[hsa.CallKind](),
		maxCalls:      maxCalls,
		log:           logger.NewLoggerWithContext("admission"),
	}
}

// AddToFilter excludes the named call from tracing. Unknown names are
// logged and ignored.
func (p *Policy) AddToFilter(name string) bool {
	kind := hsa.ParseCallKind(name)
	if kind == hsa.CallUnknown {
		p.log.Warn().Str("api", name).Msg("Unknown API name")
		return false
	}
	p.filter.Add(kind)
	return true
}

// LoadFilterFile adds every API named in path, one per line. Blank lines
// and lines starting with '#' are skipped. It returns how many names were
// accepted.
func (p *Policy) LoadFilterFile(fs afero.Fs, path string) (int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open api filter file: %w", err)
	}
	defer f.Close()

	added := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if p.AddToFilter(line) {
			added++
		}
	}
	if err := sc.Err(); err != nil {
		return added, fmt.Errorf("read api filter file %s: %w", path, err)
	}
	return added, nil
}

// IsInFilterList reports whether kind was excluded by name.
func (p *Policy) IsInFilterList(kind hsa.CallKind) bool {
	return p.filter.Contains(kind)
}

// IsMustIntercept reports whether kind is always observed.
func (p *Policy) IsMustIntercept(kind hsa.CallKind) bool {
	return p.mustIntercept.Contains(kind)
}

// ShouldIntercept reports whether the interception layer should observe
// kind at all.
func (p *Policy) ShouldIntercept(kind hsa.CallKind) bool {
	return !p.IsInFilterList(kind) || p.IsMustIntercept(kind)
}

// CapReached reports whether the traced call count hit the cap.
func (p *Policy) CapReached() bool {
	return p.maxCalls > 0 && p.traced.Load() >= p.maxCalls
}

// Evaluate classifies one call. The cap is checked first so a capped call
// always feeds the max call time, whatever its kind.
func (p *Policy) Evaluate(kind hsa.CallKind, tracing bool) Decision {
	switch {
	case p.CapReached():
		return Capped
	case !p.ShouldIntercept(kind):
		return Filtered
	case !tracing:
		return Disabled
	default:
		return Admitted
	}
}

// RecordAdmitted counts one admitted call. Concurrent callers can overshoot
// the cap by the number of calls racing past the check.
func (p *Policy) RecordAdmitted() uint64 {
	return p.traced.Add(1)
}

// Traced returns the number of admitted calls.
func (p *Policy) Traced() uint64 { return p.traced.Load() }

// MaxCalls returns the configured cap, 0 when unlimited.
func (p *Policy) MaxCalls() uint64 { return p.maxCalls }

// FilteredAPIs returns the names of the filtered calls.
func (p *Policy) FilteredAPIs() []string {
	kinds := p.filter.Keys()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return names
}

// MaxCallTime returns the recorder fed by capped calls.
func (p *Policy) MaxCallTime() *MaxCallTime { return &p.maxCallTime }

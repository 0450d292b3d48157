package hsa

import "fmt"

// Signal is an opaque runtime completion primitive. Only the handle value is
// meaningful to the tracer.
type Signal struct {
	Handle uint64
}

// IsZero reports whether the signal is the null signal.
func (s Signal) IsZero() bool { return s.Handle == 0 }

func (s Signal) String() string { return fmt.Sprintf("signal(0x%x)", s.Handle) }

// Condition is the comparison a signal wait is registered for.
type Condition uint8

const (
	ConditionEQ Condition = iota
	ConditionNE
	ConditionLT
	ConditionGTE
)

func (c Condition) String() string {
	switch c {
	case ConditionEQ:
		return "EQ"
	case ConditionNE:
		return "NE"
	case ConditionLT:
		return "LT"
	case ConditionGTE:
		return "GTE"
	default:
		return "UNKNOWN"
	}
}

// Satisfied reports whether value satisfies the condition against compare.
func (c Condition) Satisfied(value, compare int64) bool {
	switch c {
	case ConditionEQ:
		return value == compare
	case ConditionNE:
		return value != compare
	case ConditionLT:
		return value < compare
	case ConditionGTE:
		return value >= compare
	default:
		return false
	}
}

// Status is a runtime status code.
type Status int32

const (
	StatusSuccess         Status = 0x0
	StatusInfoBreak       Status = 0x1
	StatusError           Status = 0x1000
	StatusInvalidArgument Status = 0x1001
	StatusInvalidSignal   Status = 0x1007
	StatusOutOfResources  Status = 0x1008
	StatusNotInitialized  Status = 0x100B
)

// OK reports whether the status is success.
func (s Status) OK() bool { return s == StatusSuccess }

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "HSA_STATUS_SUCCESS"
	case StatusInfoBreak:
		return "HSA_STATUS_INFO_BREAK"
	case StatusError:
		return "HSA_STATUS_ERROR"
	case StatusInvalidArgument:
		return "HSA_STATUS_ERROR_INVALID_ARGUMENT"
	case StatusInvalidSignal:
		return "HSA_STATUS_ERROR_INVALID_SIGNAL"
	case StatusOutOfResources:
		return "HSA_STATUS_ERROR_OUT_OF_RESOURCES"
	case StatusNotInitialized:
		return "HSA_STATUS_ERROR_NOT_INITIALIZED"
	default:
		return fmt.Sprintf("HSA_STATUS(0x%x)", int32(s))
	}
}

// Error makes a non-success status usable as an error value.
func (s Status) Error() string { return s.String() }

// AsyncCopyTime is the device-side start and end of an async copy, in
// nanoseconds.
type AsyncCopyTime struct {
	Start uint64
	End   uint64
}

// AsyncHandler is invoked by the runtime on one of its own threads when a
// signal satisfies the registered condition. Returning true keeps the
// registration alive.
type AsyncHandler func(value int64, arg any) bool

// Runtime is the subset of the driver the tracer calls into directly. All
// methods must be safe to call from any goroutine.
type Runtime interface {
	QueryAsyncCopyTime(signal Signal) (AsyncCopyTime, Status)
	SignalLoad(signal Signal) int64
	SignalStore(signal Signal, value int64)
	SignalAsyncHandler(signal Signal, cond Condition, value int64, handler AsyncHandler, arg any) Status
}

// SignalPool owns the idle replacement signals handed out to async copies.
type SignalPool interface {
	AcquireSignal() (Signal, error)
	ReleaseSignal(signal Signal)
}

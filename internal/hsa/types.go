package hsa

import "fmt"

// QueueHandle identifies a runtime command queue by address. The tracer
// never dereferences it.
type QueueHandle uintptr

// AgentHandle identifies a device agent.
type AgentHandle uint64

// PacketKind mirrors the AQL packet header type field.
type PacketKind uint8

const (
	PacketVendorSpecific PacketKind = 0
	PacketInvalid        PacketKind = 1
	PacketKernelDispatch PacketKind = 2
	PacketBarrierAnd     PacketKind = 3
	PacketAgentDispatch  PacketKind = 4
	PacketBarrierOr      PacketKind = 5
)

func (k PacketKind) String() string {
	switch k {
	case PacketVendorSpecific:
		return "VENDOR_SPECIFIC"
	case PacketInvalid:
		return "INVALID"
	case PacketKernelDispatch:
		return "KERNEL_DISPATCH"
	case PacketBarrierAnd:
		return "BARRIER_AND"
	case PacketAgentDispatch:
		return "AGENT_DISPATCH"
	case PacketBarrierOr:
		return "BARRIER_OR"
	default:
		return fmt.Sprintf("PACKET(%d)", uint8(k))
	}
}

// ContextHandle is a profiling context owned by the external profiler
// module.
type ContextHandle uint64

// ProfilerModule is the external dispatch profiler that reports kernel
// timing out of band.
type ProfilerModule interface {
	IsModuleLoaded() bool
	CloseContext(ctx ContextHandle) Status
}

// APIRecord is one intercepted call as handed over by the interception
// layer.
type APIRecord struct {
	ID       uint64
	Kind     CallKind
	ThreadID uint64
	Start    uint64
	End      uint64
	// Args is the already formatted argument list.
	Args string
	// Return is the formatted return value.
	Return string
}

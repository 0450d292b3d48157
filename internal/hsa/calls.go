// Package hsa holds the vocabulary shared by the tracer components: the
// intercepted call kinds, signal and queue handles, packet kinds and the
// interfaces of the runtime collaborators the tracer observes.
package hsa

import "strings"

// CallKind identifies which runtime entry point was intercepted.
type CallKind uint16

const (
	CallUnknown CallKind = iota

	// Core runtime
	CallInit
	CallShutDown
	CallSystemGetInfo
	CallSystemGetExtensionTable
	CallIterateAgents
	CallAgentGetInfo
	CallQueueCreate
	CallSoftQueueCreate
	CallQueueDestroy
	CallQueueInactivate
	CallQueueLoadReadIndexAcquire
	CallQueueLoadWriteIndexRelaxed
	CallQueueStoreWriteIndexRelease
	CallQueueAddWriteIndexScacqScrel
	CallAgentIterateRegions
	CallRegionGetInfo
	CallMemoryRegister
	CallMemoryDeregister
	CallMemoryAllocate
	CallMemoryFree
	CallMemoryCopy
	CallMemoryAssign
	CallSignalCreate
	CallSignalDestroy
	CallSignalLoadRelaxed
	CallSignalLoadScacquire
	CallSignalStoreRelaxed
	CallSignalStoreScrelease
	CallSignalWaitRelaxed
	CallSignalWaitScacquire
	CallSignalAddRelaxed
	CallSignalSubtractRelaxed
	CallCodeObjectReaderCreateFromMemory
	CallCodeObjectReaderDestroy
	CallExecutableCreateAlt
	CallExecutableDestroy
	CallExecutableLoadAgentCodeObject
	CallExecutableFreeze
	CallExecutableGetSymbol
	CallExecutableGetSymbolByName
	CallExecutableSymbolGetInfo
	CallExecutableIterateSymbols

	// AMD extensions
	CallAmdCoherencyGetType
	CallAmdProfilingSetProfilerEnabled
	CallAmdProfilingAsyncCopyEnable
	CallAmdProfilingGetDispatchTime
	CallAmdProfilingGetAsyncCopyTime
	CallAmdSignalAsyncHandler
	CallAmdAsyncFunction
	CallAmdSignalWaitAny
	CallAmdAgentIterateMemoryPools
	CallAmdMemoryPoolGetInfo
	CallAmdMemoryPoolAllocate
	CallAmdMemoryPoolFree
	CallAmdMemoryAsyncCopy
	CallAmdMemoryAsyncCopyRect
	CallAmdAgentsAllowAccess
	CallAmdMemoryLock
	CallAmdMemoryUnlock
	CallAmdInteropMapBuffer
	CallAmdInteropUnmapBuffer
	CallAmdImageCreate
	CallAmdPointerInfo
	CallAmdIpcMemoryCreate
	CallAmdIpcMemoryAttach
	CallAmdIpcMemoryDetach
	CallAmdSignalCreate
	CallAmdQueueSetPriority

	callKindCount
)

var callKindNames = [...]string{
	CallUnknown:                          "UNKNOWN",
	CallInit:                             "hsa_init",
	CallShutDown:                         "hsa_shut_down",
	CallSystemGetInfo:                    "hsa_system_get_info",
	CallSystemGetExtensionTable:          "hsa_system_get_extension_table",
	CallIterateAgents:                    "hsa_iterate_agents",
	CallAgentGetInfo:                     "hsa_agent_get_info",
	CallQueueCreate:                      "hsa_queue_create",
	CallSoftQueueCreate:                  "hsa_soft_queue_create",
	CallQueueDestroy:                     "hsa_queue_destroy",
	CallQueueInactivate:                  "hsa_queue_inactivate",
	CallQueueLoadReadIndexAcquire:        "hsa_queue_load_read_index_scacquire",
	CallQueueLoadWriteIndexRelaxed:       "hsa_queue_load_write_index_relaxed",
	CallQueueStoreWriteIndexRelease:      "hsa_queue_store_write_index_screlease",
	CallQueueAddWriteIndexScacqScrel:     "hsa_queue_add_write_index_scacq_screl",
	CallAgentIterateRegions:              "hsa_agent_iterate_regions",
	CallRegionGetInfo:                    "hsa_region_get_info",
	CallMemoryRegister:                   "hsa_memory_register",
	CallMemoryDeregister:                 "hsa_memory_deregister",
	CallMemoryAllocate:                   "hsa_memory_allocate",
	CallMemoryFree:                       "hsa_memory_free",
	CallMemoryCopy:                       "hsa_memory_copy",
	CallMemoryAssign:                     "hsa_memory_assign_agent",
	CallSignalCreate:                     "hsa_signal_create",
	CallSignalDestroy:                    "hsa_signal_destroy",
	CallSignalLoadRelaxed:                "hsa_signal_load_relaxed",
	CallSignalLoadScacquire:              "hsa_signal_load_scacquire",
	CallSignalStoreRelaxed:               "hsa_signal_store_relaxed",
	CallSignalStoreScrelease:             "hsa_signal_store_screlease",
	CallSignalWaitRelaxed:                "hsa_signal_wait_relaxed",
	CallSignalWaitScacquire:              "hsa_signal_wait_scacquire",
	CallSignalAddRelaxed:                 "hsa_signal_add_relaxed",
	CallSignalSubtractRelaxed:            "hsa_signal_subtract_relaxed",
	CallCodeObjectReaderCreateFromMemory: "hsa_code_object_reader_create_from_memory",
	CallCodeObjectReaderDestroy:          "hsa_code_object_reader_destroy",
	CallExecutableCreateAlt:              "hsa_executable_create_alt",
	CallExecutableDestroy:                "hsa_executable_destroy",
	CallExecutableLoadAgentCodeObject:    "hsa_executable_load_agent_code_object",
	CallExecutableFreeze:                 "hsa_executable_freeze",
	CallExecutableGetSymbol:              "hsa_executable_get_symbol",
	CallExecutableGetSymbolByName:        "hsa_executable_get_symbol_by_name",
	CallExecutableSymbolGetInfo:          "hsa_executable_symbol_get_info",
	CallExecutableIterateSymbols:         "hsa_executable_iterate_symbols",
	CallAmdCoherencyGetType:              "hsa_amd_coherency_get_type",
	CallAmdProfilingSetProfilerEnabled:   "hsa_amd_profiling_set_profiler_enabled",
	CallAmdProfilingAsyncCopyEnable:      "hsa_amd_profiling_async_copy_enable",
	CallAmdProfilingGetDispatchTime:      "hsa_amd_profiling_get_dispatch_time",
	CallAmdProfilingGetAsyncCopyTime:     "hsa_amd_profiling_get_async_copy_time",
	CallAmdSignalAsyncHandler:            "hsa_amd_signal_async_handler",
	CallAmdAsyncFunction:                 "hsa_amd_async_function",
	CallAmdSignalWaitAny:                 "hsa_amd_signal_wait_any",
	CallAmdAgentIterateMemoryPools:       "hsa_amd_agent_iterate_memory_pools",
	CallAmdMemoryPoolGetInfo:             "hsa_amd_memory_pool_get_info",
	CallAmdMemoryPoolAllocate:            "hsa_amd_memory_pool_allocate",
	CallAmdMemoryPoolFree:                "hsa_amd_memory_pool_free",
	CallAmdMemoryAsyncCopy:               "hsa_amd_memory_async_copy",
	CallAmdMemoryAsyncCopyRect:           "hsa_amd_memory_async_copy_rect",
	CallAmdAgentsAllowAccess:             "hsa_amd_agents_allow_access",
	CallAmdMemoryLock:                    "hsa_amd_memory_lock",
	CallAmdMemoryUnlock:                  "hsa_amd_memory_unlock",
	CallAmdInteropMapBuffer:              "hsa_amd_interop_map_buffer",
	CallAmdInteropUnmapBuffer:            "hsa_amd_interop_unmap_buffer",
	CallAmdImageCreate:                   "hsa_amd_image_create",
	CallAmdPointerInfo:                   "hsa_amd_pointer_info",
	CallAmdIpcMemoryCreate:               "hsa_amd_ipc_memory_create",
	CallAmdIpcMemoryAttach:               "hsa_amd_ipc_memory_attach",
	CallAmdIpcMemoryDetach:               "hsa_amd_ipc_memory_detach",
	CallAmdSignalCreate:                  "hsa_amd_signal_create",
	CallAmdQueueSetPriority:              "hsa_amd_queue_set_priority",
}

var callKindByName = func() map[string]CallKind {
	m := make(map[string]CallKind, len(callKindNames))
	for k, name := range callKindNames {
		if CallKind(k) == CallUnknown {
			continue
		}
		m[name] = CallKind(k)
	}
	return m
}()

// String returns the runtime entry point name.
func (k CallKind) String() string {
	if k < callKindCount {
		return callKindNames[k]
	}
	return callKindNames[CallUnknown]
}

// Valid reports whether k names a known entry point.
func (k CallKind) Valid() bool {
	return k > CallUnknown && k < callKindCount
}

// ParseCallKind maps an entry point name to its kind. Surrounding whitespace
// is ignored. Unknown names return CallUnknown.
func ParseCallKind(name string) CallKind {
	if k, ok := callKindByName[strings.TrimSpace(name)]; ok {
		return k
	}
	return CallUnknown
}

// AllCallKinds returns every known call kind in declaration order.
func AllCallKinds() []CallKind {
	kinds := make([]CallKind, 0, int(callKindCount)-1)
	for k := CallUnknown + 1; k < callKindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

//go:build tinygo

// minimal reports no call sites for any input.
package main

import (
	"encoding/json"
	"unsafe"
)

var heapPtr uintptr = 0x20000

//export abi_version
func abiVersion() uint32 {
	return 1
}

//export alloc
func alloc(size uint32) uint32 {
	ptr := uint32(heapPtr)
	heapPtr += uintptr(size)
	return ptr
}

//export free
func free(ptr, size uint32) {}

//export extract_calls
func extractCalls(inputPtr, inputLen uint32) uint64 {
	input := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(inputPtr))), inputLen)

	var req struct {
		Path   string `json:"path"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(input, &req); err != nil {
		return respond(map[string]any{"ok": false, "error": "failed to parse input JSON", "code": "bad_input"})
	}
	return respond(map[string]any{"ok": true, "calls": []any{}})
}

func respond(v any) uint64 {
	out, _ := json.Marshal(v)
	ptr := alloc(uint32(len(out)))
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(out)), out)
	return (uint64(len(out)) << 32) | uint64(ptr)
}

func main() {}

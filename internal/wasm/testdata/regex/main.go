//go:build tinygo

// regex reports the first `recv.level("message"` call in the source,
// using the host regex functions.
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

//go:wasm-module env
//export regex_match
func regexMatch(strPtr, strLen, rePtr, reLen uint32) uint32

//go:wasm-module env
//export regex_find_submatch
func regexFindSubmatch(strPtr, strLen, rePtr, reLen, outPtr, outLen uint32) uint32

//go:wasm-module env
//export log
func hostLog(level, ptr, msgLen uint32)

const callPattern = `(\w+)\.(trace|debug|info|warn|error)\("([^"\\]*)"\s*[,)]`

func ptrOf(s string) uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.StringData(s))))
}

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
	if req.Source == "" {
		return respond(map[string]any{"ok": true, "calls": []any{}})
	}

	if regexMatch(ptrOf(req.Source), uint32(len(req.Source)), ptrOf(callPattern), uint32(len(callPattern))) == 0 {
		return respond(map[string]any{"ok": true, "calls": []any{}})
	}

	var buf [4096]byte
	n := regexFindSubmatch(ptrOf(req.Source), uint32(len(req.Source)), ptrOf(callPattern), uint32(len(callPattern)),
		uint32(uintptr(unsafe.Pointer(&buf[0]))), uint32(len(buf)))
	var groups []string
	if n == 0 || n == 0xFFFFFFFF || json.Unmarshal(buf[:n], &groups) != nil || len(groups) != 4 {
		return respond(map[string]any{"ok": false, "error": "submatch failed", "code": "regex"})
	}

	msg := "regex plugin matched"
	hostLog(1, ptrOf(msg), uint32(len(msg)))

	call := map[string]any{
		"line":     1,
		"method":   groups[2],
		"receiver": groups[1],
		"template": groups[3],
		"has_args": true,
		"literal":  true,
	}
	return respond(map[string]any{"ok": true, "calls": []any{call}})
}

func respond(v any) uint64 {
	out, _ := json.Marshal(v)
	ptr := alloc(uint32(len(out)))
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(out)), out)
	return (uint64(len(out)) << 32) | uint64(ptr)
}

func main() {}

// Package wasm runs source extractors compiled to WebAssembly.
//
// A plugin exports abi_version, alloc, free and extract_calls. The host
// passes {"path","source"} as JSON and receives {"ok","calls","error","code"}.
// Plugins may import regex_match, regex_find_submatch, log and now_ms from
// the "env" module.
package wasm

import (
	"errors"
	"fmt"
)

var (
	// ErrABIVersionMismatch indicates the plugin's ABI version is incompatible.
	ErrABIVersionMismatch = errors.New("abi version mismatch")

	// ErrTimeout indicates the plugin exceeded the execution timeout.
	ErrTimeout = errors.New("plugin timeout")

	// ErrFileTooLarge indicates the Wasm file exceeds the size limit.
	ErrFileTooLarge = errors.New("wasm file too large")

	// ErrClosed is returned by Extract after Close.
	ErrClosed = errors.New("extractor is closed")
)

// ABIError reports a plugin that does not follow the calling convention.
type ABIError struct {
	Function string
	Reason   string
}

func (e *ABIError) Error() string {
	return fmt.Sprintf("abi error in %s: %s", e.Function, e.Reason)
}

// PluginError is a failure reported by the plugin itself.
type PluginError struct {
	Code    string
	Message string
}

func (e *PluginError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("plugin error %s: %s", e.Code, e.Message)
	}
	return "plugin error: " + e.Message
}

// WasmRuntimeError wraps a wazero failure with the step that failed.
type WasmRuntimeError struct {
	Operation string
	Err       error
}

func (e *WasmRuntimeError) Error() string {
	return fmt.Sprintf("wasm runtime error during %s: %v", e.Operation, e.Err)
}

func (e *WasmRuntimeError) Unwrap() error {
	return e.Err
}

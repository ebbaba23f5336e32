package wasm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"

	"github.com/logminer/logminer-go/pkg/logminer/extract"
)

const (
	// DefaultTimeout bounds one extract_calls invocation.
	DefaultTimeout = 200 * time.Millisecond

	// MaxInputSize is the largest request passed to a plugin.
	MaxInputSize = 16 * 1024 * 1024

	// MaxOutputSize is the largest response read back from a plugin.
	MaxOutputSize = 4 * 1024 * 1024
)

type request struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

type response struct {
	Ok    bool               `json:"ok"`
	Calls []extract.CallSite `json:"calls"`
	Error string             `json:"error,omitempty"`
	Code  string             `json:"code,omitempty"`
}

// Extractor finds logging call sites by running a WebAssembly plugin.
// It is safe for concurrent use: every call runs in a fresh instance.
type Extractor struct {
	mu         sync.RWMutex
	mod        *module
	timeout    atomic.Int64
	logger     *slog.Logger
	abiVersion uint32
	instances  atomic.Uint64
}

var _ extract.Extractor = (*Extractor)(nil)

// Load compiles the plugin at path and checks its ABI version.
// A nil logger discards plugin diagnostics.
func Load(ctx context.Context, path string, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mod, err := compileModule(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load wasm: %w", err)
	}

	version, err := abiVersion(ctx, mod)
	if err != nil {
		mod.Close(context.Background())
		return nil, err
	}
	if version != ExpectedABIVersion {
		mod.Close(context.Background())
		return nil, fmt.Errorf("%w: plugin %d, host %d", ErrABIVersionMismatch, version, ExpectedABIVersion)
	}

	e := &Extractor{mod: mod, logger: logger, abiVersion: version}
	e.timeout.Store(int64(DefaultTimeout))
	logger.Debug("loaded wasm extractor", "path", path, "abi_version", version)
	return e, nil
}

func abiVersion(ctx context.Context, mod *module) (uint32, error) {
	inst, err := mod.runtime.InstantiateModule(ctx, mod.compiled, wazero.NewModuleConfig().WithName("plugin-init"))
	if err != nil {
		return 0, &WasmRuntimeError{Operation: "initial module instantiation", Err: err}
	}
	defer inst.Close(context.Background())

	results, err := inst.ExportedFunction("abi_version").Call(ctx)
	if err != nil {
		return 0, &WasmRuntimeError{Operation: "abi_version call", Err: err}
	}
	if len(results) == 0 {
		return 0, &ABIError{Function: "abi_version", Reason: "no return value"}
	}
	return uint32(results[0]), nil
}

// SetTimeout sets the time limit of one Extract call.
func (e *Extractor) SetTimeout(d time.Duration) {
	e.timeout.Store(int64(d))
}

// Extract sends the source file to the plugin and returns the call sites it
// reports. Sites without a File get path.
func (e *Extractor) Extract(ctx context.Context, path string, src []byte) ([]extract.CallSite, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.mod == nil {
		return nil, ErrClosed
	}

	input, err := json.Marshal(request{Path: path, Source: string(src)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	if len(input) > MaxInputSize {
		return nil, fmt.Errorf("input too large: %d bytes (max %d)", len(input), MaxInputSize)
	}

	output, err := e.call(ctx, input)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(output, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	if !resp.Ok {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &PluginError{Code: resp.Code, Message: msg}
	}
	for i := range resp.Calls {
		if resp.Calls[i].File == "" {
			resp.Calls[i].File = path
		}
	}
	e.logger.Debug("plugin extracted calls", "file", path, "calls", len(resp.Calls))
	return resp.Calls, nil
}

// call runs extract_calls in a new instance and returns a copy of its output.
func (e *Extractor) call(ctx context.Context, input []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.timeout.Load()))
	defer cancel()

	name := fmt.Sprintf("plugin-%d", e.instances.Add(1))
	inst, err := e.mod.runtime.InstantiateModule(ctx, e.mod.compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, e.callError(ctx, "module instantiation", err)
	}
	defer inst.Close(context.Background())

	res, err := inst.ExportedFunction("alloc").Call(ctx, uint64(len(input)))
	if err != nil {
		return nil, e.callError(ctx, "alloc call", err)
	}
	if len(res) == 0 {
		return nil, &ABIError{Function: "alloc", Reason: "no return value"}
	}
	inPtr := uint32(res[0])
	if !inst.Memory().Write(inPtr, input) {
		return nil, &ABIError{Function: "alloc", Reason: "returned buffer outside memory"}
	}

	res, err = inst.ExportedFunction("extract_calls").Call(ctx, uint64(inPtr), uint64(len(input)))
	if err != nil {
		return nil, e.callError(ctx, "extract_calls call", err)
	}
	if len(res) == 0 {
		return nil, &ABIError{Function: "extract_calls", Reason: "no return value"}
	}

	// The result packs (out_len << 32) | out_ptr.
	outPtr := uint32(res[0])
	outLen := uint32(res[0] >> 32)
	if outLen > MaxOutputSize {
		return nil, fmt.Errorf("plugin output too large: %d bytes (max %d)", outLen, MaxOutputSize)
	}
	view, ok := inst.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, &ABIError{Function: "extract_calls", Reason: "output outside memory"}
	}
	// Read returns a view into guest memory, which free may reuse.
	out := make([]byte, len(view))
	copy(out, view)

	_, _ = inst.ExportedFunction("free").Call(ctx, uint64(outPtr), uint64(outLen))
	return out, nil
}

func (e *Extractor) callError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return &WasmRuntimeError{Operation: op, Err: err}
	}
}

// Close releases the compiled plugin. Safe to call multiple times.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mod == nil {
		return nil
	}
	err := e.mod.Close(context.Background())
	e.mod = nil
	return err
}

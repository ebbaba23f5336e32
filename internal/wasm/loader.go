package wasm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/logminer/logminer-go/internal/safefile"
)

const (
	// MaxWasmFileSize is the largest plugin module accepted (10MB).
	MaxWasmFileSize = 10 * 1024 * 1024

	// ExpectedABIVersion is the plugin ABI this host implements.
	ExpectedABIVersion = 1
)

// requiredExports are the functions every plugin must export.
var requiredExports = []string{"abi_version", "alloc", "free", "extract_calls"}

// module is a compiled plugin ready for instantiation.
type module struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	cache    wazero.CompilationCache
}

// Close releases the cache, the compiled module and the runtime, in that
// order. Safe to call multiple times.
func (c *module) Close(ctx context.Context) error {
	var errs []error
	if c.cache != nil {
		errs = append(errs, c.cache.Close(ctx))
		c.cache = nil
	}
	if c.compiled != nil {
		errs = append(errs, c.compiled.Close(ctx))
		c.compiled = nil
	}
	if c.runtime != nil {
		errs = append(errs, c.runtime.Close(ctx))
		c.runtime = nil
	}
	return errors.Join(errs...)
}

// compileModule reads and compiles the plugin at path, registers the host
// functions and checks the required exports.
func compileModule(ctx context.Context, path string, logger *slog.Logger) (*module, error) {
	wasmBytes, err := readModule(path)
	if err != nil {
		return nil, err
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)

	var cache wazero.CompilationCache
	if dir, err := cacheDir(); err == nil {
		if cache, err = wazero.NewCompilationCacheWithDir(dir); err == nil {
			rtConfig = rtConfig.WithCompilationCache(cache)
			logger.Debug("using wasm compilation cache", "dir", dir)
		} else {
			logger.Warn("failed to create compilation cache, continuing without cache", "error", err)
		}
	}

	m := &module{runtime: wazero.NewRuntimeWithConfig(ctx, rtConfig), cache: cache}
	fail := func(err error) (*module, error) {
		m.Close(context.Background())
		return nil, err
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, m.runtime); err != nil {
		return fail(&WasmRuntimeError{Operation: "wasi instantiation", Err: err})
	}
	if err := registerHost(ctx, m.runtime, newHostFunctions(logger)); err != nil {
		return fail(&WasmRuntimeError{Operation: "host functions registration", Err: err})
	}

	m.compiled, err = m.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fail(&WasmRuntimeError{Operation: "wasm compilation", Err: err})
	}
	if err := checkExports(m.compiled); err != nil {
		return fail(err)
	}
	return m, nil
}

func readModule(path string) ([]byte, error) {
	f, info, err := safefile.OpenRegular(path)
	if err != nil {
		if errors.Is(err, safefile.ErrNotRegularFile) {
			return nil, fmt.Errorf("wasm path is not a regular file: %w", err)
		}
		return nil, fmt.Errorf("failed to open wasm file: %w", err)
	}
	defer f.Close()

	if info.Size() > MaxWasmFileSize {
		return nil, ErrFileTooLarge
	}
	// The file may grow between Stat and Read.
	data, err := io.ReadAll(io.LimitReader(f, MaxWasmFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read wasm file: %w", err)
	}
	if int64(len(data)) > MaxWasmFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func registerHost(ctx context.Context, rt wazero.Runtime, hf *hostFunctions) error {
	_, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, strPtr, strLen, rePtr, reLen uint32) uint32 {
			return hf.regexMatch(ctx, m, strPtr, strLen, rePtr, reLen)
		}).
		Export("regex_match").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, strPtr, strLen, rePtr, reLen, outPtr, outLen uint32) uint32 {
			return hf.regexFindSubmatch(ctx, m, strPtr, strLen, rePtr, reLen, outPtr, outLen)
		}).
		Export("regex_find_submatch").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, level, ptr, msgLen uint32) {
			hf.log(ctx, m, level, ptr, msgLen)
		}).
		Export("log").
		NewFunctionBuilder().
		WithFunc(hf.nowMs).
		Export("now_ms").
		Instantiate(ctx)
	return err
}

// checkExports verifies that the required functions exist. Their
// signatures are checked when called.
func checkExports(compiled wazero.CompiledModule) error {
	exported := compiled.ExportedFunctions()
	for _, name := range requiredExports {
		if _, ok := exported[name]; !ok {
			return &ABIError{Function: name, Reason: "missing required export"}
		}
	}
	return nil
}

// cacheDir returns the compilation cache directory under XDG_CACHE_HOME,
// creating it with user-only permissions.
func cacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "logminer", "wasm")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

package wasm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// pluginPath returns testdata/<name>, skipping the test when the plugin has
// not been built with `tinygo build -o testdata/<name> -target=wasi ./testdata/<dir>`.
func pluginPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("plugin %s not built", name)
	}
	return path
}

func loadPlugin(t *testing.T, name string) *Extractor {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	e, err := Load(context.Background(), pluginPath(t, name), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestLoad_Success(t *testing.T) {
	e := loadPlugin(t, "minimal.wasm")
	if e.abiVersion != ExpectedABIVersion {
		t.Errorf("ABI version = %d, want %d", e.abiVersion, ExpectedABIVersion)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "testdata/nonexistent.wasm", nil)
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "failed to open wasm file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_Directory(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), nil)
	if err == nil || !strings.Contains(err.Error(), "not a regular file") {
		t.Errorf("expected regular file error, got %v", err)
	}
}

func TestLoad_InvalidWasm(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "invalid.wasm")
	if err := os.WriteFile(path, []byte("not a wasm file"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(context.Background(), path, nil)
	var rtErr *WasmRuntimeError
	if !errors.As(err, &rtErr) {
		t.Fatalf("expected WasmRuntimeError, got %v", err)
	}
	if rtErr.Operation != "wasm compilation" {
		t.Errorf("operation = %q", rtErr.Operation)
	}
}

func TestLoad_MissingExports(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	// An empty module: magic number and version 1.
	path := filepath.Join(t.TempDir(), "empty.wasm")
	if err := os.WriteFile(path, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(context.Background(), path, nil)
	var abiErr *ABIError
	if !errors.As(err, &abiErr) {
		t.Fatalf("expected ABIError, got %v", err)
	}
	if abiErr.Function != "abi_version" {
		t.Errorf("function = %q, want abi_version", abiErr.Function)
	}
}

func TestExtract_NoCalls(t *testing.T) {
	e := loadPlugin(t, "minimal.wasm")

	calls, err := e.Extract(context.Background(), "A.kt", []byte(`log.info("x")`))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("expected no calls, got %d", len(calls))
	}
}

func TestExtract_EmptySource(t *testing.T) {
	e := loadPlugin(t, "minimal.wasm")

	if _, err := e.Extract(context.Background(), "A.kt", nil); err != nil {
		t.Fatalf("Extract failed for empty source: %v", err)
	}
}

func TestExtract_HostFunctions(t *testing.T) {
	e := loadPlugin(t, "regex.wasm")

	src := []byte(`fun start() { logger.warn("Device {} lost", id) }`)
	calls, err := e.Extract(context.Background(), "Device.kt", src)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	c := calls[0]
	if c.File != "Device.kt" {
		t.Errorf("File = %q, want Device.kt", c.File)
	}
	if c.Method != "warn" || c.Receiver != "logger" || c.Template != "Device {} lost" {
		t.Errorf("unexpected call: %+v", c)
	}
	if !c.HasArgs || !c.Literal {
		t.Errorf("expected literal call with arguments: %+v", c)
	}
}

func TestExtract_Timeout(t *testing.T) {
	e := loadPlugin(t, "slow.wasm")
	e.SetTimeout(10 * time.Millisecond)

	_, err := e.Extract(context.Background(), "A.kt", []byte("x"))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestExtract_Cancelled(t *testing.T) {
	e := loadPlugin(t, "slow.wasm")
	e.SetTimeout(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	// The parent deadline is reported as a timeout as well.
	if _, err := e.Extract(ctx, "A.kt", []byte("x")); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if _, err := e.Extract(ctx, "A.kt", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExtract_LargeInput(t *testing.T) {
	e := loadPlugin(t, "minimal.wasm")

	_, err := e.Extract(context.Background(), "A.kt", []byte(strings.Repeat("a", MaxInputSize)))
	if err == nil || !strings.Contains(err.Error(), "input too large") {
		t.Errorf("expected input too large error, got %v", err)
	}
}

func TestExtract_AfterClose(t *testing.T) {
	e := loadPlugin(t, "minimal.wasm")
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := e.Extract(context.Background(), "A.kt", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestExtract_Concurrent(t *testing.T) {
	e := loadPlugin(t, "minimal.wasm")

	var wg sync.WaitGroup
	errCh := make(chan error, 50)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Extract(context.Background(), fmt.Sprintf("F%d.kt", i), []byte("x")); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent error: %v", err)
	}
}

func TestSetTimeout(t *testing.T) {
	e := loadPlugin(t, "minimal.wasm")
	if got := time.Duration(e.timeout.Load()); got != DefaultTimeout {
		t.Errorf("default timeout = %v, want %v", got, DefaultTimeout)
	}
	e.SetTimeout(time.Second)
	if got := time.Duration(e.timeout.Load()); got != time.Second {
		t.Errorf("timeout = %v, want 1s", got)
	}
}

func TestPluginError(t *testing.T) {
	tests := []struct {
		err  *PluginError
		want string
	}{
		{&PluginError{Code: "bad_input", Message: "oops"}, "plugin error bad_input: oops"},
		{&PluginError{Message: "oops"}, "plugin error: oops"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestCacheDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", base)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir failed: %v", err)
	}
	if want := filepath.Join(base, "logminer", "wasm"); dir != want {
		t.Errorf("cacheDir = %q, want %q", dir, want)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("cache dir not created: %v", err)
	}
}

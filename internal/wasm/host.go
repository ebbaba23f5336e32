package wasm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/tetratelabs/wazero/api"
	"golang.org/x/time/rate"
)

const (
	// MaxLogSize is the longest plugin log message kept; the rest is cut.
	MaxLogSize = 256

	// LogRateLimit is the number of plugin log calls allowed per second.
	LogRateLimit = 10

	// RegexTimeout bounds a single host regex evaluation.
	RegexTimeout = 5 * time.Millisecond

	// bufferTooSmall is returned by regex_find_submatch when the output
	// buffer cannot hold the result (-1 as i32).
	bufferTooSmall = 0xFFFFFFFF
)

// hostFunctions backs the functions a plugin imports from "env".
type hostFunctions struct {
	cache   *regexCache
	logger  *slog.Logger
	limiter *rate.Limiter
}

func newHostFunctions(logger *slog.Logger) *hostFunctions {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &hostFunctions{
		cache:   newRegexCache(DefaultRegexCacheSize),
		logger:  logger,
		limiter: rate.NewLimiter(LogRateLimit, LogRateLimit),
	}
}

// readArgs reads the subject string and expression source from guest memory
// and compiles the expression.
func (h *hostFunctions) readArgs(m api.Module, strPtr, strLen, rePtr, reLen uint32) (string, *regexp.Regexp, bool) {
	mem := m.Memory()
	subject, ok := mem.Read(strPtr, strLen)
	if !ok {
		return "", nil, false
	}
	source, ok := mem.Read(rePtr, reLen)
	if !ok {
		return "", nil, false
	}
	re, err := h.cache.Get(string(source))
	if err != nil {
		h.logger.Warn("plugin regex rejected", "pattern", string(source), "error", err)
		return "", nil, false
	}
	return string(subject), re, true
}

// evaluate runs the match under RegexTimeout. RE2 runs in linear time, so
// an abandoned evaluation finishes on its own shortly after.
func (h *hostFunctions) evaluate(ctx context.Context, re *regexp.Regexp, subject string) ([]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, RegexTimeout)
	defer cancel()

	done := make(chan []string, 1)
	go func() { done <- re.FindStringSubmatch(subject) }()

	select {
	case m := <-done:
		return m, true
	case <-ctx.Done():
		h.logger.Warn("plugin regex timed out", "pattern", re.String(), "str_len", len(subject))
		return nil, false
	}
}

// regexMatch implements regex_match(str_ptr, str_len, re_ptr, re_len) -> i32.
// It returns 1 on a match and 0 otherwise, including on error.
func (h *hostFunctions) regexMatch(ctx context.Context, m api.Module, strPtr, strLen, rePtr, reLen uint32) uint32 {
	subject, re, ok := h.readArgs(m, strPtr, strLen, rePtr, reLen)
	if !ok {
		return 0
	}
	if match, ok := h.evaluate(ctx, re, subject); ok && match != nil {
		return 1
	}
	return 0
}

// regexFindSubmatch implements
// regex_find_submatch(str_ptr, str_len, re_ptr, re_len, out_ptr, out_len) -> i32.
// The submatches are written to the output buffer as a JSON array of strings.
// It returns the bytes written, 0 on no match or error, and -1 when the
// buffer is too small.
func (h *hostFunctions) regexFindSubmatch(ctx context.Context, m api.Module, strPtr, strLen, rePtr, reLen, outPtr, outLen uint32) uint32 {
	subject, re, ok := h.readArgs(m, strPtr, strLen, rePtr, reLen)
	if !ok {
		return 0
	}
	match, ok := h.evaluate(ctx, re, subject)
	if !ok || match == nil {
		return 0
	}

	data, err := json.Marshal(match)
	if err != nil {
		h.logger.Error("failed to encode submatches", "error", err)
		return 0
	}
	if uint32(len(data)) > outLen {
		return bufferTooSmall
	}
	if !m.Memory().Write(outPtr, data) {
		return 0
	}
	return uint32(len(data))
}

// log implements log(level, ptr, len). Levels are 0=debug, 1=info, 2=warn
// and 3=error. Messages over the rate limit are dropped.
func (h *hostFunctions) log(ctx context.Context, m api.Module, level, ptr, msgLen uint32) {
	if !h.limiter.Allow() {
		return
	}

	truncated := msgLen > MaxLogSize
	if truncated {
		msgLen = MaxLogSize
	}
	raw, ok := m.Memory().Read(ptr, msgLen)
	if !ok {
		return
	}
	msg := strings.ToValidUTF8(string(raw), "\ufffd")
	if truncated {
		msg += " [truncated]"
	}

	h.logger.Log(ctx, pluginLevel(level), "[plugin] "+msg)
}

func pluginLevel(level uint32) slog.Level {
	switch level {
	case 0:
		return slog.LevelDebug
	case 2:
		return slog.LevelWarn
	case 3:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// nowMs implements now_ms() -> i64, the Unix time in milliseconds.
func (h *hostFunctions) nowMs() int64 {
	return time.Now().UnixMilli()
}

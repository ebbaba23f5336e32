package wasm

import (
	"container/list"
	"regexp"
	"sync"
)

const (
	// DefaultRegexCacheSize is the number of compiled expressions kept per plugin.
	DefaultRegexCacheSize = 100

	// MaxPatternLength bounds expressions plugins may ask the host to compile.
	MaxPatternLength = 512
)

// regexCache is a least-recently-used cache of compiled expressions, shared
// by all instances of one plugin.
type regexCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
	limit   int
}

type cachedRegex struct {
	source string
	re     *regexp.Regexp
}

func newRegexCache(limit int) *regexCache {
	if limit < 1 {
		limit = 1
	}
	return &regexCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		limit:   limit,
	}
}

// Get returns the compiled form of source, compiling and caching it on a miss.
func (c *regexCache) Get(source string) (*regexp.Regexp, error) {
	if len(source) > MaxPatternLength {
		return nil, &ABIError{Function: "regex_match", Reason: "pattern exceeds maximum length"}
	}

	if re, ok := c.lookup(source); ok {
		return re, nil
	}

	// Compile outside the lock; a concurrent miss may compile the same source.
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[source]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cachedRegex).re, nil
	}
	for c.order.Len() >= c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cachedRegex).source)
	}
	c.entries[source] = c.order.PushFront(&cachedRegex{source: source, re: re})
	return re, nil
}

func (c *regexCache) lookup(source string) (*regexp.Regexp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[source]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cachedRegex).re, true
}

// Len returns the number of cached expressions.
func (c *regexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

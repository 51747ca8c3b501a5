package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"github.com/chazu/exprcache/expr"
	"github.com/chazu/exprcache/rewrite"
	"github.com/chazu/exprcache/signature"
)

// DefaultShards is the shard count used when Options.Shards is not positive.
const DefaultShards = 16

// State is the lifecycle stage of one key.
type State int

const (
	Absent State = iota
	Building
	Present
)

func (s State) String() string {
	switch s {
	case Absent:
		return "Absent"
	case Building:
		return "Building"
	case Present:
		return "Present"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a Cache.
type Options struct {
	// Shards is rounded up to a power of two.
	Shards int

	// Match selects capture classes. Nil means rewrite.DefaultMatcher.
	Match rewrite.Matcher

	// Log receives build and failure records. Nil means the
	// "exprcache.cache" logger.
	Log commonlog.Logger
}

// Cache maps structural signatures to executors. Each distinct signature is
// compiled at most once for the lifetime of the Cache; entries are never
// replaced or evicted.
type Cache struct {
	compiler Compiler
	match    rewrite.Matcher
	keyer    *signature.Keyer
	log      commonlog.Logger

	shards []*shard
	mask   uint64

	flight   singleflight.Group
	building sync.Map // key -> struct{}

	hits     atomic.Uint64
	misses   atomic.Uint64
	builds   atomic.Uint64
	failures atomic.Uint64
	shared   atomic.Uint64
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*Executor
}

func (s *shard) get(key string) *Executor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key]
}

// put stores e unless key is already present, and returns the stored
// executor.
func (s *shard) put(key string, e *Executor) *Executor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.entries[key]; ok {
		return prev
	}
	s.entries[key] = e
	return e
}

// New returns an empty cache that compiles through compiler.
func New(compiler Compiler, opts Options) *Cache {
	n := 1
	for n < opts.Shards {
		n <<= 1
	}
	if opts.Shards <= 0 {
		n = DefaultShards
	}
	if opts.Match == nil {
		opts.Match = rewrite.DefaultMatcher
	}
	if opts.Log == nil {
		opts.Log = commonlog.GetLogger("exprcache.cache")
	}

	c := &Cache{
		compiler: compiler,
		match:    opts.Match,
		keyer:    signature.New(opts.Match),
		log:      opts.Log,
		shards:   make([]*shard, n),
		mask:     uint64(n - 1),
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]*Executor)}
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	return c.shards[xxh3.HashString(key)&c.mask]
}

// Key returns the signature tree is cached under.
func (c *Cache) Key(tree expr.Node) (string, error) {
	return c.keyer.Key(tree)
}

// GetOrBuild returns the executor for tree's signature, building it on first
// use. Concurrent callers with the same signature share one build; callers
// with other signatures are not held up by it.
func (c *Cache) GetOrBuild(tree expr.Node) (*Executor, error) {
	key, err := c.keyer.Key(tree)
	if err != nil {
		return nil, err
	}
	sh := c.shardFor(key)
	if e := sh.get(key); e != nil {
		c.hits.Add(1)
		c.log.Debug("cache hit", "key", key)
		return e, nil
	}

	c.misses.Add(1)
	v, err, shared := c.flight.Do(key, func() (any, error) {
		// Another flight may have finished between the lookup and Do.
		if e := sh.get(key); e != nil {
			return e, nil
		}
		c.building.Store(key, struct{}{})
		defer c.building.Delete(key)

		e, err := c.build(key, tree)
		if err != nil {
			c.failures.Add(1)
			c.log.Error("build failed", "key", key, "error", err.Error())
			return nil, err
		}
		return sh.put(key, e), nil
	})
	if shared {
		c.shared.Add(1)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Executor), nil
}

// build promotes captures, appends them to the lambda's parameters and
// compiles the result.
func (c *Cache) build(key string, tree expr.Node) (*Executor, error) {
	start := time.Now()

	reg := rewrite.NewRegistry()
	out, err := rewrite.Promote(tree, reg, c.match)
	if err != nil {
		return nil, err
	}

	lam, ok := out.(*expr.Lambda)
	if !ok {
		lam = &expr.Lambda{Body: out}
	}
	caps := reg.Captures()
	params := make([]*expr.Parameter, 0, len(lam.Parameters)+len(caps))
	params = append(params, lam.Parameters...)
	for _, e := range caps {
		params = append(params, e.Param)
	}

	fn, err := c.compiler.Compile(&expr.Lambda{Parameters: params, Body: lam.Body})
	if err != nil {
		return nil, &CompileError{Key: key, Err: err}
	}
	if fn == nil {
		return nil, &CompileError{Key: key, Err: errors.New("backend returned no callable")}
	}
	if fn.Arity() != len(params) {
		return nil, &CompileError{Key: key, Err: fmt.Errorf("callable takes %d arguments, want %d", fn.Arity(), len(params))}
	}

	e := newExecutor(key, fn, len(lam.Parameters), caps)
	c.builds.Add(1)
	c.log.Info("compiled expression",
		"key", key,
		"id", e.ID().String(),
		"arity", e.Arity(),
		"captures", len(caps),
		"duration", time.Since(start).String())
	return e, nil
}

// State reports the lifecycle stage of tree's signature.
func (c *Cache) State(tree expr.Node) (State, error) {
	key, err := c.keyer.Key(tree)
	if err != nil {
		return Absent, err
	}
	if c.shardFor(key).get(key) != nil {
		return Present, nil
	}
	if _, ok := c.building.Load(key); ok {
		return Building, nil
	}
	return Absent, nil
}

// Execute looks up or builds tree's executor and runs it with args.
func (c *Cache) Execute(tree expr.Node, args ...any) (any, error) {
	e, err := c.GetOrBuild(tree)
	if err != nil {
		return nil, err
	}
	return e.Execute(tree, args...)
}

// Execute0 is Execute for lambdas without explicit parameters.
func (c *Cache) Execute0(tree expr.Node) (any, error) {
	e, err := c.GetOrBuild(tree)
	if err != nil {
		return nil, err
	}
	return e.Execute0(tree)
}

// Execute1 is Execute for one explicit argument.
func (c *Cache) Execute1(tree expr.Node, a any) (any, error) {
	e, err := c.GetOrBuild(tree)
	if err != nil {
		return nil, err
	}
	return e.Execute1(tree, a)
}

// Execute2 is Execute for two explicit arguments.
func (c *Cache) Execute2(tree expr.Node, a, b any) (any, error) {
	e, err := c.GetOrBuild(tree)
	if err != nil {
		return nil, err
	}
	return e.Execute2(tree, a, b)
}

// Execute3 is Execute for three explicit arguments.
func (c *Cache) Execute3(tree expr.Node, a, b, x any) (any, error) {
	e, err := c.GetOrBuild(tree)
	if err != nil {
		return nil, err
	}
	return e.Execute3(tree, a, b, x)
}

// Execute4 is Execute for four explicit arguments.
func (c *Cache) Execute4(tree expr.Node, a, b, x, y any) (any, error) {
	e, err := c.GetOrBuild(tree)
	if err != nil {
		return nil, err
	}
	return e.Execute4(tree, a, b, x, y)
}

// Len returns the number of cached executors.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Keys returns every cached signature in sorted order.
func (c *Cache) Keys() []string {
	var keys []string
	for _, s := range c.shards {
		s.mu.RLock()
		for k := range s.entries {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:  c.Len(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Builds:   c.builds.Load(),
		Failures: c.failures.Load(),
		Shared:   c.shared.Load(),
	}
}

package route

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/tripwell/tripgate/internal/auth"
	"github.com/tripwell/tripgate/internal/circuitbreaker"
	"github.com/tripwell/tripgate/internal/config"
	"github.com/tripwell/tripgate/internal/ratelimit"
	"github.com/tripwell/tripgate/internal/util"
)

// Fallback is the static response served while a route's breaker rejects.
type Fallback struct {
	Status      int
	ContentType string
	Body        []byte
}

// Entry is one immutable route: a compiled pattern plus the policies applied
// to requests it matches.
type Entry struct {
	Name      string
	Pattern   string
	Target    *url.URL
	Auth      auth.Requirement
	RateLimit ratelimit.Policy
	Breaker   *circuitbreaker.Config
	Timeout   time.Duration
	Fallback  *Fallback

	matcher PathMatcher
	methods *MethodMatcher
	rank    int
}

// Match is the result of a successful resolution.
type Match struct {
	Entry  *Entry
	Params map[string]string
}

// Table is the immutable route table. It is built once per configuration and
// referenced by handle; concurrent lookups need no locking.
type Table struct {
	entries []*Entry
}

// Build compiles the configured routes into a table, sorted most specific
// first.
func Build(cfg *config.GatewayConfig) (*Table, error) {
	entries := make([]*Entry, 0, len(cfg.Routes))

	for i := range cfg.Routes {
		entry, err := buildEntry(&cfg.Routes[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].rank > entries[j].rank
	})

	return &Table{entries: entries}, nil
}

func buildEntry(rc *config.RouteConfig) (*Entry, error) {
	target, err := url.Parse(rc.Target)
	if err != nil {
		return nil, fmt.Errorf("route %s: invalid target %q: %w", rc.Name, rc.Target, err)
	}

	matcher, err := CompilePattern(rc.Pattern)
	if err != nil {
		return nil, fmt.Errorf("route %s: invalid pattern %q: %w", rc.Name, rc.Pattern, err)
	}

	level, ok := auth.ParseLevel(rc.Auth.Requirement)
	if !ok {
		return nil, fmt.Errorf("route %s: unknown auth requirement %q", rc.Name, rc.Auth.Requirement)
	}

	entry := &Entry{
		Name:    rc.Name,
		Pattern: rc.Pattern,
		Target:  target,
		Auth: auth.Requirement{
			Level: level,
			Roles: rc.Auth.Roles,
		},
		Timeout: rc.Timeout.Duration(),
		matcher: matcher,
		methods: NewMethodMatcher(rc.Methods),
		rank:    specificity(rc.Pattern),
	}

	if rc.RateLimit != nil {
		entry.RateLimit = ratelimit.Policy{
			Capacity:        rc.RateLimit.Capacity,
			RefillPerSecond: rc.RateLimit.RefillPerSecond,
		}
	}

	if rc.Breaker != nil {
		entry.Breaker = &circuitbreaker.Config{
			MinCalls:             rc.Breaker.MinCalls,
			FailureRateThreshold: rc.Breaker.FailureRateThreshold,
			WaitDuration:         rc.Breaker.WaitDuration.Duration(),
			MaxHalfOpenProbes:    rc.Breaker.MaxHalfOpenProbes,
			RequiredSuccesses:    rc.Breaker.RequiredSuccesses,
			WindowSize:           rc.Breaker.WindowSize,
		}
	}

	if rc.Fallback != nil {
		contentType := rc.Fallback.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		entry.Fallback = &Fallback{
			Status:      rc.Fallback.Status,
			ContentType: contentType,
			Body:        []byte(rc.Fallback.Body),
		}
	}

	return entry, nil
}

// Resolve finds the most specific entry matching method and path. Returns a
// RouteNotFoundError when nothing matches.
func (t *Table) Resolve(method, path string) (*Match, error) {
	for _, entry := range t.entries {
		if !entry.methods.Match(method) {
			continue
		}
		if matched, params := entry.matcher.Match(path); matched {
			return &Match{Entry: entry, Params: params}, nil
		}
	}
	return nil, util.NewRouteNotFoundError(method, path)
}

// Entries returns the table entries in match order.
func (t *Table) Entries() []*Entry {
	return t.entries
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/questhold/questhold/pkg/errors"
	"github.com/questhold/questhold/pkg/interfaces"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 30 * time.Second

// ProviderOutcome classifies one provider call.
type ProviderOutcome string

const (
	OutcomeMatched ProviderOutcome = "matched"
	OutcomeNoMatch ProviderOutcome = "no_match"
	OutcomeError   ProviderOutcome = "error"
	OutcomeTimeout ProviderOutcome = "timeout"
)

// ProviderObserver is notified after every provider call.
type ProviderObserver func(provider string, outcome ProviderOutcome)

// MatcherConfig controls title extraction and provider timeouts.
type MatcherConfig struct {
	ProviderTimeout        time.Duration
	ExtractTitleUsingRegex bool
	TitleRegex             string
}

// MatchResult is the outcome of Match or Rematch. Game is nil when no
// provider produced a candidate.
type MatchResult struct {
	Game      *Game
	Provider  string
	Title     string
	Consulted []string
}

// Matched reports whether a provider matched.
func (r *MatchResult) Matched() bool {
	return r != nil && r.Game != nil
}

// Matcher resolves library paths to game metadata by consulting the registered
// providers in priority order.
type Matcher struct {
	registry *ProviderRegistry
	logger   interfaces.Logger

	mu         sync.RWMutex
	timeout    time.Duration
	titleRegex *regexp.Regexp
	observer   ProviderObserver
}

// NewMatcher creates a matcher over registry.
func NewMatcher(registry *ProviderRegistry, cfg MatcherConfig, logger interfaces.Logger) (*Matcher, error) {
	m := &Matcher{registry: registry, logger: logger}
	if err := m.Configure(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// Configure swaps the title extraction and timeout settings. An invalid regex
// leaves the previous configuration in place.
func (m *Matcher) Configure(cfg MatcherConfig) error {
	var re *regexp.Regexp
	if cfg.ExtractTitleUsingRegex {
		expr := cfg.TitleRegex
		if expr == "" {
			expr = DefaultTitleRegex
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return pkgerrors.BadRequest("invalid title extraction regex %q: %v", expr, err)
		}
		re = compiled
	}

	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}

	m.mu.Lock()
	m.titleRegex = re
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// SetObserver installs a hook called after every provider call.
func (m *Matcher) SetObserver(observer ProviderObserver) {
	m.mu.Lock()
	m.observer = observer
	m.mu.Unlock()
}

// LookupTitle returns the title that would be searched for path.
func (m *Matcher) LookupTitle(path string) string {
	m.mu.RLock()
	re := m.titleRegex
	m.mu.RUnlock()
	return ExtractTitle(path, re)
}

// Match searches every provider for the game at path and returns the first
// match. Provider failures and timeouts count as "no match"; only
// cancellation of ctx is returned as an error.
func (m *Matcher) Match(ctx context.Context, path string, library *Library) (*MatchResult, error) {
	title := m.LookupTitle(path)
	result := &MatchResult{Title: title}

	var libraryID uuid.UUID
	if library != nil {
		libraryID = library.ID
	}

	for _, provider := range m.registry.Providers() {
		p := provider
		result.Consulted = append(result.Consulted, p.Name())

		candidate, err := m.call(ctx, p, func(callCtx context.Context) (*MetadataCandidate, error) {
			return p.FetchMetadata(callCtx, title)
		})
		if err != nil {
			return nil, err
		}
		if candidate != nil {
			result.Game = candidate.ToGame(path, libraryID, p.Name())
			result.Provider = p.Name()
			return result, nil
		}
	}

	m.logger.Debug("No provider matched",
		interfaces.String("path", path),
		interfaces.String("title", title))
	return result, nil
}

// Rematch refreshes metadata for an existing game. Providers that know the
// game's id are asked by id; the rest are asked by title.
func (m *Matcher) Rematch(ctx context.Context, game *Game) (*MatchResult, error) {
	title := m.LookupTitle(game.Path)
	result := &MatchResult{Title: title}

	var libraryID uuid.UUID
	if game.LibraryID != nil {
		libraryID = *game.LibraryID
	}

	for _, provider := range m.registry.Providers() {
		p := provider
		result.Consulted = append(result.Consulted, p.Name())

		fetch := func(callCtx context.Context) (*MetadataCandidate, error) {
			return p.FetchMetadata(callCtx, title)
		}
		if ip, ok := p.(IdentityProvider); ok {
			if id := game.ProviderIDs[p.Name()]; id != "" {
				fetch = func(callCtx context.Context) (*MetadataCandidate, error) {
					return ip.FetchByID(callCtx, id)
				}
			}
		}

		candidate, err := m.call(ctx, p, fetch)
		if err != nil {
			return nil, err
		}
		if candidate != nil {
			result.Game = candidate.ToGame(game.Path, libraryID, p.Name())
			result.Provider = p.Name()
			return result, nil
		}
	}
	return result, nil
}

type providerResponse struct {
	candidate *MetadataCandidate
	err       error
}

// call runs fetch under the per-provider timeout. A provider that ignores its
// context is abandoned once the deadline passes.
func (m *Matcher) call(ctx context.Context, p MetadataProvider, fetch func(context.Context) (*MetadataCandidate, error)) (*MetadataCandidate, error) {
	m.mu.RLock()
	timeout := m.timeout
	observer := m.observer
	m.mu.RUnlock()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan providerResponse, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- providerResponse{err: fmt.Errorf("provider panicked: %v", r)}
			}
		}()
		candidate, err := fetch(callCtx)
		done <- providerResponse{candidate: candidate, err: err}
	}()

	var resp providerResponse
	select {
	case resp = <-done:
	case <-callCtx.Done():
		resp = providerResponse{err: callCtx.Err()}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	outcome := OutcomeMatched
	switch {
	case resp.err != nil && errors.Is(resp.err, context.DeadlineExceeded):
		outcome = OutcomeTimeout
		m.logger.Warn("Metadata provider timed out",
			interfaces.String("provider", p.Name()),
			interfaces.Duration("timeout", timeout))
	case resp.err != nil:
		outcome = OutcomeError
		m.logger.Warn("Metadata provider failed",
			interfaces.String("provider", p.Name()),
			interfaces.Error(resp.err))
	case resp.candidate == nil:
		outcome = OutcomeNoMatch
	}

	if observer != nil {
		observer(p.Name(), outcome)
	}
	if outcome != OutcomeMatched {
		return nil, nil
	}
	return resp.candidate, nil
}

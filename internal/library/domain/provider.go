package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/questhold/questhold/pkg/interfaces"
)

// MetadataCandidate is a provider's description of a game.
type MetadataCandidate struct {
	OriginalID     string
	Title          string
	Description    string
	CoverURLs      []string
	HeaderURLs     []string
	ScreenshotURLs []string
	VideoURLs      []string
	Release        *time.Time
	UserRating     *int
	CriticRating   *int
	Developers     []string
	Publishers     []string
	Genres         []string
	Themes         []string
	Keywords       []string
	Features       []string
	Perspectives   []string
}

// MetadataProvider resolves a title to game metadata. A nil candidate with a
// nil error means "no match".
type MetadataProvider interface {
	Name() string
	Priority() int
	FetchMetadata(ctx context.Context, title string) (*MetadataCandidate, error)
}

// IdentityProvider is implemented by providers that can look a game up by the
// id they returned earlier.
type IdentityProvider interface {
	FetchByID(ctx context.Context, originalID string) (*MetadataCandidate, error)
}

// ProviderRegistry holds the metadata providers known to the application.
type ProviderRegistry struct {
	providers []MetadataProvider
	mu        sync.RWMutex
	logger    interfaces.Logger
}

// NewProviderRegistry creates an empty registry
func NewProviderRegistry(logger interfaces.Logger) *ProviderRegistry {
	return &ProviderRegistry{logger: logger}
}

// Register adds provider, replacing any provider with the same name.
func (r *ProviderRegistry) Register(provider MetadataProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.providers {
		if p.Name() == provider.Name() {
			r.providers[i] = provider
			return
		}
	}

	r.providers = append(r.providers, provider)
	r.logger.Info("Registered metadata provider",
		interfaces.String("provider", provider.Name()),
		interfaces.Int("priority", provider.Priority()))
}

// Unregister removes the provider called name.
func (r *ProviderRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.providers {
		if p.Name() == name {
			r.providers = append(r.providers[:i:i], r.providers[i+1:]...)
			return true
		}
	}
	return false
}

// Providers returns a copy of the registered providers, highest priority
// first; equal priorities are ordered by name.
func (r *ProviderRegistry) Providers() []MetadataProvider {
	r.mu.RLock()
	providers := make([]MetadataProvider, len(r.providers))
	copy(providers, r.providers)
	r.mu.RUnlock()

	sort.SliceStable(providers, func(i, j int) bool {
		if providers[i].Priority() != providers[j].Priority() {
			return providers[i].Priority() > providers[j].Priority()
		}
		return providers[i].Name() < providers[j].Name()
	})
	return providers
}

// ToGame builds an unpersisted game for path from the candidate. Every field
// the candidate sets is recorded as sourced from provider.
func (c *MetadataCandidate) ToGame(path string, libraryID uuid.UUID, provider string) *Game {
	now := time.Now().UTC()
	game := &Game{
		Path:          path,
		ProviderIDs:   map[string]string{},
		FieldMetadata: map[string]GameFieldMetadata{},
	}
	if libraryID != uuid.Nil {
		id := libraryID
		game.LibraryID = &id
	}
	if c.OriginalID != "" {
		game.ProviderIDs[provider] = c.OriginalID
	}

	track := func(field string, set bool) {
		if set {
			game.FieldMetadata[field] = GameFieldMetadata{Source: PluginSource(provider), UpdatedAt: now}
		}
	}

	game.Title = c.Title
	track(FieldTitle, c.Title != "")
	game.Summary = c.Description
	track(FieldSummary, c.Description != "")
	game.Release = c.Release
	track(FieldRelease, c.Release != nil)
	game.UserRating = c.UserRating
	track(FieldUserRating, c.UserRating != nil)
	game.CriticRating = c.CriticRating
	track(FieldCriticRating, c.CriticRating != nil)

	lists := []struct {
		field string
		dst   *[]string
		src   []string
	}{
		{FieldDevelopers, &game.Developers, c.Developers},
		{FieldPublishers, &game.Publishers, c.Publishers},
		{FieldGenres, &game.Genres, c.Genres},
		{FieldThemes, &game.Themes, c.Themes},
		{FieldKeywords, &game.Keywords, c.Keywords},
		{FieldFeatures, &game.Features, c.Features},
		{FieldPerspectives, &game.Perspectives, c.Perspectives},
		{FieldVideoURLs, &game.VideoURLs, c.VideoURLs},
	}
	for _, l := range lists {
		*l.dst = dedupe(l.src)
		track(l.field, len(*l.dst) > 0)
	}

	if len(c.CoverURLs) > 0 && c.CoverURLs[0] != "" {
		game.CoverImage = &Image{OriginalURL: c.CoverURLs[0], Type: ImageTypeCover}
		track(FieldCoverImage, true)
	}
	if len(c.HeaderURLs) > 0 && c.HeaderURLs[0] != "" {
		game.HeaderImage = &Image{OriginalURL: c.HeaderURLs[0], Type: ImageTypeHeader}
		track(FieldHeaderImage, true)
	}
	for _, u := range dedupe(c.ScreenshotURLs) {
		game.Images = append(game.Images, Image{OriginalURL: u, Type: ImageTypeScreenshot})
	}
	track(FieldImages, len(game.Images) > 0)

	return game
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

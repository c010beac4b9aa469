package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/library/repository"
	pkgerrors "github.com/questhold/questhold/pkg/errors"
	"github.com/questhold/questhold/pkg/interfaces"
)

// GameProcessor turns matched paths into persisted games and keeps existing
// games in sync with their providers. Every operation runs in its own
// transaction; network I/O happens before the transaction is opened.
type GameProcessor struct {
	repo      repository.Repository
	matcher   GameMatcher
	images    ImageAcquirer
	eventBus  interfaces.EventBus
	logger    interfaces.Logger
	diskUsage func(path string) (int64, error)
}

// NewGameProcessor creates a new game processor
func NewGameProcessor(
	repo repository.Repository,
	matcher GameMatcher,
	images ImageAcquirer,
	eventBus interfaces.EventBus,
	logger interfaces.Logger,
) *GameProcessor {
	return &GameProcessor{
		repo:      repo,
		matcher:   matcher,
		images:    images,
		eventBus:  eventBus,
		logger:    logger,
		diskUsage: domain.DiskUsage,
	}
}

// ProcessNewGame matches path and persists the resulting game.
func (p *GameProcessor) ProcessNewGame(ctx context.Context, path string, library *domain.Library) (*domain.Game, error) {
	result, err := p.matcher.Match(ctx, path, library)
	if err != nil {
		return nil, err
	}
	if !result.Matched() {
		return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, fmt.Sprintf("no provider matched %s", path), domain.ErrNoMatch)
	}
	return p.CreateGame(ctx, result.Game)
}

// CreateGame acquires the images of an unpersisted game, measures its size
// and stores it. On failure every image acquired for it is released again.
func (p *GameProcessor) CreateGame(ctx context.Context, game *domain.Game) (*domain.Game, error) {
	acquired, err := p.acquireImages(ctx, game)
	if err != nil {
		p.release(ctx, acquired)
		return nil, err
	}

	game.FileSize = p.measure(game.Path)

	err = p.repo.Transaction(ctx, func(tx repository.Repository) error {
		return tx.CreateGame(ctx, game)
	})
	if err != nil {
		p.release(ctx, acquired)
		return nil, err
	}
	p.unhold(acquired)

	p.eventBus.PublishAsync(ctx, domain.NewGameCreatedEvent(game))

	p.logger.Info("Game created",
		interfaces.String("game_id", game.ID.String()),
		interfaces.String("title", game.Title),
		interfaces.String("path", game.Path))

	return game, nil
}

// ProcessExistingGame rematches a persisted game and applies changed
// provider fields. It returns nil when nothing changed.
func (p *GameProcessor) ProcessExistingGame(ctx context.Context, game *domain.Game) (*domain.Game, error) {
	result, err := p.matcher.Rematch(ctx, game)
	if err != nil {
		return nil, err
	}
	return p.refresh(ctx, game.ID, "", nil, result)
}

// RelocateGame moves a game to newPath, typically after the same provider
// identity reappeared under a different name, and applies the fresh match.
func (p *GameProcessor) RelocateGame(ctx context.Context, game *domain.Game, newPath string, match *domain.MatchResult) (*domain.Game, error) {
	var libraryID *uuid.UUID
	if match != nil && match.Game != nil && match.Game.LibraryID != nil {
		id := *match.Game.LibraryID
		libraryID = &id
	}
	return p.refresh(ctx, game.ID, newPath, libraryID, match)
}

func (p *GameProcessor) refresh(
	ctx context.Context,
	gameID uuid.UUID,
	newPath string,
	libraryID *uuid.UUID,
	match *domain.MatchResult,
) (*domain.Game, error) {
	var fresh *domain.Game
	var acquired []uuid.UUID
	if match != nil && match.Matched() {
		fresh = match.Game
		var err error
		if acquired, err = p.acquireImages(ctx, fresh); err != nil {
			p.release(ctx, acquired)
			return nil, err
		}
	}

	sizePath := newPath
	if sizePath == "" {
		current, err := p.repo.GetGame(ctx, gameID)
		if err != nil {
			p.release(ctx, acquired)
			return nil, err
		}
		sizePath = current.Path
	}
	size := p.measure(sizePath)

	var updated *domain.Game
	var replaced []uuid.UUID
	err := p.repo.Transaction(ctx, func(tx repository.Repository) error {
		current, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		before := current.ImageIDs()

		changed := false
		if newPath != "" && current.Path != newPath {
			current.Path = newPath
			changed = true
		}
		if libraryID != nil && (current.LibraryID == nil || *current.LibraryID != *libraryID) {
			current.LibraryID = libraryID
			changed = true
		}
		if current.FileSize != size {
			current.FileSize = size
			changed = true
		}
		if fresh != nil && applyMetadata(current, fresh) {
			changed = true
		}
		if !changed {
			return nil
		}

		if err := tx.UpdateGame(ctx, current); err != nil {
			return err
		}
		replaced = missingFrom(before, current.ImageIDs())
		updated = current
		return nil
	})
	if err != nil {
		p.release(ctx, acquired)
		return nil, err
	}

	// Images fetched for fields that were not applied are dropped here too.
	p.release(ctx, acquired, replaced...)

	if updated == nil {
		return nil, nil
	}

	p.eventBus.PublishAsync(ctx, domain.NewGameUpdatedEvent(updated))

	p.logger.Info("Game updated",
		interfaces.String("game_id", updated.ID.String()),
		interfaces.String("title", updated.Title),
		interfaces.String("path", updated.Path))

	return updated, nil
}

// acquireImages replaces every image reference of game with its persisted
// counterpart and returns the ids acquired so far, also on error.
func (p *GameProcessor) acquireImages(ctx context.Context, game *domain.Game) ([]uuid.UUID, error) {
	var acquired []uuid.UUID
	for _, ref := range game.ImageRefs() {
		image, err := p.images.DownloadIfNew(ctx, ref)
		if err != nil {
			return acquired, fmt.Errorf("failed to acquire image %s: %w", ref.OriginalURL, err)
		}
		*ref = *image
		acquired = append(acquired, image.ID)
	}
	return acquired, nil
}

// unhold drops the holds taken while acquiring images. Each acquisition
// holds once, so duplicates are released once each.
func (p *GameProcessor) unhold(acquired []uuid.UUID) {
	for _, id := range acquired {
		p.images.Release(id)
	}
}

// release drops the holds on acquired and then deletes every image in
// acquired or orphaned that no game references any more.
func (p *GameProcessor) release(ctx context.Context, acquired []uuid.UUID, orphaned ...uuid.UUID) {
	p.unhold(acquired)

	ids := append(append([]uuid.UUID{}, orphaned...), acquired...)
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if _, err := p.images.DeleteImageIfUnused(context.WithoutCancel(ctx), id); err != nil {
			p.logger.Debug("Failed to release image",
				interfaces.String("image_id", id.String()),
				interfaces.Error(err))
		}
	}
}

func (p *GameProcessor) measure(path string) int64 {
	size, err := p.diskUsage(path)
	if err != nil {
		p.logger.Warn("Failed to compute disk usage, keeping partial size",
			interfaces.String("path", path),
			interfaces.Int64("size", size),
			interfaces.Error(err))
	}
	return size
}

// applyMetadata copies every provider-supplied field of fresh onto current,
// skipping fields a user has set. It reports whether anything changed.
func applyMetadata(current, fresh *domain.Game) bool {
	changed := false
	set := func(ok bool) {
		changed = changed || ok
	}

	set(applyField(current, fresh, domain.FieldTitle, &current.Title, fresh.Title, equalValue[string]))
	set(applyField(current, fresh, domain.FieldSummary, &current.Summary, fresh.Summary, equalValue[string]))
	set(applyField(current, fresh, domain.FieldRelease, &current.Release, fresh.Release, equalTime))
	set(applyField(current, fresh, domain.FieldUserRating, &current.UserRating, fresh.UserRating, equalPtr[int]))
	set(applyField(current, fresh, domain.FieldCriticRating, &current.CriticRating, fresh.CriticRating, equalPtr[int]))
	set(applyField(current, fresh, domain.FieldDevelopers, &current.Developers, fresh.Developers, equalStrings))
	set(applyField(current, fresh, domain.FieldPublishers, &current.Publishers, fresh.Publishers, equalStrings))
	set(applyField(current, fresh, domain.FieldGenres, &current.Genres, fresh.Genres, equalStrings))
	set(applyField(current, fresh, domain.FieldThemes, &current.Themes, fresh.Themes, equalStrings))
	set(applyField(current, fresh, domain.FieldKeywords, &current.Keywords, fresh.Keywords, equalStrings))
	set(applyField(current, fresh, domain.FieldFeatures, &current.Features, fresh.Features, equalStrings))
	set(applyField(current, fresh, domain.FieldPerspectives, &current.Perspectives, fresh.Perspectives, equalStrings))
	set(applyField(current, fresh, domain.FieldVideoURLs, &current.VideoURLs, fresh.VideoURLs, equalStrings))
	set(applyField(current, fresh, domain.FieldCoverImage, &current.CoverImage, fresh.CoverImage, equalImage))
	set(applyField(current, fresh, domain.FieldHeaderImage, &current.HeaderImage, fresh.HeaderImage, equalImage))
	set(applyField(current, fresh, domain.FieldImages, &current.Images, fresh.Images, equalGallery))

	for name, id := range fresh.ProviderIDs {
		if current.ProviderIDs[name] == id {
			continue
		}
		if current.ProviderIDs == nil {
			current.ProviderIDs = make(map[string]string)
		}
		current.ProviderIDs[name] = id
		changed = true
	}
	return changed
}

func applyField[T any](current, fresh *domain.Game, field string, dst *T, src T, equal func(a, b T) bool) bool {
	meta, ok := fresh.FieldMetadata[field]
	if !ok || current.IsUserSourced(field) || equal(*dst, src) {
		return false
	}
	*dst = src
	if current.FieldMetadata == nil {
		current.FieldMetadata = make(map[string]domain.GameFieldMetadata)
	}
	meta.UpdatedAt = time.Now().UTC()
	current.FieldMetadata[field] = meta
	return true
}

func equalValue[T comparable](a, b T) bool { return a == b }

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalStrings(a, b []string) bool { return slices.Equal(a, b) }

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalImage(a, b *domain.Image) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

// equalGallery compares galleries as id multisets. The join table keeps no
// position, so loaded galleries come back in no particular order.
func equalGallery(a, b []domain.Image) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[uuid.UUID]int, len(a))
	for _, img := range a {
		counts[img.ID]++
	}
	for _, img := range b {
		if counts[img.ID] == 0 {
			return false
		}
		counts[img.ID]--
	}
	return true
}

// missingFrom returns the ids in before that are absent from after.
func missingFrom(before, after []uuid.UUID) []uuid.UUID {
	var missing []uuid.UUID
	for _, id := range before {
		if !slices.Contains(after, id) {
			missing = append(missing, id)
		}
	}
	return missing
}

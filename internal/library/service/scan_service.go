package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/questhold/questhold/internal/library/constants"
	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/library/repository"
	pkgerrors "github.com/questhold/questhold/pkg/errors"
	"github.com/questhold/questhold/pkg/interfaces"
	"github.com/questhold/questhold/pkg/logger"
)

const (
	recentScanTTL = 24 * time.Hour

	// gamePathBatch keeps IN clauses below SQLite's bound parameter limit.
	gamePathBatch = 500
)

// Path outcomes reported to ScanMetrics.
const (
	PathOutcomeNew       = "new"
	PathOutcomeUpdated   = "updated"
	PathOutcomeRelocated = "relocated"
	PathOutcomeUnmatched = "unmatched"
	PathOutcomeFailed    = "failed"
	PathOutcomeRemoved   = "removed"
)

// ScanSettings supplies the walk options in effect when a scan starts.
type ScanSettings interface {
	WalkOptions(ctx context.Context) domain.WalkOptions
}

// StaticScanSettings always returns the same walk options.
type StaticScanSettings domain.WalkOptions

func (s StaticScanSettings) WalkOptions(context.Context) domain.WalkOptions {
	return domain.WalkOptions(s)
}

// ScanMetrics receives scan lifecycle notifications.
type ScanMetrics interface {
	ScanStarted(scanType domain.ScanType)
	ScanFinished(scanType domain.ScanType, status domain.ScanStatus, elapsed time.Duration)
	PathProcessed(outcome string)
}

type noopScanMetrics struct{}

func (noopScanMetrics) ScanStarted(domain.ScanType)                                    {}
func (noopScanMetrics) ScanFinished(domain.ScanType, domain.ScanStatus, time.Duration) {}
func (noopScanMetrics) PathProcessed(string)                                           {}

// ScanConfig tunes the scan orchestrator.
type ScanConfig struct {
	// Concurrency bounds how many libraries ScanAll scans at once
	Concurrency int
	// ProgressInterval is the minimum gap between counter-only progress events
	ProgressInterval time.Duration
}

// ScanService orchestrates library scans: walk, diff, match, process and
// finalize. At most one scan runs per library.
type ScanService struct {
	repo      repository.Repository
	processor Processor
	matcher   GameMatcher
	images    ImageAcquirer
	walker    *domain.Walker
	settings  ScanSettings
	eventBus  interfaces.EventBus
	recent    interfaces.Cache
	logger    interfaces.Logger
	metrics   ScanMetrics
	config    ScanConfig

	mu      sync.Mutex
	running map[uuid.UUID]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScanService creates a new scan service
func NewScanService(
	repo repository.Repository,
	processor Processor,
	matcher GameMatcher,
	images ImageAcquirer,
	settings ScanSettings,
	eventBus interfaces.EventBus,
	recent interfaces.Cache,
	logger interfaces.Logger,
	cfg ScanConfig,
) *ScanService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ScanService{
		repo:      repo,
		processor: processor,
		matcher:   matcher,
		images:    images,
		walker:    domain.NewWalker(logger),
		settings:  settings,
		eventBus:  eventBus,
		recent:    recent,
		logger:    logger,
		metrics:   noopScanMetrics{},
		config:    cfg,
		running:   make(map[uuid.UUID]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetMetrics installs a metrics recorder.
func (s *ScanService) SetMetrics(metrics ScanMetrics) {
	if metrics == nil {
		metrics = noopScanMetrics{}
	}
	s.metrics = metrics
}

// Wait blocks until every scan started by TriggerScan has finished.
func (s *ScanService) Wait() {
	s.wg.Wait()
}

// Close cancels scans started by TriggerScan and waits for them to stop.
func (s *ScanService) Close() {
	s.cancel()
	s.wg.Wait()
}

// IsScanning reports whether libraryID has a scan in progress.
func (s *ScanService) IsScanning(libraryID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[libraryID]
	return ok
}

func (s *ScanService) lock(libraryID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[libraryID]; ok {
		return false
	}
	s.running[libraryID] = struct{}{}
	return true
}

func (s *ScanService) unlock(libraryID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, libraryID)
}

// ScanLibrary scans one library and blocks until the scan finishes. The
// returned progress is a snapshot of the terminal state.
func (s *ScanService) ScanLibrary(ctx context.Context, libraryID uuid.UUID, scanType domain.ScanType) (*domain.LibraryScanProgress, error) {
	if !scanType.Valid() {
		return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeBadRequest, fmt.Sprintf("unknown scan type %q", scanType), domain.ErrInvalidScanType)
	}
	if !s.lock(libraryID) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, fmt.Sprintf("library %s is already being scanned", libraryID), domain.ErrScanInProgress)
	}
	defer s.unlock(libraryID)

	library, err := s.repo.GetLibrary(ctx, libraryID)
	if err != nil {
		return nil, err
	}

	progress := domain.NewLibraryScanProgress(library.ID, scanType)
	ctx = logger.WithScanID(ctx, progress.ID.String())
	log := s.logger.WithContext(ctx).WithFields(
		interfaces.String("library_id", library.ID.String()),
		interfaces.String("scan_type", string(scanType)))

	reporter := &progressReporter{
		service:  s,
		progress: progress,
		limiter:  rate.NewLimiter(rate.Every(s.config.ProgressInterval), 1),
		logger:   log,
	}

	log.Info("Library scan started", interfaces.String("library", library.Name))
	s.metrics.ScanStarted(scanType)
	started := time.Now()
	reporter.report(ctx, true)

	result, err := s.scan(ctx, library, progress, reporter, log)
	if err != nil {
		_ = progress.Fail(err)
		reporter.report(context.WithoutCancel(ctx), true)
		s.metrics.ScanFinished(scanType, domain.ScanStatusFailed, time.Since(started))
		log.Error("Library scan failed", interfaces.Error(err))
		return progress.Snapshot(), err
	}

	_ = progress.Complete(result)
	reporter.report(ctx, true)
	s.metrics.ScanFinished(scanType, domain.ScanStatusCompleted, time.Since(started))

	log.Info("Library scan completed",
		interfaces.Int("new", result.New),
		interfaces.Int("removed", result.Removed),
		interfaces.Int("unmatched", result.Unmatched),
		interfaces.Int("updated", result.Updated),
		interfaces.Int("failed", result.Failed),
		interfaces.Duration("elapsed", time.Since(started)))

	return progress.Snapshot(), nil
}

// scanState collects what a scan decided before it is finalized.
type scanState struct {
	removed    map[string]struct{}
	identities map[string]*domain.Game
	resolved   []string
	ignored    []*domain.IgnoredPath

	added, updated, unmatched, failed int
}

func (s *ScanService) scan(
	ctx context.Context,
	library *domain.Library,
	progress *domain.LibraryScanProgress,
	reporter *progressReporter,
	log interfaces.Logger,
) (*domain.LibraryScanResult, error) {
	gamePaths, err := s.repo.ListGamePaths(ctx, library.ID)
	if err != nil {
		return nil, err
	}
	ignored, err := s.repo.ListIgnoredPaths(ctx, library.ID)
	if err != nil {
		return nil, err
	}

	walked, err := s.walker.Walk(ctx, library.Directories, s.settings.WalkOptions(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to walk library: %w", err)
	}

	// Entries under unreadable roots, such as an unmounted share, are left
	// untouched instead of being treated as removed.
	if len(walked.Skipped) > 0 {
		kept := len(gamePaths)
		gamePaths = slices.DeleteFunc(gamePaths, walked.Unreachable)
		ignored = slices.DeleteFunc(ignored, func(p *domain.IgnoredPath) bool {
			return walked.Unreachable(p.Path)
		})
		log.Warn("Keeping games under unreadable library directories",
			interfaces.Int("skipped_directories", len(walked.Skipped)),
			interfaces.Int("kept_games", kept-len(gamePaths)))
	}

	ignoredPaths := make([]string, 0, len(ignored))
	for _, p := range ignored {
		ignoredPaths = append(ignoredPaths, p.Path)
	}
	diff := domain.Diff(walked.Paths, gamePaths, ignoredPaths)

	log.Debug("Filesystem scanned",
		interfaces.Int("on_disk", len(walked.Paths)),
		interfaces.Int("new", len(diff.NewPaths)),
		interfaces.Int("removed_games", len(diff.RemovedGamePaths)),
		interfaces.Int("removed_ignored", len(diff.RemovedIgnoredPaths)))

	state := &scanState{
		removed:    toPathSet(diff.RemovedGamePaths),
		identities: make(map[string]*domain.Game),
	}

	if progress.Type.RefreshesExisting() {
		if err := s.refreshExisting(ctx, gamePaths, state, progress, reporter, log); err != nil {
			return nil, err
		}
	}

	removedGames, err := s.loadGames(ctx, diff.RemovedGamePaths)
	if err != nil {
		return nil, err
	}
	for _, game := range removedGames {
		for _, key := range game.IdentityKeys() {
			state.identities[key] = game
		}
	}

	toProcess := pathsToProcess(diff, ignored)
	if err := progress.Advance(domain.StepProcessingNewGames, 0, len(toProcess)); err != nil {
		return nil, err
	}
	reporter.report(ctx, true)

	for i, path := range toProcess {
		if err := s.processPath(ctx, library, path, state, log); err != nil {
			return nil, err
		}
		_ = progress.Advance(domain.StepProcessingNewGames, i+1, len(toProcess))
		reporter.report(ctx, false)
	}

	if err := progress.Step(domain.StepFinishing); err != nil {
		return nil, err
	}
	reporter.report(ctx, true)

	removed, err := s.finalize(ctx, library, diff, state)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize scan: %w", err)
	}

	var result *domain.LibraryScanResult
	if progress.Type.RefreshesExisting() {
		result = domain.NewFullScanResult(state.added, removed, state.unmatched, state.updated)
	} else {
		result = domain.NewQuickScanResult(state.added, removed, state.unmatched)
	}
	result.Failed = state.failed
	return result, nil
}

// refreshExisting re-verifies every game that is still on disk.
func (s *ScanService) refreshExisting(
	ctx context.Context,
	gamePaths []string,
	state *scanState,
	progress *domain.LibraryScanProgress,
	reporter *progressReporter,
	log interfaces.Logger,
) error {
	present := make([]string, 0, len(gamePaths))
	for _, p := range gamePaths {
		if _, gone := state.removed[p]; !gone {
			present = append(present, p)
		}
	}

	if err := progress.Advance(domain.StepUpdatingGames, 0, len(present)); err != nil {
		return err
	}
	reporter.report(ctx, true)

	games, err := s.loadGames(ctx, present)
	if err != nil {
		return err
	}

	for i, game := range games {
		if err := ctx.Err(); err != nil {
			return err
		}

		updated, err := s.processor.ProcessExistingGame(ctx, game)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			state.failed++
			s.metrics.PathProcessed(PathOutcomeFailed)
			log.Warn("Failed to update game",
				interfaces.String("game_id", game.ID.String()),
				interfaces.String("path", game.Path),
				interfaces.Error(err))
		case updated != nil:
			state.updated++
			s.metrics.PathProcessed(PathOutcomeUpdated)
		}

		_ = progress.Advance(domain.StepUpdatingGames, i+1, len(games))
		reporter.report(ctx, false)
	}
	return nil
}

// processPath matches one candidate path and creates, relocates or ignores
// it. Only cancellation is returned as an error.
func (s *ScanService) processPath(
	ctx context.Context,
	library *domain.Library,
	path string,
	state *scanState,
	log interfaces.Logger,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	match, err := s.matcher.Match(ctx, path, library)
	if err != nil {
		return err
	}
	if !match.Matched() {
		state.unmatched++
		state.ignored = append(state.ignored, domain.NewPluginIgnoredPath(library.ID, path, match.Consulted))
		s.metrics.PathProcessed(PathOutcomeUnmatched)
		log.Debug("No provider matched path", interfaces.String("path", path))
		return nil
	}

	if previous := state.movedFrom(match.Game); previous != nil {
		_, err = s.processor.RelocateGame(ctx, previous, path, match)
		if err == nil {
			state.forget(previous)
			state.updated++
			state.resolved = append(state.resolved, path)
			s.metrics.PathProcessed(PathOutcomeRelocated)
			log.Info("Game moved",
				interfaces.String("game_id", previous.ID.String()),
				interfaces.String("from", previous.Path),
				interfaces.String("to", path))
			return nil
		}
	} else {
		_, err = s.processor.CreateGame(ctx, match.Game)
		if err == nil {
			state.added++
			state.resolved = append(state.resolved, path)
			s.metrics.PathProcessed(PathOutcomeNew)
			return nil
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	state.failed++
	state.ignored = append(state.ignored, domain.NewPluginIgnoredPath(library.ID, path, match.Consulted))
	s.metrics.PathProcessed(PathOutcomeFailed)
	log.Error("Failed to process game",
		interfaces.String("path", path),
		interfaces.String("provider", match.Provider),
		interfaces.Error(err))
	return nil
}

// movedFrom returns a removed game sharing a provider identity with game.
func (st *scanState) movedFrom(game *domain.Game) *domain.Game {
	for _, key := range game.IdentityKeys() {
		if previous, ok := st.identities[key]; ok {
			return previous
		}
	}
	return nil
}

func (st *scanState) forget(game *domain.Game) {
	delete(st.removed, game.Path)
	for key, g := range st.identities {
		if g.ID == game.ID {
			delete(st.identities, key)
		}
	}
}

// finalize applies removals and ignore decisions in one transaction and
// returns how many games were deleted.
func (s *ScanService) finalize(
	ctx context.Context,
	library *domain.Library,
	diff *domain.FilesystemScanResult,
	state *scanState,
) (int, error) {
	removedPaths := make([]string, 0, len(state.removed))
	for p := range state.removed {
		removedPaths = append(removedPaths, p)
	}
	sort.Strings(removedPaths)

	stale := append(append([]string{}, diff.RemovedIgnoredPaths...), state.resolved...)

	var deleted []*domain.Game
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		var err error
		if deleted, err = tx.DeleteGamesByPath(ctx, removedPaths); err != nil {
			return err
		}
		if len(stale) > 0 {
			if _, err := tx.DeleteIgnoredPaths(ctx, stale); err != nil {
				return err
			}
		}
		for _, ignored := range state.ignored {
			if err := tx.UpsertIgnoredPath(ctx, ignored); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, game := range deleted {
		for _, id := range game.ImageIDs() {
			if _, err := s.images.DeleteImageIfUnused(ctx, id); err != nil {
				s.logger.Debug("Failed to delete orphaned image",
					interfaces.String("image_id", id.String()),
					interfaces.Error(err))
			}
		}
		s.metrics.PathProcessed(PathOutcomeRemoved)
		s.eventBus.PublishAsync(ctx, domain.NewGameDeletedEvent(game))
	}

	if len(deleted) > 0 {
		s.logger.Info("Removed games no longer on disk",
			interfaces.String("library_id", library.ID.String()),
			interfaces.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

func (s *ScanService) loadGames(ctx context.Context, paths []string) ([]*domain.Game, error) {
	var games []*domain.Game
	for start := 0; start < len(paths); start += gamePathBatch {
		end := min(start+gamePathBatch, len(paths))
		batch, err := s.repo.ListGamesByPath(ctx, paths[start:end])
		if err != nil {
			return nil, err
		}
		games = append(games, batch...)
	}
	return games, nil
}

// pathsToProcess returns the new paths plus plugin-ignored paths still on
// disk, which are retried on every scan.
func pathsToProcess(diff *domain.FilesystemScanResult, ignored []*domain.IgnoredPath) []string {
	vanished := toPathSet(diff.RemovedIgnoredPaths)
	paths := append([]string{}, diff.NewPaths...)
	for _, p := range ignored {
		if p.Source != domain.IgnoredByPlugin {
			continue
		}
		if _, gone := vanished[p.Path]; gone {
			continue
		}
		paths = append(paths, p.Path)
	}
	sort.Strings(paths)
	return paths
}

func toPathSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

// TriggerScan starts scans of the given libraries, or of every library when
// none are given, in the background. Libraries already being scanned are
// skipped.
func (s *ScanService) TriggerScan(ctx context.Context, scanType domain.ScanType, libraryIDs []uuid.UUID) error {
	if !scanType.Valid() {
		return pkgerrors.Wrap(pkgerrors.ErrorTypeBadRequest, fmt.Sprintf("unknown scan type %q", scanType), domain.ErrInvalidScanType)
	}

	if len(libraryIDs) == 0 {
		libraries, err := s.repo.ListLibraries(ctx)
		if err != nil {
			return err
		}
		for _, library := range libraries {
			libraryIDs = append(libraryIDs, library.ID)
		}
	}

	for _, id := range libraryIDs {
		if s.IsScanning(id) {
			s.logger.Info("Scan already in progress, skipping",
				interfaces.String("library_id", id.String()))
			continue
		}

		s.wg.Add(1)
		go func(id uuid.UUID) {
			defer s.wg.Done()
			_, err := s.ScanLibrary(s.ctx, id, scanType)
			switch {
			case err == nil:
			case pkgerrors.IsConflict(err):
				s.logger.Info("Scan already in progress, skipping",
					interfaces.String("library_id", id.String()))
			default:
				s.logger.Error("Triggered scan failed",
					interfaces.String("library_id", id.String()),
					interfaces.Error(err))
			}
		}(id)
	}
	return nil
}

// ScanAll scans every library with bounded parallelism and returns the
// joined errors of the scans that failed.
func (s *ScanService) ScanAll(ctx context.Context, scanType domain.ScanType) error {
	libraries, err := s.repo.ListLibraries(ctx)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for _, library := range libraries {
		g.Go(func() error {
			_, err := s.ScanLibrary(ctx, library.ID, scanType)
			if err == nil {
				return nil
			}
			if pkgerrors.IsConflict(err) {
				s.logger.Info("Scan already in progress, skipping",
					interfaces.String("library_id", library.ID.String()))
				return nil
			}
			mu.Lock()
			errs = append(errs, fmt.Errorf("library %s: %w", library.Name, err))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// RecentScans returns the progress of scans from the last 24 hours, newest
// first.
func (s *ScanService) RecentScans(ctx context.Context) []*domain.LibraryScanProgress {
	var scans []*domain.LibraryScanProgress
	for key, v := range s.recent.Items(ctx) {
		if !strings.HasPrefix(key, constants.ScanCachePrefix) {
			continue
		}
		if p, ok := v.(*domain.LibraryScanProgress); ok {
			scans = append(scans, p.Snapshot())
		}
	}
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].StartedAt.After(scans[j].StartedAt)
	})
	return scans
}

// progressReporter persists and publishes scan progress. Counter updates are
// rate limited; forced reports always go out.
type progressReporter struct {
	service  *ScanService
	progress *domain.LibraryScanProgress
	limiter  *rate.Limiter
	logger   interfaces.Logger
}

func (r *progressReporter) report(ctx context.Context, force bool) {
	if !force && !r.limiter.Allow() {
		return
	}

	snapshot := r.progress.Snapshot()
	if err := r.service.repo.SaveScanProgress(ctx, snapshot); err != nil {
		r.logger.Warn("Failed to persist scan progress", interfaces.Error(err))
	}
	r.service.recent.Set(ctx, constants.ScanCachePrefix+snapshot.ID.String(), snapshot, recentScanTTL)
	r.service.eventBus.PublishAsync(ctx, domain.NewScanProgressEvent(snapshot))
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the library pipeline.
const (
	EventLibraryCreated = "library.created"
	EventLibraryUpdated = "library.updated"
	EventLibraryDeleted = "library.deleted"
	EventGameCreated    = "game.created"
	EventGameUpdated    = "game.updated"
	EventGameDeleted    = "game.deleted"
	EventScanProgress   = "library.scan.progress"
)

// LibraryCreatedEvent is published when a library is created
type LibraryCreatedEvent struct {
	Library    *Library `json:"library"`
	occurredAt time.Time
}

func NewLibraryCreatedEvent(library *Library) *LibraryCreatedEvent {
	return &LibraryCreatedEvent{Library: library, occurredAt: time.Now()}
}

func (e *LibraryCreatedEvent) EventType() string     { return EventLibraryCreated }
func (e *LibraryCreatedEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *LibraryCreatedEvent) AggregateID() string   { return e.Library.ID.String() }

// LibraryUpdatedEvent is published when a library is updated
type LibraryUpdatedEvent struct {
	Library    *Library `json:"library"`
	occurredAt time.Time
}

func NewLibraryUpdatedEvent(library *Library) *LibraryUpdatedEvent {
	return &LibraryUpdatedEvent{Library: library, occurredAt: time.Now()}
}

func (e *LibraryUpdatedEvent) EventType() string     { return EventLibraryUpdated }
func (e *LibraryUpdatedEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *LibraryUpdatedEvent) AggregateID() string   { return e.Library.ID.String() }

// LibraryDeletedEvent is published when a library is deleted
type LibraryDeletedEvent struct {
	LibraryID  uuid.UUID `json:"library_id"`
	occurredAt time.Time
}

func NewLibraryDeletedEvent(libraryID uuid.UUID) *LibraryDeletedEvent {
	return &LibraryDeletedEvent{LibraryID: libraryID, occurredAt: time.Now()}
}

func (e *LibraryDeletedEvent) EventType() string     { return EventLibraryDeleted }
func (e *LibraryDeletedEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *LibraryDeletedEvent) AggregateID() string   { return e.LibraryID.String() }

// GameCreatedEvent is published after a matched game has been persisted
type GameCreatedEvent struct {
	Game       *Game `json:"game"`
	occurredAt time.Time
}

func NewGameCreatedEvent(game *Game) *GameCreatedEvent {
	return &GameCreatedEvent{Game: game, occurredAt: time.Now()}
}

func (e *GameCreatedEvent) EventType() string     { return EventGameCreated }
func (e *GameCreatedEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *GameCreatedEvent) AggregateID() string   { return e.Game.ID.String() }

// GameUpdatedEvent is published after a rescan or move changed a game
type GameUpdatedEvent struct {
	Game       *Game `json:"game"`
	occurredAt time.Time
}

func NewGameUpdatedEvent(game *Game) *GameUpdatedEvent {
	return &GameUpdatedEvent{Game: game, occurredAt: time.Now()}
}

func (e *GameUpdatedEvent) EventType() string     { return EventGameUpdated }
func (e *GameUpdatedEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *GameUpdatedEvent) AggregateID() string   { return e.Game.ID.String() }

// GameDeletedEvent is published when a game's path disappeared from disk
type GameDeletedEvent struct {
	GameID     uuid.UUID `json:"game_id"`
	LibraryID  uuid.UUID `json:"library_id"`
	Path       string    `json:"path"`
	occurredAt time.Time
}

func NewGameDeletedEvent(game *Game) *GameDeletedEvent {
	e := &GameDeletedEvent{GameID: game.ID, Path: game.Path, occurredAt: time.Now()}
	if game.LibraryID != nil {
		e.LibraryID = *game.LibraryID
	}
	return e
}

func (e *GameDeletedEvent) EventType() string     { return EventGameDeleted }
func (e *GameDeletedEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *GameDeletedEvent) AggregateID() string   { return e.GameID.String() }

// ScanProgressEvent carries a snapshot of a running or finished scan
type ScanProgressEvent struct {
	Progress   *LibraryScanProgress `json:"progress"`
	occurredAt time.Time
}

func NewScanProgressEvent(progress *LibraryScanProgress) *ScanProgressEvent {
	return &ScanProgressEvent{Progress: progress.Snapshot(), occurredAt: time.Now()}
}

func (e *ScanProgressEvent) EventType() string     { return EventScanProgress }
func (e *ScanProgressEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *ScanProgressEvent) AggregateID() string   { return e.Progress.LibraryID.String() }

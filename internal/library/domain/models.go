package domain

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Library is a named set of directories scanned for games.
type Library struct {
	ID           uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string             `json:"name" gorm:"not null;uniqueIndex"`
	Description  string             `json:"description,omitempty" gorm:"type:text"`
	Platforms    []string           `json:"platforms,omitempty" gorm:"serializer:json"`
	Directories  []DirectoryMapping `json:"directories" gorm:"foreignKey:LibraryID;constraint:OnDelete:CASCADE"`
	Games        []Game             `json:"-" gorm:"foreignKey:LibraryID;constraint:OnDelete:SET NULL"`
	IgnoredPaths []IgnoredPath      `json:"-" gorm:"foreignKey:LibraryID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func (l *Library) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// InternalPaths returns the cleaned internal path of every directory mapping.
func (l *Library) InternalPaths() []string {
	paths := make([]string, 0, len(l.Directories))
	for _, d := range l.Directories {
		paths = append(paths, filepath.Clean(d.InternalPath))
	}
	return paths
}

// DirectoryMapping maps a path inside the server to the path shown to users.
type DirectoryMapping struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LibraryID    uuid.UUID `json:"library_id" gorm:"type:uuid;not null;index"`
	InternalPath string    `json:"internal_path" gorm:"not null;uniqueIndex"`
	ExternalPath string    `json:"external_path,omitempty"`
	Position     int       `json:"position"`
}

func (d *DirectoryMapping) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// IgnoredPathSource tells who decided a path should not become a game.
type IgnoredPathSource string

const (
	IgnoredByPlugin IgnoredPathSource = "plugin"
	IgnoredByUser   IgnoredPathSource = "user"
)

// IgnoredPath is a filesystem entry that is deliberately not in the catalog.
// Plugin-sourced entries list the providers that were consulted and are
// retried on every scan; user-sourced entries are permanent until removed.
type IgnoredPath struct {
	ID        uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	LibraryID uuid.UUID         `json:"library_id" gorm:"type:uuid;not null;index"`
	Path      string            `json:"path" gorm:"not null;uniqueIndex"`
	Source    IgnoredPathSource `json:"source" gorm:"type:varchar(16);not null"`
	PluginIDs []string          `json:"plugin_ids,omitempty" gorm:"serializer:json"`
	UserID    string            `json:"user_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (p *IgnoredPath) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// NewPluginIgnoredPath records that no provider in pluginIDs could match path.
func NewPluginIgnoredPath(libraryID uuid.UUID, path string, pluginIDs []string) *IgnoredPath {
	return &IgnoredPath{
		LibraryID: libraryID,
		Path:      path,
		Source:    IgnoredByPlugin,
		PluginIDs: pluginIDs,
	}
}

// NewUserIgnoredPath records that userID excluded path from the catalog.
func NewUserIgnoredPath(libraryID uuid.UUID, path, userID string) *IgnoredPath {
	return &IgnoredPath{
		LibraryID: libraryID,
		Path:      path,
		Source:    IgnoredByUser,
		UserID:    userID,
	}
}

// Field names tracked in Game.FieldMetadata.
const (
	FieldTitle        = "title"
	FieldSummary      = "summary"
	FieldRelease      = "release"
	FieldUserRating   = "userRating"
	FieldCriticRating = "criticRating"
	FieldCoverImage   = "coverImage"
	FieldHeaderImage  = "headerImage"
	FieldImages       = "images"
	FieldDevelopers   = "developers"
	FieldPublishers   = "publishers"
	FieldGenres       = "genres"
	FieldThemes       = "themes"
	FieldKeywords     = "keywords"
	FieldFeatures     = "features"
	FieldPerspectives = "perspectives"
	FieldVideoURLs    = "videoUrls"
)

// FieldSourceType distinguishes provider-set from user-set values.
type FieldSourceType string

const (
	FieldSourcePlugin FieldSourceType = "plugin"
	FieldSourceUser   FieldSourceType = "user"
)

// FieldSource identifies who set a game field.
type FieldSource struct {
	Type     FieldSourceType `json:"type"`
	PluginID string          `json:"plugin_id,omitempty"`
	UserID   string          `json:"user_id,omitempty"`
}

func PluginSource(pluginID string) FieldSource {
	return FieldSource{Type: FieldSourcePlugin, PluginID: pluginID}
}

func UserSource(userID string) FieldSource {
	return FieldSource{Type: FieldSourceUser, UserID: userID}
}

// GameFieldMetadata records the provenance of a single game field.
type GameFieldMetadata struct {
	Source    FieldSource `json:"source"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Game is a catalog entry backed by one filesystem path.
type Game struct {
	ID             uuid.UUID                    `json:"id" gorm:"type:uuid;primaryKey"`
	LibraryID      *uuid.UUID                   `json:"library_id,omitempty" gorm:"type:uuid;index"`
	Title          string                       `json:"title" gorm:"not null;index"`
	Summary        string                       `json:"summary,omitempty" gorm:"type:text"`
	Release        *time.Time                   `json:"release,omitempty"`
	UserRating     *int                         `json:"user_rating,omitempty"`
	CriticRating   *int                         `json:"critic_rating,omitempty"`
	Developers     []string                     `json:"developers,omitempty" gorm:"serializer:json"`
	Publishers     []string                     `json:"publishers,omitempty" gorm:"serializer:json"`
	Genres         []string                     `json:"genres,omitempty" gorm:"serializer:json"`
	Themes         []string                     `json:"themes,omitempty" gorm:"serializer:json"`
	Keywords       []string                     `json:"keywords,omitempty" gorm:"serializer:json"`
	Features       []string                     `json:"features,omitempty" gorm:"serializer:json"`
	Perspectives   []string                     `json:"perspectives,omitempty" gorm:"serializer:json"`
	VideoURLs      []string                     `json:"video_urls,omitempty" gorm:"serializer:json"`
	CoverImageID   *uuid.UUID                   `json:"cover_image_id,omitempty" gorm:"type:uuid;index"`
	CoverImage     *Image                       `json:"cover_image,omitempty" gorm:"foreignKey:CoverImageID"`
	HeaderImageID  *uuid.UUID                   `json:"header_image_id,omitempty" gorm:"type:uuid;index"`
	HeaderImage    *Image                       `json:"header_image,omitempty" gorm:"foreignKey:HeaderImageID"`
	Images         []Image                      `json:"images,omitempty" gorm:"many2many:game_images"`
	Path           string                       `json:"path" gorm:"not null;uniqueIndex"`
	FileSize       int64                        `json:"file_size"`
	DownloadCount  int                          `json:"download_count"`
	MatchConfirmed bool                         `json:"match_confirmed"`
	ProviderIDs    map[string]string            `json:"provider_ids,omitempty" gorm:"serializer:json"`
	FieldMetadata  map[string]GameFieldMetadata `json:"field_metadata,omitempty" gorm:"serializer:json"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// IsUserSourced reports whether field was last set by a user.
func (g *Game) IsUserSourced(field string) bool {
	meta, ok := g.FieldMetadata[field]
	return ok && meta.Source.Type == FieldSourceUser
}

// ImageRefs returns every image referenced by the game, cover first, then
// header, then the gallery.
func (g *Game) ImageRefs() []*Image {
	refs := make([]*Image, 0, len(g.Images)+2)
	if g.CoverImage != nil {
		refs = append(refs, g.CoverImage)
	}
	if g.HeaderImage != nil {
		refs = append(refs, g.HeaderImage)
	}
	for i := range g.Images {
		refs = append(refs, &g.Images[i])
	}
	return refs
}

// ImageIDs returns the ids of every persisted image the game references.
func (g *Game) ImageIDs() []uuid.UUID {
	var ids []uuid.UUID
	if g.CoverImageID != nil {
		ids = append(ids, *g.CoverImageID)
	}
	if g.HeaderImageID != nil {
		ids = append(ids, *g.HeaderImageID)
	}
	for _, img := range g.Images {
		if img.ID != uuid.Nil {
			ids = append(ids, img.ID)
		}
	}
	return ids
}

// IdentityKeys returns "provider\x00originalID" keys used to recognize the
// same game under a different path.
func (g *Game) IdentityKeys() []string {
	keys := make([]string, 0, len(g.ProviderIDs))
	for provider, id := range g.ProviderIDs {
		if id == "" {
			continue
		}
		keys = append(keys, IdentityKey(provider, id))
	}
	return keys
}

// IdentityKey joins a provider name and the provider's id for a game.
func IdentityKey(provider, originalID string) string {
	return provider + "\x00" + originalID
}

// ImageType is the role an image plays for a game.
type ImageType string

const (
	ImageTypeCover      ImageType = "cover"
	ImageTypeHeader     ImageType = "header"
	ImageTypeScreenshot ImageType = "screenshot"
)

// Image is downloaded content deduplicated by its source URL.
type Image struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OriginalURL string    `json:"original_url" gorm:"not null;uniqueIndex"`
	Type        ImageType `json:"type" gorm:"type:varchar(16)"`
	ContentID   string    `json:"content_id,omitempty"`
	MimeType    string    `json:"mime_type,omitempty"`
	FileSize    int64     `json:"file_size"`
	CreatedAt   time.Time `json:"created_at"`
}

func (i *Image) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/questhold/questhold/internal/library/domain"
)

// CreateTestLibrary creates an unpersisted library mapping dirs in order.
func CreateTestLibrary(name string, dirs ...string) *domain.Library {
	library := &domain.Library{
		ID:   uuid.New(),
		Name: name,
	}
	for i, dir := range dirs {
		library.Directories = append(library.Directories, domain.DirectoryMapping{
			ID:           uuid.New(),
			LibraryID:    library.ID,
			InternalPath: dir,
			Position:     i,
		})
	}
	return library
}

// CreateTestGame creates an unpersisted game at path.
func CreateTestGame(libraryID uuid.UUID, title, path string) *domain.Game {
	id := libraryID
	return &domain.Game{
		ID:            uuid.New(),
		LibraryID:     &id,
		Title:         title,
		Path:          path,
		ProviderIDs:   map[string]string{},
		FieldMetadata: map[string]domain.GameFieldMetadata{},
	}
}

// CreateTestImage creates an unpersisted image for url.
func CreateTestImage(url string, imageType domain.ImageType) *domain.Image {
	return &domain.Image{
		ID:          uuid.New(),
		OriginalURL: url,
		Type:        imageType,
		ContentID:   uuid.NewString(),
		MimeType:    "image/png",
		FileSize:    4,
	}
}

// WriteGameDir creates dir/name containing a file of size bytes and returns
// the directory path.
func WriteGameDir(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "game.bin"), make([]byte, size), 0o644))
	return path
}

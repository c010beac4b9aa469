package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/questhold/questhold/internal/library/domain"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name           string
		walked         []string
		games          []string
		ignored        []string
		wantNew        []string
		wantRemoved    []string
		wantRemovedIgn []string
	}{
		{
			name:           "empty catalog",
			walked:         []string{"/g/b", "/g/a"},
			wantNew:        []string{"/g/a", "/g/b"},
			wantRemoved:    []string{},
			wantRemovedIgn: []string{},
		},
		{
			name:           "added and removed",
			walked:         []string{"/g/B", "/g/C", "/g/D"},
			games:          []string{"/g/A", "/g/B", "/g/C"},
			wantNew:        []string{"/g/D"},
			wantRemoved:    []string{"/g/A"},
			wantRemovedIgn: []string{},
		},
		{
			name:           "ignored paths are not new",
			walked:         []string{"/g/a", "/g/junk"},
			games:          []string{"/g/a"},
			ignored:        []string{"/g/junk", "/g/gone"},
			wantNew:        []string{},
			wantRemoved:    []string{},
			wantRemovedIgn: []string{"/g/gone"},
		},
		{
			name:           "paths are cleaned",
			walked:         []string{"/g/a/"},
			games:          []string{"/g/./a"},
			wantNew:        []string{},
			wantRemoved:    []string{},
			wantRemovedIgn: []string{},
		},
		{
			name:           "nothing on disk",
			games:          []string{"/g/a"},
			ignored:        []string{"/g/b"},
			wantNew:        []string{},
			wantRemoved:    []string{"/g/a"},
			wantRemovedIgn: []string{"/g/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := domain.Diff(tt.walked, tt.games, tt.ignored)

			assert.Equal(t, tt.wantNew, result.NewPaths)
			assert.Equal(t, tt.wantRemoved, result.RemovedGamePaths)
			assert.Equal(t, tt.wantRemovedIgn, result.RemovedIgnoredPaths)
		})
	}
}

package domain

import (
	"path/filepath"
	"sort"
)

// Diff compares the walked paths with the paths the catalog already knows.
//
//	new            = walked - (games ∪ ignored)
//	removedGames   = games - walked
//	removedIgnored = ignored - walked
//
// Paths are compared after filepath.Clean; every output slice is sorted.
func Diff(walked, knownGamePaths, knownIgnoredPaths []string) *FilesystemScanResult {
	onDisk := toSet(walked)
	games := toSet(knownGamePaths)
	ignored := toSet(knownIgnoredPaths)

	result := &FilesystemScanResult{
		NewPaths:            []string{},
		RemovedGamePaths:    []string{},
		RemovedIgnoredPaths: []string{},
	}

	for p := range onDisk {
		_, isGame := games[p]
		_, isIgnored := ignored[p]
		if !isGame && !isIgnored {
			result.NewPaths = append(result.NewPaths, p)
		}
	}
	for p := range games {
		if _, ok := onDisk[p]; !ok {
			result.RemovedGamePaths = append(result.RemovedGamePaths, p)
		}
	}
	for p := range ignored {
		if _, ok := onDisk[p]; !ok {
			result.RemovedIgnoredPaths = append(result.RemovedIgnoredPaths, p)
		}
	}

	sort.Strings(result.NewPaths)
	sort.Strings(result.RemovedGamePaths)
	sort.Strings(result.RemovedIgnoredPaths)
	return result
}

func toSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[filepath.Clean(p)] = struct{}{}
	}
	return set
}

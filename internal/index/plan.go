// internal/index/plan.go
package index

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"answer-gateway/internal/completion"
)

// NormalizeFilename reduces a path to a comparable base name: lower case,
// decomposed, with combining marks removed. "Guía Rápida.PDF" and
// "guia rapida.pdf" compare equal.
func NormalizeFilename(name string) string {
	base := strings.ToLower(filepath.Base(name))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, base)
	if err != nil {
		return base
	}
	return out
}

type RemoteFile struct {
	ID       string
	Filename string
}

// RemoteIndex keys remote files by normalized name. The first file seen for
// a name wins.
func RemoteIndex(files []completion.IndexFile) map[string]RemoteFile {
	out := make(map[string]RemoteFile, len(files))
	for _, f := range files {
		key := NormalizeFilename(f.Filename)
		if _, ok := out[key]; !ok {
			out[key] = RemoteFile{ID: f.ID, Filename: f.Filename}
		}
	}
	return out
}

// SyncPlan lists what a sync will do. Upload and Skip hold local names.
type SyncPlan struct {
	Upload []string
	Skip   []string
	Delete []RemoteFile
}

// Plan compares local names against the remote index. With force every
// local file is uploaded again; with deleteRemoved remote files missing
// locally are scheduled for removal.
func Plan(local []string, remote map[string]RemoteFile, force, deleteRemoved bool) SyncPlan {
	var plan SyncPlan
	localSet := make(map[string]bool, len(local))

	for _, name := range local {
		key := NormalizeFilename(name)
		localSet[key] = true
		if _, exists := remote[key]; exists && !force {
			plan.Skip = append(plan.Skip, name)
			continue
		}
		plan.Upload = append(plan.Upload, name)
	}

	if deleteRemoved {
		for key, f := range remote {
			if !localSet[key] {
				plan.Delete = append(plan.Delete, f)
			}
		}
		sort.Slice(plan.Delete, func(i, j int) bool {
			return plan.Delete[i].Filename < plan.Delete[j].Filename
		})
	}

	return plan
}

// Package ignore composes the three ignore-file sources
// into a single precedence rule:
//
//	indexed(p) <=> !matches(.aiignore, p) && (matches(include, p) || !matches(.gitignore, p))
//
// .aiignore always wins (highest-priority exclude). .git-ai/include.txt
// overrides .gitignore (but never .aiignore). Absent any of the three
// files, that source simply never matches.
package ignore

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/giai-dev/giai/internal/gitignore"
)

// Pipeline holds the three compiled matchers for one repository root.
type Pipeline struct {
	aiignore *gitignore.Matcher
	git      *gitignore.Matcher
	include  *gitignore.Matcher
}

// Load reads .aiignore, .gitignore, and .git-ai/include.txt from root,
// tolerating any or all of them being absent. Pattern syntax for all
// three is gitignore-style: "#" comments, a trailing "/" denotes a
// directory, a leading "/" anchors the pattern to root.
func Load(root string) (*Pipeline, error) {
	p := &Pipeline{
		aiignore: gitignore.New(),
		git:      gitignore.New(),
		include:  gitignore.New(),
	}

	for path, m := range map[string]*gitignore.Matcher{
		filepath.Join(root, ".aiignore"):              p.aiignore,
		filepath.Join(root, ".gitignore"):              p.git,
		filepath.Join(root, ".git-ai", "include.txt"): p.include,
	} {
		// base="" because every relPath passed to Excluded is already
		// root-relative; only nested .gitignore files (not modeled
		// here — the indexer only reads the three root-level
		// sources) would need a non-empty base.
		// AddFromFile wraps os.Open's *PathError with fmt.Errorf, so
		// os.IsNotExist (which only unwraps PathError/LinkError/
		// SyscallError directly) would miss it; errors.Is follows the
		// %w chain correctly.
		if err := m.AddFromFile(path, ""); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return p, nil
}

// Excluded reports whether relPath (POSIX-form, relative to root)
// should be skipped by the indexer, per the precedence invariant: an
// .aiignore match always excludes; an include.txt match always
// un-excludes (short of .aiignore); otherwise a .gitignore match
// excludes.
func (p *Pipeline) Excluded(relPath string, isDir bool) bool {
	if p.aiignore.Match(relPath, isDir) {
		return true
	}
	if p.include.Match(relPath, isDir) {
		return false
	}
	return p.git.Match(relPath, isDir)
}

// Package vcs answers which files changed relative to a git revision,
// backing the --changed-only and --since check modes.
package vcs

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repo wraps an opened git repository and its work tree root.
type Repo struct {
	repo *git.Repository
	root string
}

// Open opens the repository containing path, searching parent directories
// for the .git directory the way git itself does.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", path, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open work tree: %w", err)
	}

	return &Repo{repo: repo, root: wt.Filesystem.Root()}, nil
}

// Root returns the absolute path of the repository work tree.
func (r *Repo) Root() string {
	return r.root
}

// ChangedFiles returns absolute paths of files that differ from ref:
// committed changes between ref and HEAD plus uncommitted and untracked
// work tree files. With an empty ref only the work tree is consulted.
// Deleted files are omitted since there is nothing left to analyze.
func (r *Repo) ChangedFiles(ref string) ([]string, error) {
	seen := make(map[string]struct{})

	if ref != "" {
		base, err := r.treeAt(ref)
		if err != nil {
			return nil, err
		}
		head, err := r.treeAt("HEAD")
		if err != nil {
			return nil, err
		}

		changes, err := base.Diff(head)
		if err != nil {
			return nil, fmt.Errorf("diff %s..HEAD: %w", ref, err)
		}
		for _, ch := range changes {
			if ch.To.Name != "" {
				seen[ch.To.Name] = struct{}{}
			}
		}
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open work tree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("work tree status: %w", err)
	}
	for path, st := range status {
		if st.Worktree == git.Deleted || st.Staging == git.Deleted {
			continue
		}
		if st.Worktree != git.Unmodified || st.Staging != git.Unmodified {
			seen[path] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, filepath.Join(r.root, filepath.FromSlash(path)))
	}
	sort.Strings(files)
	return files, nil
}

// treeAt resolves a revision (hash, branch, tag, HEAD~2, ...) to its tree.
func (r *Repo) treeAt(rev string) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve revision %q: %w", rev, err)
	}

	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", hash, err)
	}

	return commit.Tree()
}

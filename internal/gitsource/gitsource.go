// Package gitsource reads task modules as they exist at a git revision,
// straight from the object store and without touching the worktree.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog/log"
)

// DefaultRevision is used when no revision is given
const DefaultRevision = "HEAD"

// Revision reads files from a single commit of a repository.
// It implements phases.Source.
type Revision struct {
	repo   *git.Repository
	root   string
	rev    string
	commit *object.Commit
}

// Open opens the repository containing dir and resolves rev (branch, tag,
// short or full hash, or any expression go-git understands).
func Open(dir, rev string) (*Revision, error) {
	if rev == "" {
		rev = DefaultRevision
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repo: %w", err)
	}

	root := dir
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %s: %w", rev, err)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}

	log.Debug().
		Str("repo", root).
		Str("rev", rev).
		Str("commit", commit.Hash.String()[:8]).
		Msg("resolved revision")

	return &Revision{repo: repo, root: root, rev: rev, commit: commit}, nil
}

// Commit returns the full hash of the resolved commit
func (r *Revision) Commit() string {
	return r.commit.Hash.String()
}

// ReadSource returns the content of path at the resolved commit. Relative
// paths are taken from the repository root; absolute paths must lie inside
// the worktree. A path absent from the commit yields an error matching
// fs.ErrNotExist.
func (r *Revision) ReadSource(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := r.relative(path)
	if err != nil {
		return nil, err
	}

	file, err := r.commit.File(rel)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%s not present at %s: %w", rel, r.rev, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read %s at %s: %w", rel, r.rev, err)
	}

	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", rel, err)
	}

	return []byte(contents), nil
}

func (r *Revision) relative(path string) (string, error) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(r.root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%s is outside repository %s: %w", path, r.root, fs.ErrNotExist)
		}
		path = rel
	}
	return filepath.ToSlash(filepath.Clean(path)), nil
}

// ReadFile is a one-shot helper around Open and ReadSource
func ReadFile(ctx context.Context, dir, rev, path string) ([]byte, error) {
	r, err := Open(dir, rev)
	if err != nil {
		return nil, err
	}
	return r.ReadSource(ctx, path)
}

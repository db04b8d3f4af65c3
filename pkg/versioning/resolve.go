package versioning

import (
	"context"
	"errors"

	"github.com/modelsilo/silo/pkg/models"
)

// RevisionKind says what a revision name turned out to denote.
type RevisionKind string

const (
	RevisionBranch RevisionKind = "branch"
	RevisionTag    RevisionKind = "tag"
	RevisionCommit RevisionKind = "commit"
)

// ResolveRevision maps a revision name onto a commit id.
//
// Resolution order: branch name, tag name, then a 7..64 character hex
// prefix of a commit id. Anything else fails with ErrRevisionNotFound.
func ResolveRevision(ctx context.Context, e Engine, repoID, revision string) (string, RevisionKind, error) {
	if id, err := e.ResolveBranch(ctx, repoID, revision); err == nil {
		return id, RevisionBranch, nil
	} else if !errors.Is(err, models.ErrRevisionNotFound) {
		return "", "", err
	}

	if id, err := e.ResolveTag(ctx, repoID, revision); err == nil {
		return id, RevisionTag, nil
	} else if !errors.Is(err, models.ErrRevisionNotFound) {
		return "", "", err
	}

	id, err := e.ResolveCommitPrefix(ctx, repoID, revision)
	if err != nil {
		return "", "", err
	}
	return id, RevisionCommit, nil
}

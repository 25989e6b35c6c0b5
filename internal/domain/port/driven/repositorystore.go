package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
)

// ErrRepoNotFound indicates the requested repository does not exist.
var ErrRepoNotFound = errors.New("repository not found")

// RepositoryStore defines the driven port for repository and star snapshot
// persistence.
//
// UpsertRepository is safe to repeat: it merges on FullName and never replaces
// a known GitHubID, Description, PrimaryLanguage or UpdatedAt with null.
// AppendSnapshot is not merge-safe; every call adds a row.
// RecordObservation performs both writes in one transaction and returns the
// repository id.
type RepositoryStore interface {
	UpsertRepository(ctx context.Context, repo model.Repository) (int64, error)
	AppendSnapshot(ctx context.Context, snapshot model.StarSnapshot) error
	RecordObservation(ctx context.Context, repo model.Repository, stargazers int, day time.Time) (int64, error)
	// GetByFullName returns ErrRepoNotFound if no row matches.
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)
}

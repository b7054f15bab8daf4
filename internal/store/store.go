package store

import "context"

// ChainStore defines the persistence layer contract for attack chains.
// All implementations must be safe for concurrent use.
type ChainStore interface {
	// Chains
	SaveChain(ctx context.Context, rec *ChainRecord) error
	GetChain(ctx context.Context, id string) (*ChainRecord, error)
	ListChains(ctx context.Context, filter ChainFilter) ([]*ChainRecord, error)
	DeleteChain(ctx context.Context, id string) error

	// Revisions (append-only)
	ListRevisions(ctx context.Context, chainID string) ([]*Revision, error)
	GetRevision(ctx context.Context, chainID string, sequence int64) (*Revision, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}

package driven

import "context"

// SchemaMigrator brings the store schema up to date. It must be idempotent.
type SchemaMigrator interface {
	EnsureSchema(ctx context.Context) error
}

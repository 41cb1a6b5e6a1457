package session

import "context"

// Store holds one mutable document per session code. Sessions are independent
// units of concurrency: no operation spans more than one document.
type Store interface {
	// Create writes the initial document. Fails with ErrAlreadyExists when
	// the code collides with a live session.
	Create(ctx context.Context, code string, doc *Document) error

	// Get returns a snapshot of the current document, or ErrNotFound.
	Get(ctx context.Context, code string) (*Document, error)

	// Merge applies a field-scoped patch atomically against the latest
	// committed document and returns the resulting snapshot. Precondition
	// errors come from the patch itself; transient write conflicts are
	// retried internally and surface as ErrStoreUnavailable only after the
	// retry budget is spent. Every committed merge is delivered to all
	// active subscribers of the session, in commit order.
	Merge(ctx context.Context, code string, patch Patch) (*Document, error)

	// Subscribe streams document snapshots: the current document immediately,
	// then one per committed merge. The returned cancel func is idempotent;
	// cancelling simply stops delivery and closes the channel.
	Subscribe(ctx context.Context, code string) (<-chan *Document, func(), error)
}

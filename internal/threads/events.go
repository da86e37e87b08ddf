package threads

import "context"

// Sink receives thread events after the primary write has committed.
// Implementations must treat delivery as best-effort: a returned error is
// logged by the service and never propagated to the user action that
// triggered it.
type Sink interface {
	// CommentCreated fires once per newly persisted top-level comment.
	CommentCreated(ctx context.Context, comment Comment) error
	// ReplyAdded fires once per appended reply, carrying the parent
	// aggregate as it was after the write. Mention fan-out is derived from
	// the reply's mention list by the receiver.
	ReplyAdded(ctx context.Context, comment Comment, reply Reply) error
}

// Package logstore provides the append-only, deduplicated message log.
// The canonical backend is a JSONL file; the db package offers a Postgres
// implementation of the same interface for deployments that need one.
package logstore

import (
	"context"
	"iter"

	"github.com/onnwee/chatscope/message"
)

// Log is the append-only message log. Append is idempotent on message_id:
// it reports false (and writes nothing) when the id is already present.
// All returns a restartable sequence over every persisted record in
// insertion order; each call starts a fresh read.
type Log interface {
	Append(ctx context.Context, msg message.Message) (bool, error)
	All() iter.Seq[message.Message]
}

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"github.com/onnwee/chatscope/message"
)

// MessageLog stores chat messages in Postgres. It satisfies the same
// contract as the JSONL log: appends are deduplicated on message_id and
// reads yield messages in insertion order.
type MessageLog struct {
	DB *sql.DB
}

func NewMessageLog(db *sql.DB) *MessageLog {
	return &MessageLog{DB: db}
}

// Append inserts the message unless one with the same message_id already
// exists. Returns true when a new row was written.
func (l *MessageLog) Append(ctx context.Context, msg message.Message) (bool, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("marshal message %s: %w", msg.MessageID, err)
	}
	var ts sql.NullTime
	if t, ok := msg.ParseTS(); ok {
		ts = sql.NullTime{Time: t, Valid: true}
	}
	res, err := l.DB.ExecContext(ctx, `
		INSERT INTO messages (message_id, channel, user_name, ts, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (message_id) DO NOTHING`,
		msg.MessageID, msg.Channel, msg.UserName, ts, payload)
	if err != nil {
		return false, fmt.Errorf("insert message %s: %w", msg.MessageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// All returns a restartable sequence over every stored message in
// insertion order. Rows whose payload no longer unmarshals are skipped.
func (l *MessageLog) All() iter.Seq[message.Message] {
	return func(yield func(message.Message) bool) {
		rows, err := l.DB.Query(`SELECT payload FROM messages ORDER BY id`)
		if err != nil {
			slog.Warn("message log scan failed", slog.Any("err", err), slog.String("component", "db_logstore"))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var payload []byte
			if err := rows.Scan(&payload); err != nil {
				continue
			}
			var msg message.Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			if !yield(msg) {
				return
			}
		}
	}
}

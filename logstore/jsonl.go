package logstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/onnwee/chatscope/message"
)

// JSONLLog stores one JSON-encoded message per line. The duplicate check is
// a full scan per append, which is fine at human chat cadence; a backend
// with an index (see db.MessageLog) can be swapped in behind the Log
// interface without touching callers.
type JSONLLog struct {
	Path string
}

// NewJSONLLog returns a log backed by the file at path. The file and its
// parent directories are created lazily on first append.
func NewJSONLLog(path string) *JSONLLog {
	return &JSONLLog{Path: path}
}

// Append writes msg as one line unless a record with the same message_id
// already exists. Malformed existing lines are skipped during the scan,
// never fatal; storage errors propagate.
func (l *JSONLLog) Append(ctx context.Context, msg message.Message) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dup, err := l.contains(msg.MessageID)
	if err != nil {
		return false, err
	}
	if dup {
		return false, nil
	}

	if dir := filepath.Dir(l.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	b, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("encode message: %w", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return false, fmt.Errorf("append message: %w", err)
	}
	return true, nil
}

func (l *JSONLLog) contains(id string) (bool, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open log for dedup scan: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec message.Message
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue // corrupt line, tolerated
		}
		if rec.MessageID == id {
			return true, nil
		}
	}
	return false, sc.Err()
}

// All yields every well-formed record in insertion order. A missing file
// yields nothing; malformed lines are silently skipped.
func (l *JSONLLog) All() iter.Seq[message.Message] {
	return func(yield func(message.Message) bool) {
		f, err := os.Open(l.Path)
		if err != nil {
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			var rec message.Message
			if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

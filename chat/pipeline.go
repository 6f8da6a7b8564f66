package chat

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/chatscope/logstore"
	"github.com/onnwee/chatscope/message"
	"github.com/onnwee/chatscope/rollup"
	"github.com/onnwee/chatscope/signals"
	"github.com/onnwee/chatscope/telemetry"
)

// Pipeline runs the append → extract → apply sequence for one message.
// Both adapters share a single instance; it holds no per-message state.
type Pipeline struct {
	Log    logstore.Log
	Engine *rollup.Engine

	ingested   atomic.Int64
	duplicates atomic.Int64
	signals    atomic.Int64
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	Ingested   int64 `json:"ingested"`
	Duplicates int64 `json:"duplicates"`
	Signals    int64 `json:"signals"`
}

// Snapshot returns the current counter values.
func (p *Pipeline) Snapshot() Stats {
	return Stats{
		Ingested:   p.ingested.Load(),
		Duplicates: p.duplicates.Load(),
		Signals:    p.signals.Load(),
	}
}

// NewPipeline wires a pipeline over the given log and profile store.
func NewPipeline(log logstore.Log, store rollup.ProfileStore) *Pipeline {
	return &Pipeline{Log: log, Engine: rollup.NewEngine(store)}
}

// Process ingests one message. A duplicate message_id skips the log write
// but the profiles still merge, matching at-most-once log semantics with
// per-message rollup. Storage errors propagate to the caller.
func (p *Pipeline) Process(ctx context.Context, msg message.Message) error {
	ctx, span := telemetry.StartSpan(ctx, "chatscope/chat", "ingest.message",
		attribute.String("channel", msg.Channel),
		attribute.String("source", msg.Source),
	)
	defer span.End()

	var err error
	telemetry.TimeFunc(telemetry.IngestDuration, func() {
		appended, aerr := p.Log.Append(ctx, msg)
		if aerr != nil {
			err = aerr
			return
		}
		if appended {
			p.ingested.Add(1)
			telemetry.Inc(telemetry.MessagesIngested)
		} else {
			p.duplicates.Add(1)
			telemetry.Inc(telemetry.DuplicatesSkipped)
		}

		sigs := signals.Extract(msg)
		if !sigs.Empty() {
			p.signals.Add(1)
			telemetry.Inc(telemetry.SignalsDetected)
		}

		if aerr := p.Engine.Apply(ctx, msg, sigs); aerr != nil {
			err = aerr
			return
		}
		telemetry.Inc(telemetry.ProfileWrites)
	})
	telemetry.RecordError(span, err)
	return err
}

package rollup

import (
	"context"
	"errors"
	"strings"

	"github.com/onnwee/chatscope/message"
	"github.com/onnwee/chatscope/signals"
)

// Engine applies one message (plus its extracted signals) to the user and
// channel profiles it touches. The two merges are independent: an empty
// user name skips the user merge, an empty channel skips the channel merge.
type Engine struct {
	Store ProfileStore
}

// NewEngine returns an engine over store.
func NewEngine(store ProfileStore) *Engine {
	return &Engine{Store: store}
}

// Apply runs both merges. Storage errors propagate; both merges are still
// attempted so one failing key does not starve the other.
func (e *Engine) Apply(ctx context.Context, msg message.Message, sigs signals.Set) error {
	return errors.Join(
		e.applyUser(ctx, msg, sigs),
		e.applyChannel(ctx, msg, sigs),
	)
}

func (e *Engine) applyUser(ctx context.Context, msg message.Message, sigs signals.Set) error {
	key := strings.ToLower(msg.UserName)
	if key == "" {
		return nil
	}
	p, err := e.Store.LoadUser(ctx, key)
	if err != nil {
		return err
	}

	channel := strings.ToLower(msg.Channel)
	if channel != "" {
		p.ChannelsParticipated = appendUnique(p.ChannelsParticipated, channel)
	}
	p.MessageCount++
	p.TopKeywords = mergeTopKeywords(p.TopKeywords, msg.Text)
	if ts, ok := msg.ParseTS(); ok {
		p.LastSeen = advanceLastSeen(p.LastSeen, ts)
	}

	if len(sigs.RelationshipMentions) > 0 {
		p.Facts[FactAskedAboutRelationship] = true
		targets := factStrings(p.Facts, FactSuspectedTargets)
		for _, ev := range sigs.RelationshipMentions {
			if ev.Target != "" {
				targets = appendUnique(targets, ev.Target)
			}
		}
		p.Facts[FactSuspectedTargets] = targets

		evidence := factSlice(p.Facts, FactEvidence)
		evidence = append(evidence, map[string]any{
			"ts":      msg.TS,
			"channel": channel,
			"snippet": sigs.RelationshipMentions[0].Snippet,
		})
		p.Facts[FactEvidence] = evidence
	}

	return e.Store.SaveUser(ctx, p)
}

func (e *Engine) applyChannel(ctx context.Context, msg message.Message, sigs signals.Set) error {
	key := strings.ToLower(msg.Channel)
	if key == "" {
		return nil
	}
	p, err := e.Store.LoadChannel(ctx, key)
	if err != nil {
		return err
	}

	p.MessageCount++
	if user := strings.ToLower(msg.UserName); user != "" {
		p.TopUsers = appendUnique(p.TopUsers, user)
	}
	p.TopKeywords = mergeTopKeywords(p.TopKeywords, msg.Text)
	if ts, ok := msg.ParseTS(); ok {
		p.LastSeen = advanceLastSeen(p.LastSeen, ts)
	}

	if len(sigs.RelationshipMentions) > 0 {
		entries := p.StreamerSignals[signals.KindRelationshipMentions]
		for _, ev := range sigs.RelationshipMentions {
			entries = mergeSignalEntry(entries, ev)
		}
		p.StreamerSignals[signals.KindRelationshipMentions] = entries
	}

	// Approximation: the top-users list is never pruned, so its length
	// stands in for the distinct-user count.
	p.UniqueUsers = len(p.TopUsers)

	return e.Store.SaveChannel(ctx, p)
}

// mergeSignalEntry folds one piece of evidence into the aggregate list:
// a matching target bumps its counter and collects the snippet if new;
// otherwise a new entry starts at count 1.
func mergeSignalEntry(entries []SignalAggregate, ev signals.RelationshipMention) []SignalAggregate {
	for i := range entries {
		if entries[i].Target == ev.Target {
			entries[i].EvidenceCount++
			if ev.Snippet != "" {
				entries[i].Examples = appendUnique(entries[i].Examples, ev.Snippet)
			}
			return entries
		}
	}
	agg := SignalAggregate{Target: ev.Target, EvidenceCount: 1, Examples: []string{}}
	if ev.Snippet != "" {
		agg.Examples = append(agg.Examples, ev.Snippet)
	}
	return append(entries, agg)
}

// factStrings reads a []string fact that may have round-tripped through
// JSON as []any.
func factStrings(facts map[string]any, key string) []string {
	switch v := facts[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func factSlice(facts map[string]any, key string) []any {
	if v, ok := facts[key].([]any); ok {
		return v
	}
	return []any{}
}

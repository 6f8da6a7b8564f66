// Package signals extracts lightweight textual signals from chat messages.
// Extraction is pure and deterministic; each detector is its own typed
// variant on Set, so the rollup engine dispatches on fields rather than on
// untyped maps. Adding a detector means adding a field and a kind constant.
package signals

import (
	"regexp"
	"strings"

	"github.com/onnwee/chatscope/message"
)

// Signal kind keys as they appear in persisted profiles.
const KindRelationshipMentions = "relationship_mentions"

// RelationshipMention is one piece of evidence that a message speculates
// about who a streamer is dating.
type RelationshipMention struct {
	Target  string `json:"target"`
	Snippet string `json:"snippet"`
	Pattern string `json:"pattern"`
}

// Set carries every signal detected in a single message. It is derived
// fresh per message and consumed immediately; never persisted on its own.
type Set struct {
	RelationshipMentions []RelationshipMention
}

// Empty reports whether no detector fired.
func (s Set) Empty() bool {
	return len(s.RelationshipMentions) == 0
}

// Ordered pattern list; evidence is collected across all of them in order.
// The target is positional: second capture group when the pattern has one,
// first otherwise.
var relationshipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(still\s+)?dating\s+(\w+)`),
	regexp.MustCompile(`(is|are)\s+(he|she|they|streamer)\s+dating\s+(\w+)`),
	regexp.MustCompile(`(he|she|they|streamer)'s\s+dating\s+(\w+)`),
}

// Extract derives the signal set for one message.
func Extract(msg message.Message) Set {
	text := strings.ToLower(msg.Text)

	var evidence []RelationshipMention
	for _, pat := range relationshipPatterns {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			target := m[1]
			if pat.NumSubexp() >= 2 {
				target = m[2]
			}
			// Short targets are noise ("he", "she", ...).
			if len(target) <= 3 {
				continue
			}
			evidence = append(evidence, RelationshipMention{
				Target:  target,
				Snippet: m[0],
				Pattern: pat.String(),
			})
		}
	}

	return Set{RelationshipMentions: evidence}
}

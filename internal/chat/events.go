package chat

import "github.com/nutrilink/nutrilink/internal/models"

// PlaceholderContent is the provisional user turn shown while a voice
// round-trip is in flight.
const PlaceholderContent = "🎤 [Voice Message]"

type eventKind int

const (
	eventHistoryLoaded eventKind = iota
	eventUserSent
	eventAssistantReceived
	eventPlaceholderAdded
	eventPlaceholderResolved
)

// event is one entry of the ordered log the transcript is reduced from.
// Keeping the ordering and replacement rules in a single reducer is what
// stops concurrent callbacks from interleaving the transcript incorrectly.
type event struct {
	kind          eventKind
	content       string
	placeholderID string
	transcription string
	reply         string
	history       []models.ChatMessage
}

// entry pairs a transcript message with the placeholder id it may carry.
type entry struct {
	msg           models.ChatMessage
	placeholderID string
}

func reduce(entries []entry, ev event) []entry {
	switch ev.kind {
	case eventHistoryLoaded:
		// Wholesale replace: rehydration is the first event by construction.
		out := make([]entry, 0, len(ev.history))
		for _, msg := range ev.history {
			out = append(out, entry{msg: msg})
		}
		return out

	case eventUserSent:
		return append(entries, entry{msg: models.ChatMessage{
			Role:    models.RoleUser,
			Content: ev.content,
		}})

	case eventAssistantReceived:
		return append(entries, entry{msg: models.ChatMessage{
			Role:    models.RoleAssistant,
			Content: ev.content,
		}})

	case eventPlaceholderAdded:
		return append(entries, entry{
			msg: models.ChatMessage{
				Role:        models.RoleUser,
				Content:     PlaceholderContent,
				Placeholder: true,
			},
			placeholderID: ev.placeholderID,
		})

	case eventPlaceholderResolved:
		// Remove exactly the placeholder this round-trip created, then append
		// the transcribed turn and the reply in order.
		out := make([]entry, 0, len(entries)+1)
		for _, e := range entries {
			if e.placeholderID == ev.placeholderID && e.placeholderID != "" {
				continue
			}
			out = append(out, e)
		}
		out = append(out,
			entry{msg: models.ChatMessage{
				Role:    models.RoleUser,
				Content: "🎤 " + ev.transcription,
			}},
			entry{msg: models.ChatMessage{
				Role:    models.RoleAssistant,
				Content: ev.reply,
			}},
		)
		return out
	}
	return entries
}

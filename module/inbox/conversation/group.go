package conversation

import (
	"sort"
	"time"

	"SMSDesk/module/inbox/model"
)

// Group partitions a flat provider message list into per-counterparty
// threads and computes the display projections. Pure: same inputs, same
// output. readStates maps counterparty -> lastReadAt; a missing entry
// means the conversation was never read.
//
// When ownPhone is set, a message whose counterparty equals ownPhone is
// dropped (no conversation with yourself).
func Group(messages []model.Message, ownPhone string, readStates map[string]time.Time) []model.ConversationProjection {
	groups := make(map[string][]model.Message)
	order := make([]string, 0)

	for _, m := range messages {
		other := counterparty(m)
		if ownPhone != "" && other == ownPhone {
			continue
		}
		if _, ok := groups[other]; !ok {
			order = append(order, other)
		}
		groups[other] = append(groups[other], m)
	}

	out := make([]model.ConversationProjection, 0, len(groups))
	for _, phone := range order {
		msgs := groups[phone]
		// Newest first; stable so equal timestamps keep input order.
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].Timestamp.After(msgs[j].Timestamp)
		})

		lastRead, hasRead := readStates[phone]
		unread := 0
		for _, m := range msgs {
			if m.Direction != model.DirectionReceived {
				continue
			}
			if !hasRead || m.Timestamp.After(lastRead) {
				unread++
			}
		}

		out = append(out, model.ConversationProjection{
			PhoneNumber: phone,
			Messages:    msgs,
			LastMessage: msgs[0],
			UnreadCount: unread,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.Timestamp.After(out[j].LastMessage.Timestamp)
	})
	return out
}

// Thread returns the messages exchanged with one counterparty in
// chronological order, oldest first.
func Thread(messages []model.Message, phone, ownPhone string) []model.Message {
	out := make([]model.Message, 0)
	for _, m := range messages {
		if ownPhone != "" {
			betweenUs := (m.From == ownPhone && m.To == phone) || (m.From == phone && m.To == ownPhone)
			if !betweenUs {
				continue
			}
		} else if m.From != phone && m.To != phone {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// UnreadFor looks up one counterparty's unread count in a projection list.
func UnreadFor(projections []model.ConversationProjection, phone string) int {
	for _, p := range projections {
		if p.PhoneNumber == phone {
			return p.UnreadCount
		}
	}
	return 0
}

func counterparty(m model.Message) string {
	if m.Direction == model.DirectionReceived {
		return m.From
	}
	return m.To
}

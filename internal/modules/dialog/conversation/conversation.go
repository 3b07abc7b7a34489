package conversation

import (
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	// RoleUser is the role of every turn the model reads but did not write.
	RoleUser Role = "user"
	// RoleAssistant is the role of turns attributed to the speaker being generated.
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var ErrRoleSequence = errors.New("conversation: formatted history must end with a user turn")

// Roles returns the alternating role sequence for a history of n turns. The final
// entry is always RoleUser so the provider is asked to answer the most recent turn.
func Roles(n int) []Role {
	if n <= 0 {
		return nil
	}
	startsWithUser := n%2 == 1
	out := make([]Role, n)
	for i := range out {
		if (i%2 == 0) == startsWithUser {
			out[i] = RoleUser
		} else {
			out[i] = RoleAssistant
		}
	}
	return out
}

// OpeningPrompt is the single turn sent when a dialog has no history yet.
func OpeningPrompt(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "Please start the conversation."
	}
	return fmt.Sprintf("Please start a conversation about: %s", topic)
}

// Format maps an ordered history (oldest first) onto provider messages from the point
// of view of the speaker about to generate. The result is never reordered or patched;
// a sequence that would not end on a user turn is reported as ErrRoleSequence.
func Format(history []string, topic string) ([]Message, error) {
	if len(history) == 0 {
		return []Message{{Role: RoleUser, Content: OpeningPrompt(topic)}}, nil
	}
	roles := Roles(len(history))
	out := make([]Message, len(history))
	for i, text := range history {
		out[i] = Message{Role: roles[i], Content: text}
	}
	if out[len(out)-1].Role != RoleUser {
		return nil, ErrRoleSequence
	}
	return out, nil
}

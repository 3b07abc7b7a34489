package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/conversation"
	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/emotion"
	"github.com/yungbote/dialogforge-backend/internal/platform/anthropic"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type TurnRequest struct {
	CharacterPrompt string
	Topic           string
	// History is every prior turn text, oldest first.
	History      []string
	SpeakingRole string
	SpeakerName  string
	PartnerName  string
	PartnerRole  string
	// Emotion is the speaker's current mood. Nil for characters that do not track one.
	Emotion *emotion.Vector
}

type TurnResult struct {
	Text           string
	RequestPayload json.RawMessage
	Usage          anthropic.Usage
	Model          string
}

type EmotionRequest struct {
	History       []string
	CharacterName string
	Topic         string
}

type Generator interface {
	GenerateTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
	AnalyzeEmotion(ctx context.Context, req EmotionRequest) (emotion.Vector, error)
}

type Config struct {
	MaxTokens        int
	EmotionMaxTokens int
	// EmotionWindow bounds how many trailing turns are shown to the analyzer.
	EmotionWindow int
}

type Client struct {
	log *logger.Logger
	llm anthropic.Client
	cfg Config
}

var _ Generator = (*Client)(nil)

func NewClient(log *logger.Logger, llm anthropic.Client, cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.EmotionMaxTokens <= 0 {
		cfg.EmotionMaxTokens = 512
	}
	if cfg.EmotionWindow <= 0 {
		cfg.EmotionWindow = 10
	}
	return &Client{
		log: log.With("component", "GenerationClient"),
		llm: llm,
		cfg: cfg,
	}
}

func (c *Client) GenerateTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	msgs, err := conversation.Format(req.History, req.Topic)
	if err != nil {
		return nil, err
	}
	out, err := c.llm.Messages(ctx, anthropic.MessagesRequest{
		System:    TurnSystemPrompt(req),
		Messages:  toProvider(msgs),
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return nil, &anthropic.Error{Kind: anthropic.KindInvalidResponse, Message: "generated turn was empty"}
	}
	c.log.Debug("Generated turn",
		"speaker", req.SpeakerName,
		"speaking_role", req.SpeakingRole,
		"history_len", len(req.History),
		"output_tokens", out.Usage.OutputTokens,
	)
	return &TurnResult{
		Text:           text,
		RequestPayload: json.RawMessage(out.Payload),
		Usage:          out.Usage,
		Model:          out.Model,
	}, nil
}

// TurnSystemPrompt embeds the persona, topic and both names verbatim.
func TurnSystemPrompt(req TurnRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n\n", req.SpeakerName)
	if p := strings.TrimSpace(req.CharacterPrompt); p != "" {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	partner := req.PartnerName
	if strings.TrimSpace(req.PartnerRole) != "" {
		partner = fmt.Sprintf("%s (%s)", req.PartnerName, req.PartnerRole)
	}
	fmt.Fprintf(&b, "You are having a conversation with %s about: %s\n", partner, req.Topic)
	if req.Emotion != nil {
		b.WriteString("\nYour current emotional state, from 0 (absent) to 1 (intense):\n")
		b.WriteString(describeMood(*req.Emotion))
		b.WriteString("\nLet this mood color your reply without naming it.\n")
	}
	fmt.Fprintf(&b, "\nStay in character. Reply with only %s's next message, without a name prefix or stage directions.", req.SpeakerName)
	return b.String()
}

func describeMood(v emotion.Vector) string {
	parts := make([]string, 0, emotion.Size)
	for i, name := range emotion.Dimensions {
		parts = append(parts, fmt.Sprintf("%s=%.1f", name, v[i]))
	}
	return strings.Join(parts, ", ")
}

func (c *Client) AnalyzeEmotion(ctx context.Context, req EmotionRequest) (emotion.Vector, error) {
	history := req.History
	if len(history) > c.cfg.EmotionWindow {
		history = history[len(history)-c.cfg.EmotionWindow:]
	}
	var transcript strings.Builder
	for i, line := range history {
		fmt.Fprintf(&transcript, "[%d] %s\n", i+1, strings.TrimSpace(line))
	}

	system := fmt.Sprintf(
		"You assess the emotional state of %s in a conversation about: %s\n"+
			"Rate each emotion from 0 (absent) to 1 (intense) as %s feels after the latest turn.\n"+
			"Respond with a single JSON object and nothing else. It must match this JSON schema:\n%s",
		req.CharacterName, req.Topic, req.CharacterName, emotionSchema(),
	)
	out, err := c.llm.Messages(ctx, anthropic.MessagesRequest{
		System:    system,
		Messages:  []anthropic.Message{{Role: string(conversation.RoleUser), Content: "Conversation so far:\n" + transcript.String()}},
		MaxTokens: c.cfg.EmotionMaxTokens,
	})
	if err != nil {
		return emotion.NeutralVector(), err
	}
	return ParseEmotion(out.Text)
}

var ErrNoJSONObject = errors.New("no JSON object in emotion analysis reply")

// ParseEmotion reads the first JSON object in text. Missing or unparseable components
// are neutral and every value is clamped to [0,1].
func ParseEmotion(text string) (emotion.Vector, error) {
	obj, ok := firstJSONObject(text)
	if !ok {
		return emotion.NeutralVector(), ErrNoJSONObject
	}
	var v emotion.Vector
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return emotion.NeutralVector(), fmt.Errorf("parse emotion analysis: %w", err)
	}
	return v, nil
}

func firstJSONObject(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		if end := objectEnd(s, start); end > 0 {
			if candidate := s[start:end]; json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}

// objectEnd returns the index just past the brace closing the object opened at s[start],
// or -1 when it is never closed.
func objectEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func toProvider(msgs []conversation.Message) []anthropic.Message {
	out := make([]anthropic.Message, len(msgs))
	for i, m := range msgs {
		out[i] = anthropic.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/dialogforge-backend/internal/modules/dialog/emotion"
	"github.com/yungbote/dialogforge-backend/internal/platform/anthropic"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

type fakeLLM struct {
	reply string
	err   error
	last  anthropic.MessagesRequest
}

func (f *fakeLLM) Model() string { return "fake" }

func (f *fakeLLM) Messages(ctx context.Context, req anthropic.MessagesRequest) (*anthropic.MessagesResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	payload, _ := json.Marshal(req)
	return &anthropic.MessagesResponse{
		Text:    f.reply,
		Model:   "fake",
		Usage:   anthropic.Usage{InputTokens: 10, OutputTokens: 4},
		Payload: payload,
	}, nil
}

func TestGenerateTurnBuildsPromptAndMessages(t *testing.T) {
	llm := &fakeLLM{reply: "  Hello, Bob.  "}
	c := NewClient(logger.Nop(), llm, Config{})
	mood := emotion.NeutralVector()
	mood[0] = 0.9

	res, err := c.GenerateTurn(context.Background(), TurnRequest{
		CharacterPrompt: "A patient lighthouse keeper.",
		Topic:           "storms at sea",
		History:         []string{"Hi there", "Hello", "How are you?"},
		SpeakingRole:    "AEI",
		SpeakerName:     "Ada",
		PartnerName:     "Bob",
		Emotion:         &mood,
	})
	if err != nil {
		t.Fatalf("GenerateTurn: %v", err)
	}
	if res.Text != "Hello, Bob." {
		t.Fatalf("Text: got %q", res.Text)
	}
	for _, want := range []string{"Ada", "Bob", "storms at sea", "A patient lighthouse keeper.", "joy=0.9"} {
		if !strings.Contains(llm.last.System, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, llm.last.System)
		}
	}
	roles := []string{"user", "assistant", "user"}
	if len(llm.last.Messages) != len(roles) {
		t.Fatalf("messages: got %d", len(llm.last.Messages))
	}
	for i, r := range roles {
		if llm.last.Messages[i].Role != r {
			t.Fatalf("message %d role: want=%s got=%s", i, r, llm.last.Messages[i].Role)
		}
	}
	if !strings.Contains(string(res.RequestPayload), "storms at sea") {
		t.Fatalf("payload not recorded: %s", res.RequestPayload)
	}
	if res.Usage.OutputTokens != 4 {
		t.Fatalf("usage: got %+v", res.Usage)
	}
}

func TestGenerateTurnWithoutMoodOmitsEmotion(t *testing.T) {
	llm := &fakeLLM{reply: "hey"}
	c := NewClient(logger.Nop(), llm, Config{})
	if _, err := c.GenerateTurn(context.Background(), TurnRequest{SpeakerName: "Bob", PartnerName: "Ada", Topic: "t"}); err != nil {
		t.Fatalf("GenerateTurn: %v", err)
	}
	if strings.Contains(llm.last.System, "emotional state") {
		t.Fatalf("unexpected mood in prompt:\n%s", llm.last.System)
	}
	if len(llm.last.Messages) != 1 || llm.last.Messages[0].Role != "user" {
		t.Fatalf("want single opening turn, got %+v", llm.last.Messages)
	}
}

func TestGenerateTurnPropagatesProviderError(t *testing.T) {
	perr := &anthropic.Error{Kind: anthropic.KindRateLimited, StatusCode: 429, Message: "rate limit"}
	c := NewClient(logger.Nop(), &fakeLLM{err: perr}, Config{})
	_, err := c.GenerateTurn(context.Background(), TurnRequest{SpeakerName: "A"})
	if anthropic.KindOf(err) != anthropic.KindRateLimited {
		t.Fatalf("want rate limited error, got %v", err)
	}
}

func TestAnalyzeEmotionParsesEmbeddedJSON(t *testing.T) {
	llm := &fakeLLM{reply: "Here you go:\n```json\n{\"joy\": 0.8, \"anger\": 1.7, \"fear\": \"0.1\"}\n```"}
	c := NewClient(logger.Nop(), llm, Config{})
	v, err := c.AnalyzeEmotion(context.Background(), EmotionRequest{History: []string{"a", "b"}, CharacterName: "Ada", Topic: "t"})
	if err != nil {
		t.Fatalf("AnalyzeEmotion: %v", err)
	}
	want := map[string]float64{"joy": 0.8, "anger": 1, "fear": 0.1, "empathy": 0.5}
	for name, w := range want {
		if got, _ := v.Get(name); got != w {
			t.Fatalf("%s: want=%v got=%v", name, w, got)
		}
	}
	if !strings.Contains(llm.last.System, `"empathy"`) {
		t.Fatalf("schema not embedded in instruction:\n%s", llm.last.System)
	}
}

func TestParseEmotionWithoutObject(t *testing.T) {
	v, err := ParseEmotion("I cannot tell.")
	if !errors.Is(err, ErrNoJSONObject) {
		t.Fatalf("want ErrNoJSONObject, got %v", err)
	}
	if v != emotion.NeutralVector() {
		t.Fatalf("want neutral fallback, got %v", v)
	}
}

func TestFirstJSONObjectSkipsBracesInStrings(t *testing.T) {
	got, ok := firstJSONObject(`note {not json} then {"joy":"a}b","anger":0.2}`)
	if !ok || got != `{"joy":"a}b","anger":0.2}` {
		t.Fatalf("firstJSONObject: ok=%v got=%q", ok, got)
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dialogforge-backend/internal/data/sessions"
	types "github.com/yungbote/dialogforge-backend/internal/domain"
	"github.com/yungbote/dialogforge-backend/internal/platform/anthropic"
	"github.com/yungbote/dialogforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dialogforge-backend/internal/services"
)

type fakeJobs struct {
	job        *types.DialogJob
	created    bool
	err        error
	restartErr error
}

func (f *fakeJobs) GetStats(dbctx.Context) (map[types.DialogJobStatus]int64, error) {
	return map[types.DialogJobStatus]int64{types.DialogJobPending: 2}, f.err
}

func (f *fakeJobs) GetActiveJobs(dbctx.Context) ([]*types.DialogJob, error) {
	return []*types.DialogJob{f.job}, f.err
}

func (f *fakeJobs) GetByDialogIDForRequestUser(dbctx.Context, uuid.UUID) (*types.DialogJob, error) {
	return f.job, f.err
}

func (f *fakeJobs) EnqueueForRequestUser(dbctx.Context, uuid.UUID) (*types.DialogJob, bool, error) {
	return f.job, f.created, f.err
}

func (f *fakeJobs) RestartForRequestUser(dbctx.Context, uuid.UUID) (*types.DialogJob, error) {
	if f.restartErr != nil {
		return nil, f.restartErr
	}
	return f.job, nil
}

type fakeMessages struct {
	up  *bool
	err error
}

func (f *fakeMessages) RateForRequestUser(_ dbctx.Context, id uuid.UUID, up bool) (*types.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.up = &up
	return &types.Message{ID: id, ThumbsUp: 1}, nil
}

type fakeChats struct {
	sendErr error
	deleted string
}

func (f *fakeChats) Create(_ dbctx.Context, in services.CreateChatSessionInput) (*sessions.ChatSession, error) {
	if in.Topic == "" {
		return nil, fmt.Errorf("%w: topic", services.ErrInvalidInput)
	}
	return &sessions.ChatSession{ID: "s1", Topic: in.Topic}, nil
}

func (f *fakeChats) Get(_ context.Context, id string) (*sessions.ChatSession, error) {
	if id != "s1" {
		return nil, services.ErrNotFound
	}
	return &sessions.ChatSession{ID: id}, nil
}

func (f *fakeChats) SendMessage(_ dbctx.Context, id string, text string) (*services.ChatReply, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &services.ChatReply{Session: &sessions.ChatSession{ID: id}, Reply: "echo " + text}, nil
}

func (f *fakeChats) Delete(_ context.Context, id string) error {
	f.deleted = id
	return nil
}

func newTestRouter(jobs services.JobService, msgs services.MessageService, chats services.ChatSessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	jh := NewJobHandler(jobs)
	r.GET("/api/jobs/stats", jh.GetStats)
	r.GET("/api/jobs/active", jh.ListActive)
	r.POST("/api/jobs/:id/restart", jh.RestartJob)
	r.GET("/api/dialogs/:id/job", jh.GetDialogJob)
	r.POST("/api/dialogs/:id/generate", jh.GenerateDialog)
	r.POST("/api/messages/:id/rate", NewMessageHandler(msgs).RateMessage)
	ch := NewChatSessionHandler(chats)
	r.POST("/api/chat/sessions", ch.CreateSession)
	r.GET("/api/chat/sessions/:id", ch.GetSession)
	r.POST("/api/chat/sessions/:id/messages", ch.SendMessage)
	r.DELETE("/api/chat/sessions/:id", ch.DeleteSession)
	r.GET("/healthcheck", NewHealthHandler(nil).HealthCheck)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, rec.Body.String())
	}
	return env.Error.Code
}

func TestJobRoutes(t *testing.T) {
	job := &types.DialogJob{ID: uuid.New(), Status: types.DialogJobPending}
	id := job.ID.String()

	cases := []struct {
		name   string
		jobs   *fakeJobs
		method string
		path   string
		status int
		code   string
	}{
		{"stats", &fakeJobs{job: job}, http.MethodGet, "/api/jobs/stats", http.StatusOK, ""},
		{"active", &fakeJobs{job: job}, http.MethodGet, "/api/jobs/active", http.StatusOK, ""},
		{"restart ok", &fakeJobs{job: job}, http.MethodPost, "/api/jobs/" + id + "/restart", http.StatusOK, ""},
		{"restart conflict", &fakeJobs{restartErr: services.ErrNotRestartable}, http.MethodPost, "/api/jobs/" + id + "/restart", http.StatusConflict, "not_restartable"},
		{"restart forbidden", &fakeJobs{restartErr: services.ErrForbidden}, http.MethodPost, "/api/jobs/" + id + "/restart", http.StatusForbidden, "forbidden"},
		{"restart bad id", &fakeJobs{}, http.MethodPost, "/api/jobs/nope/restart", http.StatusBadRequest, "invalid_job_id"},
		{"dialog job", &fakeJobs{job: job}, http.MethodGet, "/api/dialogs/" + id + "/job", http.StatusOK, ""},
		{"dialog job none", &fakeJobs{}, http.MethodGet, "/api/dialogs/" + id + "/job", http.StatusNotFound, "job_not_found"},
		{"generate created", &fakeJobs{job: job, created: true}, http.MethodPost, "/api/dialogs/" + id + "/generate", http.StatusCreated, ""},
		{"generate existing", &fakeJobs{job: job}, http.MethodPost, "/api/dialogs/" + id + "/generate", http.StatusOK, ""},
		{"generate no turns", &fakeJobs{err: fmt.Errorf("%w: no turns", services.ErrInvalidInput)}, http.MethodPost, "/api/dialogs/" + id + "/generate", http.StatusBadRequest, "invalid_input"},
		{"internal error hidden", &fakeJobs{err: errors.New("db down")}, http.MethodGet, "/api/jobs/stats", http.StatusInternalServerError, "job_stats_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(tc.jobs, &fakeMessages{}, &fakeChats{})
			rec := do(r, tc.method, tc.path, nil)
			if rec.Code != tc.status {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if tc.code != "" {
				if got := errorCode(t, rec); got != tc.code {
					t.Fatalf("code: got=%q want=%q", got, tc.code)
				}
			}
			if tc.status == http.StatusInternalServerError && bytes.Contains(rec.Body.Bytes(), []byte("db down")) {
				t.Fatalf("internal error text leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestRateMessageRoute(t *testing.T) {
	msgs := &fakeMessages{}
	r := newTestRouter(&fakeJobs{}, msgs, &fakeChats{})
	id := uuid.NewString()

	rec := do(r, http.MethodPost, "/api/messages/"+id+"/rate", map[string]any{"up": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body=%s", rec.Code, rec.Body.String())
	}
	if msgs.up == nil || *msgs.up {
		t.Fatalf("expected a thumbs-down, got %v", msgs.up)
	}

	rec = do(r, http.MethodPost, "/api/messages/"+id+"/rate", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing up: status %d", rec.Code)
	}

	r = newTestRouter(&fakeJobs{}, &fakeMessages{err: services.ErrNotFound}, &fakeChats{})
	rec = do(r, http.MethodPost, "/api/messages/"+id+"/rate", map[string]any{"up": true})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown message: status %d", rec.Code)
	}
}

func TestChatSessionRoutes(t *testing.T) {
	chats := &fakeChats{}
	r := newTestRouter(&fakeJobs{}, &fakeMessages{}, chats)

	rec := do(r, http.MethodPost, "/api/chat/sessions", map[string]any{"aei_character_id": uuid.NewString(), "partner_name": "Sam", "topic": "kites"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(r, http.MethodPost, "/api/chat/sessions", map[string]any{"partner_name": "Sam"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("create invalid: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/chat/sessions/s1", nil); rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/chat/sessions/zzz", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get missing: %d", rec.Code)
	}

	rec = do(r, http.MethodPost, "/api/chat/sessions/s1/messages", map[string]any{"text": "hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("send: %d body=%s", rec.Code, rec.Body.String())
	}
	var reply services.ChatReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil || reply.Reply != "echo hi" {
		t.Fatalf("reply: %+v %v", reply, err)
	}

	if rec := do(r, http.MethodDelete, "/api/chat/sessions/s1", nil); rec.Code != http.StatusNoContent || chats.deleted != "s1" {
		t.Fatalf("delete: %d deleted=%q", rec.Code, chats.deleted)
	}
}

func TestChatProviderErrorsMapToGatewayStatuses(t *testing.T) {
	cases := []struct {
		kind   anthropic.ErrorKind
		status int
	}{
		{anthropic.KindRateLimited, http.StatusTooManyRequests},
		{anthropic.KindOverloaded, http.StatusServiceUnavailable},
		{anthropic.KindTransport, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			chats := &fakeChats{sendErr: fmt.Errorf("generate reply: %w", &anthropic.Error{Kind: tc.kind, Message: "x"})}
			r := newTestRouter(&fakeJobs{}, &fakeMessages{}, chats)
			rec := do(r, http.MethodPost, "/api/chat/sessions/s1/messages", map[string]any{"text": "hi"})
			if rec.Code != tc.status {
				t.Fatalf("status: got=%d want=%d", rec.Code, tc.status)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthcheck", NewHealthHandler(func(context.Context) error { return errors.New("db down") }).HealthCheck)
	if rec := do(r, http.MethodGet, "/healthcheck", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: %d", rec.Code)
	}
	r = newTestRouter(&fakeJobs{}, &fakeMessages{}, &fakeChats{})
	if rec := do(r, http.MethodGet, "/healthcheck", nil); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthy: %d %q", rec.Code, rec.Body.String())
	}
}

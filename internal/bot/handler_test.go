package bot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchpoint/internal/config"
	"watchpoint/internal/session"
)

type sentMessage struct {
	chatID any
	text   string
	kb     *models.InlineKeyboardMarkup
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
	answered []string
	deleted  []int
}

func (f *fakeSender) SendMessage(_ context.Context, p *tgbot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kb, _ := p.ReplyMarkup.(*models.InlineKeyboardMarkup)
	f.messages = append(f.messages, sentMessage{chatID: p.ChatID, text: p.Text, kb: kb})
	return &models.Message{}, nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, p *tgbot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, p.CallbackQueryID)
	return true, nil
}

func (f *fakeSender) DeleteMessage(_ context.Context, p *tgbot.DeleteMessageParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, p.MessageID)
	return true, nil
}

func (f *fakeSender) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return sentMessage{}
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.text
	}
	return out
}

// apiRecorder is a minimal WatchPoint API that records the requests it served.
type apiRecorder struct {
	mu       sync.Mutex
	calls    []string
	active   bool
	deleted  bool
	feedback string
}

func (a *apiRecorder) count(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (a *apiRecorder) total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *apiRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, r.Method+" "+r.URL.Path)

	if r.Header.Get("Authorization") != "Bearer opaque-session-token" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Unauthorized"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	watch := `{"id":"w1","user_id":"u1","target_url":"https://example.com/pricing","name":"Pricing","check_interval_seconds":3600,"is_active":` +
		strconv.FormatBool(a.active) + `,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"`

	switch r.Method + " " + r.URL.Path {
	case "GET /api/me":
		w.Write([]byte(`{"id":"u1","email":"a@example.com","plan_tier":"free"}`))
	case "GET /api/watches":
		if a.deleted {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[` + watch + `}]`))
	case "GET /api/changes/recent":
		w.Write([]byte(`[]`))
	case "GET /api/watches/w1":
		fb := ""
		if a.feedback != "" {
			fb = `,"user_feedback":"` + a.feedback + `"`
		}
		w.Write([]byte(watch + `,"changes":[{"id":"c1","watch_id":"w1","change_summary":"Price dropped","detected_at":"2025-01-02T00:00:00Z"` + fb + `}]}`))
	case "GET /api/watches/w2":
		w.Write([]byte(`{"id":"w2","user_id":"u1","target_url":"https://example.org/news","name":"News","check_interval_seconds":86400,"is_active":true,` +
			`"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z",` +
			`"changes":[{"id":"c9","watch_id":"w2","change_summary":"Headline changed","detected_at":"2025-01-02T00:00:00Z"}]}`))
	case "POST /api/watches/w1/pause":
		a.active = false
		w.Write([]byte(`{"success":true}`))
	case "POST /api/watches/w1/resume":
		a.active = true
		w.Write([]byte(`{"success":true}`))
	case "DELETE /api/watches/w1":
		a.deleted = true
		w.Write([]byte(`{"success":true}`))
	case "POST /api/feedback/c1":
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "useful") {
			a.feedback = "useful"
		}
		w.Write([]byte(`{"success":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Not found"}`))
	}
}

type testEnv struct {
	h     *Handler
	out   *fakeSender
	api   *apiRecorder
	store *session.Store
}

func setupHandler(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rec := &apiRecorder{active: true}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	store, err := session.OpenStore(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	out := &fakeSender{}
	cfg := config.Config{APIURL: srv.URL, TelegramBotToken: "test"}
	return &testEnv{
		h:     newHandler(out, cfg, store, nil, logger),
		out:   out,
		api:   rec,
		store: store,
	}
}

const testChat int64 = 4242

func textUpdate(text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:   77,
		Text: text,
		Chat: models.Chat{ID: testChat},
		From: &models.User{ID: testChat},
	}}
}

func callbackUpdate(data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:      "cq-1",
		From:    models.User{ID: testChat},
		Data:    data,
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{Chat: models.Chat{ID: testChat}}},
	}}
}

func (e *testEnv) command(text string) {
	e.h.commandHandler(context.Background(), nil, textUpdate(text))
}

func (e *testEnv) press(data string) {
	e.h.callbackHandler(context.Background(), nil, callbackUpdate(data))
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	e.command("/login opaque-session-token")
	require.Contains(t, e.out.texts(), "Signed in.")
}

func TestHandler_CommandsRequireLogin(t *testing.T) {
	env := setupHandler(t)

	env.command("/watches")
	assert.Equal(t, loginPrompt, env.out.last().text)

	env.command("/watch w1")
	assert.Equal(t, loginPrompt, env.out.last().text)

	env.command("/new https://example.com 3600")
	assert.Equal(t, loginPrompt, env.out.last().text)

	assert.Zero(t, env.api.total(), "nothing may reach the API without a session")
}

func TestHandler_Login(t *testing.T) {
	env := setupHandler(t)

	env.login(t)

	assert.Equal(t, []int{77}, env.out.deleted, "the token message is removed")
	sess, ok, err := env.store.Get(context.Background(), "4242")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "opaque-session-token", sess.AccessToken)

	last := env.out.last()
	assert.Equal(t, testChat, last.chatID)
	assert.Contains(t, last.text, "Pricing [active]")
	require.NotNil(t, last.kb)
	assert.Equal(t, "dpause:w1", last.kb.InlineKeyboard[0][0].CallbackData)
}

func TestHandler_LoginUsageAndExpiredToken(t *testing.T) {
	env := setupHandler(t)

	env.command("/login")
	assert.Equal(t, "Usage: /login <access_token>", env.out.last().text)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("test-secret-test-secret-test-secret"))
	require.NoError(t, err)

	env.command("/login " + tok)
	assert.Equal(t, "That token has already expired.", env.out.last().text)
	_, ok, err := env.store.Get(context.Background(), "4242")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandler_PauseFromDashboard(t *testing.T) {
	env := setupHandler(t)
	env.login(t)

	env.press("dpause:w1")

	assert.Equal(t, []string{"cq-1"}, env.out.answered)
	assert.Equal(t, 1, env.api.count("POST /api/watches/w1/pause"))
	assert.Contains(t, env.out.last().text, "Pricing [paused]")

	env.press("dpause:w1")
	assert.Equal(t, 1, env.api.count("POST /api/watches/w1/resume"))
	assert.Contains(t, env.out.last().text, "Pricing [active]")
}

func TestHandler_DeleteNeedsConfirmation(t *testing.T) {
	env := setupHandler(t)
	env.login(t)

	env.press("del:w1")
	last := env.out.last()
	assert.Equal(t, "Delete this watch?", last.text)
	require.NotNil(t, last.kb)
	assert.Equal(t, "delok:w1", last.kb.InlineKeyboard[0][0].CallbackData)
	assert.Zero(t, env.api.count("DELETE /api/watches/w1"))

	env.press("delok:w1")
	assert.Equal(t, 1, env.api.count("DELETE /api/watches/w1"))
	assert.NotContains(t, env.out.last().text, "Pricing")
}

func TestHandler_WatchDetailFeedback(t *testing.T) {
	env := setupHandler(t)
	env.login(t)

	env.command("/watch w1")
	last := env.out.last()
	assert.Contains(t, last.text, "1. Price dropped")
	require.NotNil(t, last.kb)
	require.Len(t, last.kb.InlineKeyboard, 2)
	assert.Equal(t, "fb:w1:c1:useful", last.kb.InlineKeyboard[1][1].CallbackData)

	env.press("fb:w1:c1:useful")
	assert.Equal(t, 1, env.api.count("POST /api/feedback/c1"))
	assert.Contains(t, env.out.last().text, "marked useful")

	env.press("fb:w1:c1:noise")
	assert.Equal(t, 1, env.api.count("POST /api/feedback/c1"), "feedback is only sent once")

	env.press("fb:w1:c1:bogus")
	assert.Contains(t, env.out.last().text, "unknown value")
}

func TestHandler_FeedbackWithoutDetail(t *testing.T) {
	env := setupHandler(t)
	env.login(t)

	env.press("fb:w1:c1:useful")

	assert.Contains(t, env.out.last().text, "/watch w1")
	assert.Zero(t, env.api.count("POST /api/feedback/c1"))
}

func TestHandler_FeedbackOnEarlierWatchMessage(t *testing.T) {
	env := setupHandler(t)
	env.login(t)

	env.command("/watch w1")
	env.command("/watch w2")
	require.Contains(t, env.out.last().text, "Headline changed")
	sent := len(env.out.texts())

	// The button still sits on the w1 message, but w2 is the open screen.
	env.press("fb:w1:c1:useful")

	assert.Zero(t, env.api.count("POST /api/feedback/c1"))
	assert.Len(t, env.out.texts(), sent+1)
	assert.Equal(t, "Open the watch again with /watch w1 to leave feedback.", env.out.last().text)

	env.command("/watch w1")
	env.press("fb:w1:c1:useful")
	assert.Equal(t, 1, env.api.count("POST /api/feedback/c1"))
	assert.Contains(t, env.out.last().text, "marked useful")
}

func TestHandler_FeedbackForUnlistedChange(t *testing.T) {
	env := setupHandler(t)
	env.login(t)
	env.command("/watch w1")

	env.press("fb:w1:c9:noise")

	assert.Zero(t, env.api.count("POST /api/feedback/c9"))
	assert.Contains(t, env.out.last().text, "no longer listed")
}

func TestHandler_PauseRepliesOnTheScreenPressed(t *testing.T) {
	env := setupHandler(t)
	env.login(t)
	env.command("/watch w1")

	// Detail button: the detail is re-rendered.
	env.press("pause:w1")
	assert.Equal(t, 1, env.api.count("POST /api/watches/w1/pause"))
	last := env.out.last()
	assert.True(t, strings.HasPrefix(last.text, "Pricing [paused]"), last.text)
	assert.NotContains(t, last.text, "Watches:")

	// Dashboard button with the same watch open: the dashboard answers from
	// its own list, which still shows the watch as active.
	env.press("dpause:w1")
	assert.Equal(t, 2, env.api.count("POST /api/watches/w1/pause"))
	last = env.out.last()
	assert.Contains(t, last.text, "Watches:")
	assert.Contains(t, last.text, "Pricing [paused]")
}

func TestHandler_DetailPauseWithoutDetail(t *testing.T) {
	env := setupHandler(t)
	env.login(t)

	env.press("pause:w1")

	assert.Zero(t, env.api.count("POST /api/watches/w1/pause"))
	assert.Contains(t, env.out.last().text, "/watch w1")
}

func TestHandler_NewRejectsInvalidURL(t *testing.T) {
	env := setupHandler(t)
	env.login(t)
	before := env.api.total()

	env.command("/new not-a-url")

	assert.Equal(t, "⚠ Please enter a valid URL", env.out.last().text)
	assert.Equal(t, before, env.api.total())

	env.command("/new")
	assert.Contains(t, env.out.last().text, "Usage: /new")
}

func TestHandler_PreviewUnavailable(t *testing.T) {
	env := setupHandler(t)
	env.command("/preview https://example.com")
	assert.Equal(t, "Previews are not available.", env.out.last().text)
}

func TestHandler_Logout(t *testing.T) {
	env := setupHandler(t)
	env.login(t)

	env.command("/logout")

	assert.Contains(t, env.out.last().text, "Signed out.")
	_, ok, err := env.store.Get(context.Background(), "4242")
	require.NoError(t, err)
	assert.False(t, ok)

	calls := env.api.total()
	env.command("/watches")
	assert.Equal(t, loginPrompt, env.out.last().text)
	assert.Equal(t, calls, env.api.total())
}

func TestHandler_UnknownCommand(t *testing.T) {
	env := setupHandler(t)
	env.command("/frobnicate")
	assert.Equal(t, helpText, env.out.last().text)

	env.command("/start@WatchPointBot")
	assert.True(t, strings.HasPrefix(env.out.last().text, "Welcome to WatchPoint!"))
}

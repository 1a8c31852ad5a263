package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"watchpoint/internal/api"
	"watchpoint/internal/config"
	"watchpoint/internal/domain"
	"watchpoint/internal/format"
	"watchpoint/internal/preview"
	"watchpoint/internal/screen"
	"watchpoint/internal/session"
)

// Sender is the subset of the Telegram API the handler talks to.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
	DeleteMessage(ctx context.Context, params *tgbot.DeleteMessageParams) (bool, error)
}

// SessionStore persists the per-user sessions the API client authenticates with.
type SessionStore interface {
	Save(ctx context.Context, sess session.Session) error
	ForUser(userKey string) session.Provider
}

// chat is the screen state of one Telegram chat.
type chat struct {
	nav       *chatNavigator
	client    *api.Client
	dashboard *screen.Dashboard
	// detail is the last watch opened with /watch. It is replaced when another
	// watch is opened.
	detail *screen.WatchDetail
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot       *tgbot.Bot
	out       Sender
	cfg       config.Config
	sessions  SessionStore
	previewer preview.Previewer
	log       logrus.FieldLogger
	now       func() time.Time

	mu    sync.Mutex
	chats map[int64]*chat
}

// NewHandler creates a new bot handler instance. previewer may be nil.
func NewHandler(cfg config.Config, sessions SessionStore, previewer preview.Previewer, logger logrus.FieldLogger) (*Handler, error) {
	h := newHandler(nil, cfg, sessions, previewer, logger)

	b, err := tgbot.New(cfg.TelegramBotToken, tgbot.WithDefaultHandler(h.defaultHandler))
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b
	h.out = b

	h.registerHandlers()
	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(out Sender, cfg config.Config, sessions SessionStore, previewer preview.Previewer, logger logrus.FieldLogger) *Handler {
	return &Handler{
		out:       out,
		cfg:       cfg,
		sessions:  sessions,
		previewer: previewer,
		log:       logger.WithField("component", "bot_handler"),
		now:       time.Now,
		chats:     make(map[int64]*chat),
	}
}

// registerHandlers sets up the command and callback handlers.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/", tgbot.MatchTypePrefix, h.commandHandler)
	h.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, "", tgbot.MatchTypePrefix, h.callbackHandler)
	h.log.Info("Registered command and callback handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// chatFor returns the screen state of chatID, creating it on first use.
func (h *Handler) chatFor(chatID, userID int64) *chat {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.chats[chatID]; ok {
		return c
	}
	nav := &chatNavigator{}
	client := api.New(h.cfg.APIURL, h.sessions.ForUser(userKey(userID)), h.log)
	c := &chat{
		nav:       nav,
		client:    client,
		dashboard: screen.NewDashboard(client, nav, h.log),
	}
	h.chats[chatID] = c
	return c
}

// openDetail returns the detail screen for watchID, keeping the current one
// when it already shows that watch.
func (h *Handler) openDetail(c *chat, watchID string) *screen.WatchDetail {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.detail == nil || c.detail.WatchID() != watchID {
		c.detail = screen.NewWatchDetail(c.client, watchID, c.nav, h.log)
	}
	return c.detail
}

// currentDetail returns the open detail screen if it shows watchID.
func (h *Handler) currentDetail(c *chat, watchID string) *screen.WatchDetail {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.detail != nil && c.detail.WatchID() == watchID {
		return c.detail
	}
	return nil
}

func (h *Handler) closeDetail(c *chat, watchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.detail != nil && c.detail.WatchID() == watchID {
		c.detail = nil
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &tgbot.SendMessageParams{ChatID: chatID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := h.out.SendMessage(ctx, params); err != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}

// follow acts on a navigation request left by the last screen operation. It
// reports whether the screen's own output should be skipped.
func (h *Handler) follow(ctx context.Context, chatID int64, c *chat) bool {
	login, dashboard := c.nav.take()
	switch {
	case login:
		h.reply(ctx, chatID, loginPrompt, nil)
		return true
	case dashboard:
		h.showDashboard(ctx, chatID, c)
		return true
	}
	return false
}

func (h *Handler) showDashboard(ctx context.Context, chatID int64, c *chat) {
	c.dashboard.Load(ctx)
	if h.follow(ctx, chatID, c) {
		return
	}
	h.renderDashboard(ctx, chatID, c)
}

func (h *Handler) renderDashboard(ctx context.Context, chatID int64, c *chat) {
	text, kb := renderDashboard(c.dashboard.View(), h.now())
	h.reply(ctx, chatID, text, kb)
}

func (h *Handler) renderDetail(ctx context.Context, chatID int64, d *screen.WatchDetail) {
	text, kb := renderDetail(d.View(), h.now())
	h.reply(ctx, chatID, text, kb)
}

// ensureDashboard loads the dashboard once so mutations have a list to act on.
func (h *Handler) ensureDashboard(ctx context.Context, c *chat) {
	if c.dashboard.Phase() != screen.PhaseReady {
		c.dashboard.Load(ctx)
	}
}

// commandHandler dispatches every message starting with a slash.
func (h *Handler) commandHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	cmd := strings.Fields(msg.Text)[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	args := commandArgs(msg.Text)

	log := h.log.WithFields(logrus.Fields{
		"user_id": msg.From.ID,
		"command": cmd,
	})
	log.Info("Received command")

	chatID := msg.Chat.ID
	c := h.chatFor(chatID, msg.From.ID)

	switch cmd {
	case "/start", "/help":
		h.reply(ctx, chatID, "Welcome to WatchPoint! I keep an eye on web pages for you.\n\n"+helpText, nil)
	case "/login":
		h.login(ctx, msg, c, args)
	case "/logout":
		c.dashboard.Logout(ctx)
		c.nav.take()
		h.closeAll(c)
		h.reply(ctx, chatID, "Signed out. Send /login <access_token> to sign in again.", nil)
	case "/watches":
		h.showDashboard(ctx, chatID, c)
	case "/watch":
		if len(args) == 0 {
			h.reply(ctx, chatID, "Usage: /watch <id>", nil)
			return
		}
		d := h.openDetail(c, args[0])
		d.Load(ctx)
		if h.follow(ctx, chatID, c) {
			return
		}
		h.renderDetail(ctx, chatID, d)
	case "/new":
		h.create(ctx, chatID, c, args)
	case "/preview":
		h.preview(ctx, chatID, c, args)
	default:
		h.reply(ctx, chatID, helpText, nil)
	}
}

func (h *Handler) closeAll(c *chat) {
	h.mu.Lock()
	c.detail = nil
	h.mu.Unlock()
}

func (h *Handler) login(ctx context.Context, msg *models.Message, c *chat, args []string) {
	chatID := msg.Chat.ID
	if len(args) != 1 {
		h.reply(ctx, chatID, "Usage: /login <access_token>", nil)
		return
	}

	// The token should not linger in the chat history.
	if _, err := h.out.DeleteMessage(ctx, &tgbot.DeleteMessageParams{ChatID: chatID, MessageID: msg.ID}); err != nil {
		h.log.WithError(err).Debug("Could not delete login message")
	}

	sess := session.Session{UserKey: userKey(msg.From.ID), AccessToken: args[0], CreatedAt: h.now()}
	if !sess.Valid(h.now()) {
		h.reply(ctx, chatID, "That token has already expired.", nil)
		return
	}
	if err := h.sessions.Save(ctx, sess); err != nil {
		h.reply(ctx, chatID, "Could not save your session, please try again.", nil)
		return
	}
	h.log.WithFields(logrus.Fields{
		"user_id": msg.From.ID,
		"token":   session.Token(args[0]).String(),
	}).Info("User signed in")

	h.reply(ctx, chatID, "Signed in.", nil)
	h.showDashboard(ctx, chatID, c)
}

func (h *Handler) create(ctx context.Context, chatID int64, c *chat, args []string) {
	form, err := parseNewArgs(args)
	if err != nil {
		h.reply(ctx, chatID, "Usage: /new <url> [interval_seconds] [selector]", nil)
		return
	}

	s := screen.NewNewWatch(c.client, h.previewer, c.nav, h.log)
	s.Submit(ctx, form)

	if w, ok := s.Created(); ok {
		h.reply(ctx, chatID, fmt.Sprintf("Now watching %s every %s.", w.DisplayName(), format.Interval(w.CheckIntervalSeconds)), nil)
	}
	if h.follow(ctx, chatID, c) {
		return
	}
	if v := s.View(); v.Error != "" {
		h.reply(ctx, chatID, "⚠ "+v.Error, nil)
	}
}

func (h *Handler) preview(ctx context.Context, chatID int64, c *chat, args []string) {
	if h.previewer == nil {
		h.reply(ctx, chatID, "Previews are not available.", nil)
		return
	}
	if len(args) == 0 {
		h.reply(ctx, chatID, "Usage: /preview <url> [selector]", nil)
		return
	}

	s := screen.NewNewWatch(c.client, h.previewer, c.nav, h.log)
	s.CheckSession(ctx)
	if h.follow(ctx, chatID, c) {
		return
	}

	form := screen.NewForm()
	form.TargetURL = args[0]
	form.Selector = strings.Join(args[1:], " ")
	s.Preview(ctx, form)

	v := s.View()
	var text string
	if v.Preview != nil {
		text = renderPreview(*v.Preview)
	}
	if v.Error != "" {
		if text != "" {
			text += "\n\n"
		}
		text += "⚠ " + v.Error
	}
	h.reply(ctx, chatID, text, nil)
}

// callbackHandler handles the inline buttons of dashboard and detail messages.
func (h *Handler) callbackHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	if _, err := h.out.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID}); err != nil {
		h.log.WithError(err).Warn("Failed to answer callback query")
	}

	chatID := cq.From.ID
	if cq.Message.Message != nil {
		chatID = cq.Message.Message.Chat.ID
	}
	c := h.chatFor(chatID, cq.From.ID)

	action, args := parseCallback(cq.Data)
	h.log.WithFields(logrus.Fields{
		"user_id": cq.From.ID,
		"action":  action,
	}).Debug("Received callback")

	if len(args) == 0 {
		return
	}
	id := args[0]

	switch action {
	case cbPause:
		d := h.currentDetail(c, id)
		if d == nil {
			h.reply(ctx, chatID, "Open the watch again with /watch "+id+" to change it.", nil)
			return
		}
		d.TogglePause(ctx)
		if h.follow(ctx, chatID, c) {
			return
		}
		h.renderDetail(ctx, chatID, d)

	case cbDashboardPause:
		h.ensureDashboard(ctx, c)
		c.dashboard.TogglePause(ctx, id)
		if h.follow(ctx, chatID, c) {
			return
		}
		h.renderDashboard(ctx, chatID, c)

	case cbDelete:
		h.reply(ctx, chatID, screen.DeletePrompt, deleteConfirmKeyboard(id))

	case cbDeleteConfirm:
		h.ensureDashboard(ctx, c)
		_, listed := c.dashboard.Watches().Find(id)
		// The button press is the confirmation.
		c.dashboard.Delete(ctx, id, screen.Always)
		if h.follow(ctx, chatID, c) {
			return
		}
		if _, still := c.dashboard.Watches().Find(id); listed && !still {
			h.closeDetail(c, id)
		}
		h.renderDashboard(ctx, chatID, c)

	case cbFeedback:
		// fb:<watchID>:<changeID>:<value>
		if len(args) != 3 {
			return
		}
		changeID := args[1]
		fb, err := domain.ParseFeedback(args[2])
		if err != nil {
			h.reply(ctx, chatID, "⚠ "+err.Error(), nil)
			return
		}
		d := h.currentDetail(c, id)
		if d == nil {
			h.reply(ctx, chatID, "Open the watch again with /watch "+id+" to leave feedback.", nil)
			return
		}
		if !d.HasChange(changeID) {
			h.reply(ctx, chatID, "That change is no longer listed. Open the watch again with /watch "+id+".", nil)
			return
		}
		d.SubmitFeedback(ctx, changeID, fb)
		if h.follow(ctx, chatID, c) {
			return
		}
		h.renderDetail(ctx, chatID, d)
	}
}

func (h *Handler) defaultHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.log.WithField("chat_id", update.Message.Chat.ID).Debug("Received unhandled message (default handler)")
	h.reply(ctx, update.Message.Chat.ID, helpText, nil)
}

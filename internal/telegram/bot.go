// Package telegram runs the slash-command surface of the bot over Telegram
// long polling.
package telegram

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pagebot/pagebot-go/internal/bot"
	"github.com/pagebot/pagebot-go/internal/command"
	"github.com/pagebot/pagebot-go/internal/config"
	"github.com/pagebot/pagebot-go/internal/ctxutil"
	"github.com/pagebot/pagebot-go/internal/logger"
	"github.com/pagebot/pagebot-go/internal/metrics"
	"github.com/pagebot/pagebot-go/internal/ratelimit"
	"github.com/pagebot/pagebot-go/internal/textfmt"
)

// Replies for input that no command handles.
const (
	HintNotCommand     = "Commands start with /. Send /help to see what I can do."
	HintUnknownCommand = "Unknown command. Send /help for the list of commands."
	HintRateLimited    = "You're sending commands too quickly. Please wait a moment."
	replyCommandFailed = "Something went wrong running that command."
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers slash commands sent to a Telegram bot.
type Bot struct {
	api      API
	username string
	router   *command.Router
	reverser textfmt.Reverser
	catalog  bot.Catalog
	limiter  *ratelimit.KeyedLimiter
	logger   *logger.Logger
	metrics  *metrics.Metrics

	stopOnce sync.Once
}

// Config holds the collaborators of a Bot.
type Config struct {
	API      API
	Username string // bot username, used to accept "/cmd@username"
	Catalog  bot.Catalog
	Reverser textfmt.Reverser // defaults to textfmt.NewFormatReverser()

	// ChatLimiter throttles commands per chat. Optional.
	ChatLimiter *ratelimit.KeyedLimiter

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Connect authenticates token against the Bot API and returns a ready Bot.
func Connect(token string, cfg Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	cfg.API = api
	cfg.Username = api.Self.UserName
	return New(cfg), nil
}

// New creates a Bot with the built-in commands registered.
func New(cfg Config) *Bot {
	reverser := cfg.Reverser
	if reverser == nil {
		reverser = textfmt.NewFormatReverser()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}

	b := &Bot{
		api:      cfg.API,
		username: cfg.Username,
		router:   command.NewRouter(cfg.Metrics),
		reverser: reverser,
		catalog:  cfg.Catalog,
		limiter:  cfg.ChatLimiter,
		logger:   log.WithModule("telegram"),
		metrics:  cfg.Metrics,
	}

	b.router.Handle("start", "say hello", b.handleStart)
	b.router.Handle("help", "list commands", b.handleHelp)
	b.router.Handle("echo", "repeat your text", b.handleEcho)
	b.router.Handle("reverse", "reverse your text, keeping formatting", b.handleReverse)
	b.router.Handle("shop", "show what's for sale", b.handleShop)

	return b
}

// Run long-polls for updates until ctx is done. Updates are handled one at a
// time in arrival order.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = config.TelegramPollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.WithField("username", b.username).Info("Telegram polling started")

	for {
		select {
		case <-ctx.Done():
			b.stop()
			b.logger.Info("Telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// stop releases the polling goroutine. Stopping twice panics in the library.
func (b *Bot) stop() {
	b.stopOnce.Do(b.api.StopReceivingUpdates)
}

// HandleUpdate answers one update. Updates without message text are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	chatID := msg.Chat.ID
	ctx = ctxutil.WithPlatform(ctx, ctxutil.PlatformTelegram)
	ctx = ctxutil.WithSenderID(ctx, strconv.FormatInt(chatID, 10))

	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("panic", r).
				WithField("stack", string(debug.Stack())).
				ErrorContext(ctx, "Panic while handling Telegram update")
			if b.metrics != nil {
				b.metrics.RecordHTTPError("panic", "telegram")
			}
		}
	}()

	if b.limiter != nil && !b.limiter.Allow(strconv.FormatInt(chatID, 10)) {
		b.reply(ctx, chatID, HintRateLimited)
		return
	}

	b.reply(ctx, chatID, b.respond(ctx, msg))
}

// respond builds the reply text for a message. The text goes to the parser
// untouched, so a line with leading spaces is not a command.
func (b *Bot) respond(ctx context.Context, msg *tgbotapi.Message) string {
	cmd, ok := command.Parse(msg.Text)
	if !ok {
		return HintNotCommand
	}

	name, target, addressed := strings.Cut(cmd.Name, "@")
	if addressed && b.username != "" && !strings.EqualFold(target, b.username) {
		// Meant for another bot in the same group
		return ""
	}
	cmd.Name = name

	inv := command.Invocation{Command: cmd}
	if msg.From != nil {
		inv.SenderID = strconv.FormatInt(msg.From.ID, 10)
		inv.FirstName = msg.From.FirstName
	}

	reply, handled, err := b.router.Dispatch(ctx, inv)
	switch {
	case !handled:
		return HintUnknownCommand
	case err != nil:
		b.logger.WithError(err).WithField("command", cmd.Name).ErrorContext(ctx, "Command failed")
		return replyCommandFailed
	default:
		return reply
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.WithError(err).ErrorContext(ctx, "Failed to send Telegram reply")
		if b.metrics != nil {
			b.metrics.RecordHTTPError("send_failed", "telegram")
		}
	}
}

func (b *Bot) handleStart(_ context.Context, inv command.Invocation) (string, error) {
	salutation := bot.GreetingFallback
	if name := strings.TrimSpace(inv.FirstName); name != "" {
		salutation = fmt.Sprintf("Hi %s!", name)
	}
	return salutation + " Send /shop to browse what's for sale or /reverse <text> to flip some text.", nil
}

func (b *Bot) handleHelp(_ context.Context, _ command.Invocation) (string, error) {
	return b.router.Help(), nil
}

func (b *Bot) handleEcho(_ context.Context, inv command.Invocation) (string, error) {
	if strings.TrimSpace(inv.Parameters) == "" {
		return "Usage: /echo <text>", nil
	}
	return inv.Parameters, nil
}

func (b *Bot) handleReverse(_ context.Context, inv command.Invocation) (string, error) {
	if strings.TrimSpace(inv.Parameters) == "" {
		return "Usage: /reverse <text>", nil
	}
	return b.reverser.Reverse(inv.Parameters), nil
}

func (b *Bot) handleShop(_ context.Context, _ command.Invocation) (string, error) {
	if b.catalog == nil {
		return "Nothing is for sale right now.", nil
	}
	elements := b.catalog.Elements()
	if len(elements) == 0 {
		return "Nothing is for sale right now.", nil
	}

	var sb strings.Builder
	sb.WriteString("For sale:")
	for _, e := range elements {
		sb.WriteString("\n• ")
		sb.WriteString(e.Title)
		if e.Subtitle != "" {
			sb.WriteString(" - ")
			sb.WriteString(e.Subtitle)
		}
	}
	return sb.String(), nil
}

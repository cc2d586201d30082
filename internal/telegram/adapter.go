// Package telegram is a chat front-end that bridges a Telegram bot to the
// gateway. Each Telegram user is an owner; each chat is a conversation.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/tasktalk/internal/delivery"
	"github.com/user/tasktalk/internal/gateway"
	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/types"
)

const (
	maxTelegramMessage = 4096
	// Source tags tool calls made from Telegram.
	Source = "telegram"
)

// Sender sends a message through the bot API.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot     Sender
	updates func(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	stop    func()
	gateway *gateway.Gateway
	tasks   types.TaskStore
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway, tasks types.TaskStore) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := NewWithSender(bot, gw, tasks)
	a.updates = bot.GetUpdatesChan
	a.stop = bot.StopReceivingUpdates
	return a, nil
}

// NewWithSender creates an adapter that sends through s and never polls.
func NewWithSender(s Sender, gw *gateway.Gateway, tasks types.TaskStore) *Adapter {
	return &Adapter{bot: s, gateway: gw, tasks: tasks}
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	if a.updates == nil {
		<-ctx.Done()
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.updates(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" || update.Message.From == nil {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.stop()
			return
		}
	}
}

// Owner is the task owner for a Telegram user.
func Owner(userID int64) string {
	return "telegram:" + strconv.FormatInt(userID, 10)
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	req := gateway.Request{
		Key:     buildSessionKey(msg.From.ID, chatID),
		Owner:   Owner(msg.From.ID),
		Message: msg.Text,
		Source:  Source,
	}

	_, err := a.gateway.HandleInbound(ctx, req, gateway.WithOnComplete(func(res *gateway.Result, err error) {
		if err != nil {
			slog.Error("telegram turn failed", "chat_id", chatID, "error", err)
			a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
			return
		}
		a.sendResponse(chatID, res.Reply.Text)
	}))
	if err != nil {
		var ve *runtime.ValidationError
		if errors.As(err, &ve) {
			a.sendResponse(chatID, "⚠️ "+ve.Msg)
			return
		}
		slog.Error("handle inbound error", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	owner := Owner(msg.From.ID)

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I keep your task list. Tell me things like \"remember to buy milk\" or \"what do I need to do?\"")

	case "tasks":
		tasks, err := a.tasks.ListTasks(ctx, owner, types.FilterPending)
		if err != nil {
			slog.Error("list tasks failed", "user_id", owner, "error", err)
			a.sendResponse(chatID, "Error fetching tasks.")
			return
		}
		a.sendResponse(chatID, formatPending(tasks))

	case "status":
		key := buildSessionKey(msg.From.ID, chatID)
		store := a.gateway.Sessions.Store()
		conv, err := store.ResolveKey(ctx, key, owner)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		count, err := store.CountTurns(ctx, conv.ID)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Conversation: %s\nMessages: %d", conv.ID, count))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /tasks, /status")
	}
}

func formatPending(tasks []*types.Task) string {
	if len(tasks) == 0 {
		return "🎉 Nothing pending!"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⏳ %d pending:\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "• #%d %s\n", t.ID, t.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Adapter) send(chatID int64, text string) error {
	var lastErr error
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	if err := a.send(chatID, text); err != nil {
		slog.Error("send message error", "chat_id", chatID, "error", err)
	}
}

// DeliveryHandler delivers to the chat named by a "telegram:<user>:<chat>" key.
func (a *Adapter) DeliveryHandler() delivery.Handler {
	return func(_ context.Context, key types.SessionKey, message string) error {
		chatID, err := chatIDFromKey(key)
		if err != nil {
			return err
		}
		return a.send(chatID, message)
	}
}

func chatIDFromKey(key types.SessionKey) (int64, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) < 2 || parts[0] != Source {
		return 0, fmt.Errorf("invalid telegram session key %q", key)
	}
	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram session key %q", key)
	}
	return id, nil
}

// splitMessage cuts text into Telegram-sized parts on rune boundaries.
func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end >= len(text) {
			end = len(text)
		} else {
			for end > 0 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey(Source,
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}

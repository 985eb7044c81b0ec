package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/els777/TGtoWP/internal/conversation"
)

// Bot bridges Telegram updates and the conversation engine. It owns the
// per-user current state; everything else the engine needs lives in the
// session store, so a restart only costs the in-flight step.
type Bot struct {
	API    *tgbotapi.BotAPI
	engine *conversation.Engine
	log    zerolog.Logger

	mu     sync.Mutex
	states map[int64]conversation.State
}

func NewBot(token string, engine *conversation.Engine, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Bot{
		API:    api,
		engine: engine,
		log:    log,
		states: make(map[int64]conversation.State),
	}, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.API.GetUpdatesChan(u)

	b.log.Info().Str("bot", b.API.Self.UserName).Msg("polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.API.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, ok := b.buildEvent(update)
	if !ok {
		return
	}

	if update.CallbackQuery != nil {
		// Ack so the button stops spinning, whatever the engine decides.
		if _, err := b.API.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
			b.log.Warn().Err(err).Msg("callback ack failed")
		}
	}

	b.mu.Lock()
	state := b.states[ev.UserID]
	b.mu.Unlock()

	next, replies := b.engine.Handle(ctx, state, ev)

	b.mu.Lock()
	if next == conversation.StateIdle {
		delete(b.states, ev.UserID)
	} else {
		b.states[ev.UserID] = next
	}
	b.mu.Unlock()

	for _, reply := range replies {
		b.send(ev.ChatID, reply)
	}
}

func (b *Bot) buildEvent(update tgbotapi.Update) (conversation.Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		ev := conversation.Event{
			UserID: cb.From.ID,
			Kind:   conversation.EventCallback,
			Data:   cb.Data,
		}
		if cb.Message != nil {
			ev.ChatID = cb.Message.Chat.ID
		} else {
			ev.ChatID = cb.From.ID
		}
		return ev, true

	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		ev := conversation.Event{
			UserID: msg.From.ID,
			ChatID: msg.Chat.ID,
		}
		switch {
		case msg.IsCommand():
			ev.Kind = conversation.EventCommand
			ev.Text = msg.Command()
		case len(msg.Photo) > 0:
			// Variants arrive smallest first; take the last one.
			photo := msg.Photo[len(msg.Photo)-1]
			url, err := b.API.GetFileDirectURL(photo.FileID)
			if err != nil {
				b.log.Error().Err(err).Msg("photo file lookup failed")
				return conversation.Event{}, false
			}
			ev.Kind = conversation.EventPhoto
			ev.PhotoURL = url
		case msg.Text != "":
			ev.Kind = conversation.EventText
			ev.Text = msg.Text
			if len(msg.Entities) > 0 {
				ev.HTML = entitiesToHTML(msg.Text, msg.Entities)
			}
		default:
			return conversation.Event{}, false
		}
		return ev, true
	}
	return conversation.Event{}, false
}

func (b *Bot) send(chatID int64, reply conversation.Reply) {
	markup := keyboard(reply.Buttons)

	if reply.PhotoURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(reply.PhotoURL))
		photo.Caption = reply.Text
		if reply.Markdown {
			photo.ParseMode = tgbotapi.ModeMarkdown
		}
		photo.ReplyMarkup = markup
		_, err := b.API.Send(photo)
		if err == nil {
			return
		}
		b.log.Warn().Err(err).Msg("photo reply failed, falling back to text")
	}

	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	msg.ReplyMarkup = markup
	if _, err := b.API.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat", chatID).Msg("send failed")
	}
}

func keyboard(rows [][]conversation.Button) interface{} {
	if len(rows) == 0 {
		return nil
	}
	var kb [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var btns []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		kb = append(kb, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

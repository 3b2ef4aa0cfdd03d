package telegram

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_ai_relay_bot/internal/logging"
)

// route maps one inbound update onto its handler: contact share, photo,
// /start command, or plain text. Everything else is logged and dropped.
func (c *Client) route(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}

	msg := update.Message
	chatID := msg.Chat.ID
	reply := &botSender{api: c.api}

	switch {
	case msg.Contact != nil:
		c.handlers.HandleContact(ctx, reply, chatID, msg.Contact.PhoneNumber)

	case len(msg.Photo) > 0:
		// Variants arrive smallest first; analyze the highest resolution.
		largest := msg.Photo[len(msg.Photo)-1]
		c.handlers.HandlePhoto(ctx, reply, chatID, largest.FileID)

	case isStartCommand(msg.Text, c.botUsername):
		c.handlers.HandleStart(ctx, reply, chatID, firstName(msg.From), username(msg.From))

	case strings.HasPrefix(strings.TrimSpace(msg.Text), "/"):
		c.logger.WithFields(logging.Fields{
			"event":   "unknown_command",
			"chat_id": chatID,
			"text":    strings.TrimSpace(msg.Text),
		}).Debug("ignoring unknown command")

	case strings.TrimSpace(msg.Text) != "":
		c.handlers.HandleText(ctx, reply, chatID, msg.Text)

	default:
		c.logger.WithFields(logging.Fields{
			"event":   "unsupported_update",
			"chat_id": chatID,
		}).Debug("ignoring unsupported message type")
	}
}

// isStartCommand recognizes /start with an optional payload. A mention-addressed
// form (/start@relay_bot) counts only when it names this bot, so commands meant
// for another bot in the same chat are not hijacked.
func isStartCommand(text, botUsername string) bool {
	command, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, mention, mentioned := strings.Cut(command, "@")
	if name != "/start" {
		return false
	}
	if !mentioned {
		return true
	}

	return botUsername != "" && strings.EqualFold(mention, botUsername)
}

func firstName(user *models.User) string {
	if user == nil {
		return ""
	}
	return user.FirstName
}

func username(user *models.User) string {
	if user == nil {
		return ""
	}
	return user.Username
}

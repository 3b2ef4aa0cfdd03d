// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_ai_relay_bot/internal/config"
	"tg_ai_relay_bot/internal/logging"
)

// telegramAPI captures the subset of bot.Bot behavior the client relies on,
// allowing lightweight stubbing in tests.
type telegramAPI interface {
	Start(ctx context.Context)
	GetMe(ctx context.Context) (*models.User, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
	}

	createBot = func(token string, options ...bot.Option) (telegramAPI, error) {
		return bot.New(token, options...)
	}
)

// Dependencies collects the domain-side collaborators injected into the
// handlers at construction time.
type Dependencies struct {
	Users        userDirectory
	Gate         registrationGate
	Interactions interactionLogger
	Model        inferenceAdapter
}

// Client wraps the Telegram bot instance, the dispatch router, and handlers.
type Client struct {
	api         telegramAPI
	handlers    *Handlers
	logger      *logrus.Entry
	botUsername string
}

// NewClient initializes the Telegram bot with long polling and wires the
// dispatch router to the handlers.
func NewClient(cfg config.Config, deps Dependencies, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if deps.Users == nil || deps.Gate == nil || deps.Interactions == nil || deps.Model == nil {
		return nil, errors.New("all handler dependencies are required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	c := &Client{logger: logger}

	api, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(c.route),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	c.api = api
	c.handlers = NewHandlers(
		deps.Users,
		deps.Gate,
		deps.Interactions,
		deps.Model,
		newPhotoFetcher(api, logger),
		logger,
	)

	return c, nil
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	if me, err := c.api.GetMe(ctx); err != nil {
		c.logger.WithField("event", "telegram_get_me_failed").WithError(err).
			Warn("could not resolve bot username, mention-addressed commands will be ignored")
	} else if me != nil {
		c.botUsername = me.Username
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.api.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// botSender adapts the Telegram API to the replySender contract.
type botSender struct {
	api telegramAPI
}

func (s *botSender) Send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) error {
	_, err := s.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})

	return err
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

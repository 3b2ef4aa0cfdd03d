package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_ai_relay_bot/internal/domain"
	"tg_ai_relay_bot/internal/imaging"
	"tg_ai_relay_bot/internal/logging"
)

// Per-call deadlines for downstream work issued from a handler. A stuck call
// fails that one event instead of hanging the task forever.
const (
	storeTimeout     = 5 * time.Second
	inferenceTimeout = 30 * time.Second
	downloadTimeout  = 20 * time.Second
)

// Handler step stages, attached to logs when a step fails.
const (
	stageDirectory = "directory"
	stageGate      = "gate"
	stageInference = "inference"
	stageDownload  = "download"
	stageDecode    = "decode"
	stageRecord    = "record"
)

// stepError marks which handler step failed so the outer boundary can log the
// stage and pick the user-facing reply without re-raising.
type stepError struct {
	stage string
	err   error
}

func (e *stepError) Error() string { return e.stage + ": " + e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

func failAt(stage string, err error) *stepError {
	return &stepError{stage: stage, err: err}
}

type userDirectory interface {
	GetByChatID(ctx context.Context, chatID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	TouchInteraction(ctx context.Context, chatID int64) error
}

type registrationGate interface {
	IsRegistered(ctx context.Context, chatID int64) (bool, error)
	Complete(ctx context.Context, chatID int64, phoneNumber string) (bool, error)
}

type interactionLogger interface {
	Append(ctx context.Context, interaction domain.Interaction) (domain.Interaction, error)
}

type inferenceAdapter interface {
	GenerateFromText(ctx context.Context, text string) (string, error)
	GenerateFromImage(ctx context.Context, jpeg []byte, prompt string) (string, error)
}

type photoFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

type replySender interface {
	Send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) error
}

// Handlers holds the injected dependencies for the four event handlers. Every
// handler sends exactly one reply per inbound event, success or failure.
type Handlers struct {
	users        userDirectory
	gate         registrationGate
	interactions interactionLogger
	model        inferenceAdapter
	photos       photoFetcher
	logger       *logrus.Entry
}

// NewHandlers constructs the handler set.
func NewHandlers(users userDirectory, gate registrationGate, interactions interactionLogger, model inferenceAdapter, photos photoFetcher, logger *logrus.Entry) *Handlers {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handlers{
		users:        users,
		gate:         gate,
		interactions: interactions,
		model:        model,
		photos:       photos,
		logger:       logger,
	}
}

// HandleStart processes the /start command: creates an unregistered record on
// first contact, otherwise reports registration status.
func (h *Handlers) HandleStart(ctx context.Context, reply replySender, chatID int64, firstName, username string) {
	text, markup, err := h.startReply(ctx, chatID, firstName, username)
	if err != nil {
		h.logFailure(chatID, "start", err)
		text, markup = textServiceUnavailable, nil
	}

	h.send(ctx, reply, chatID, text, markup)
}

func (h *Handlers) startReply(ctx context.Context, chatID int64, firstName, username string) (string, models.ReplyMarkup, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	user, err := h.users.GetByChatID(lookupCtx, chatID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		insertCtx, cancelInsert := context.WithTimeout(ctx, storeTimeout)
		defer cancelInsert()

		if _, err := h.users.Create(insertCtx, domain.User{
			ChatID:    chatID,
			FirstName: firstName,
			Username:  username,
		}); err != nil {
			return "", nil, failAt(stageDirectory, err)
		}

		h.logger.WithFields(logging.Fields{
			"event":   "user_started",
			"chat_id": chatID,
		}).Info("new user started")

		return textWelcomeNew, contactKeyboard(), nil

	case err != nil:
		return "", nil, failAt(stageDirectory, err)

	case user.Registered:
		return textWelcomeBack, removeKeyboard(), nil

	default:
		return textRegistrationNag, contactKeyboard(), nil
	}
}

// HandleContact completes registration with the shared phone number.
func (h *Handlers) HandleContact(ctx context.Context, reply replySender, chatID int64, phoneNumber string) {
	updateCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	matched, err := h.gate.Complete(updateCtx, chatID, phoneNumber)
	if err != nil {
		h.logFailure(chatID, "contact", failAt(stageDirectory, err))
		h.send(ctx, reply, chatID, textRegistrationError, removeKeyboard())
		return
	}

	if !matched {
		h.send(ctx, reply, chatID, textRegistrationMissing, removeKeyboard())
		return
	}

	h.send(ctx, reply, chatID, textRegistrationDone, removeKeyboard())
}

// HandleText relays a plain text message to the model, gated on registration.
func (h *Handlers) HandleText(ctx context.Context, reply replySender, chatID int64, text string) {
	answer, markup, accepted, err := h.textReply(ctx, chatID, text)
	if err != nil {
		h.logFailure(chatID, "text", err)
		answer, markup, accepted = textProcessingError, nil, false
	}

	h.send(ctx, reply, chatID, answer, markup)

	// The reply is already out; a failed telemetry write must not produce a
	// second one.
	if accepted {
		touchCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		if err := h.users.TouchInteraction(touchCtx, chatID); err != nil {
			h.logFailure(chatID, "text", failAt(stageDirectory, err))
		}
	}
}

func (h *Handlers) textReply(ctx context.Context, chatID int64, text string) (string, models.ReplyMarkup, bool, error) {
	gateCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	registered, err := h.gate.IsRegistered(gateCtx, chatID)
	if err != nil {
		return "", nil, false, failAt(stageGate, err)
	}

	if !registered {
		return textGateBlocked, removeKeyboard(), false, nil
	}

	inferCtx, cancelInfer := context.WithTimeout(ctx, inferenceTimeout)
	defer cancelInfer()

	answer, err := h.model.GenerateFromText(inferCtx, text)
	if err != nil {
		return "", nil, false, failAt(stageInference, err)
	}

	return answer, nil, true, nil
}

// HandlePhoto analyzes an inbound image. The photo path is deliberately
// ungated: unregistered users get analyses too.
func (h *Handlers) HandlePhoto(ctx context.Context, reply replySender, chatID int64, fileID string) {
	analysis, err := h.photoReply(ctx, chatID, fileID)
	if err != nil {
		h.logFailure(chatID, "photo", err)
		h.send(ctx, reply, chatID, textImageError, nil)
		return
	}

	h.send(ctx, reply, chatID, analysis, nil)

	h.logger.WithFields(logging.Fields{
		"event":   "image_processed",
		"chat_id": chatID,
		"file_id": fileID,
	}).Info("image processed")
}

func (h *Handlers) photoReply(ctx context.Context, chatID int64, fileID string) (string, error) {
	downloadCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	data, err := h.photos.Fetch(downloadCtx, fileID)
	if err != nil {
		return "", failAt(stageDownload, err)
	}

	normalized, err := imaging.Normalize(data)
	if err != nil {
		return "", failAt(stageDecode, err)
	}

	inferCtx, cancelInfer := context.WithTimeout(ctx, inferenceTimeout)
	defer cancelInfer()

	analysis, err := h.model.GenerateFromImage(inferCtx, normalized, imageAnalysisPrompt)
	if err != nil {
		return "", failAt(stageInference, err)
	}

	recordCtx, cancelRecord := context.WithTimeout(ctx, storeTimeout)
	defer cancelRecord()

	if _, err := h.interactions.Append(recordCtx, domain.Interaction{
		UserID:   chatID,
		FileID:   fileID,
		Analysis: analysis,
	}); err != nil {
		return "", failAt(stageRecord, err)
	}

	return analysis, nil
}

func (h *Handlers) send(ctx context.Context, reply replySender, chatID int64, text string, markup models.ReplyMarkup) {
	if reply == nil {
		h.logger.WithFields(logging.Fields{
			"event":   "reply_sender_missing",
			"chat_id": chatID,
		}).Error("no reply sender configured")
		return
	}

	if err := reply.Send(ctx, chatID, text, markup); err != nil {
		h.logger.WithFields(logging.Fields{
			"event":   "reply_failed",
			"chat_id": chatID,
		}).WithError(err).Error("failed to send reply")
	}
}

func (h *Handlers) logFailure(chatID int64, handler string, err error) {
	fields := logging.Fields{
		"event":   "handler_error",
		"chat_id": chatID,
		"handler": handler,
	}

	var step *stepError
	if errors.As(err, &step) {
		fields["stage"] = step.stage
	}

	h.logger.WithFields(fields).WithError(err).Error("handler failed")
}

func contactKeyboard() models.ReplyMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: shareContactButton, RequestContact: true}},
		},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func removeKeyboard() models.ReplyMarkup {
	return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_ai_relay_bot/internal/logging"
)

// Telegram bounds photos well below this; the cap guards against a
// misbehaving file server, not legitimate payloads.
const maxPhotoBytes = 20 << 20

type fileAPI interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// PhotoFetcher resolves a Telegram file id to the raw image bytes.
type PhotoFetcher struct {
	api      fileAPI
	client   *http.Client
	logger   *logrus.Entry
	maxBytes int64
}

func newPhotoFetcher(api fileAPI, logger *logrus.Entry) *PhotoFetcher {
	if logger == nil {
		logger = logging.Logger()
	}

	return &PhotoFetcher{
		api:      api,
		client:   &http.Client{Timeout: downloadTimeout},
		logger:   logger,
		maxBytes: maxPhotoBytes,
	}
}

// Fetch resolves the file id to a download link and retrieves the payload.
func (f *PhotoFetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	if f == nil || f.api == nil {
		return nil, errors.New("photo fetcher is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if fileID == "" {
		return nil, errors.New("file id is required")
	}

	file, err := f.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("resolve file %s: %w", fileID, err)
	}

	link := f.api.FileDownloadLink(file)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file %s: unexpected status %d", fileID, resp.StatusCode)
	}

	// Read one byte past the cap so an oversized payload is reported as
	// such instead of surfacing later as a truncated-image decode error.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}

	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("download file %s: payload exceeds %d bytes", fileID, f.maxBytes)
	}

	f.logger.WithFields(logging.Fields{
		"event":   "photo_downloaded",
		"file_id": fileID,
		"bytes":   len(data),
	}).Debug("downloaded photo")

	return data, nil
}

package handlers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/clickstream-go/internal/urldir"
	"go.uber.org/zap"
)

// URLHandler creates short URL records for the directory.
type URLHandler struct {
	urls    urldir.Directory
	baseURL string
	logger  *zap.Logger
}

// NewURLHandler creates a URL handler.
func NewURLHandler(urls urldir.Directory, baseURL string, logger *zap.Logger) *URLHandler {
	return &URLHandler{urls: urls, baseURL: baseURL, logger: logger}
}

// CreateShortURL registers a new short URL.
func (h *URLHandler) CreateShortURL(ctx context.Context, req *CreateShortURLRequest) (*CreateShortURLResponse, error) {
	parsed, err := url.Parse(req.Body.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, huma.Error422UnprocessableEntity("url must be absolute with a scheme and host")
	}

	record, err := h.urls.Create(ctx, req.Body.URL, req.Body.OwnerID, req.Body.ExpiresAt)
	if err != nil {
		h.logger.Error("failed to create short url", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to create short url")
	}

	shortURL := fmt.Sprintf("%s/%s", h.baseURL, record.ShortCode)

	resp := &CreateShortURLResponse{}
	resp.Headers.Location = shortURL
	resp.Body.ID = record.ID
	resp.Body.Code = record.ShortCode
	resp.Body.ShortURL = shortURL
	resp.Body.OriginalURL = record.OriginalURL

	return resp, nil
}

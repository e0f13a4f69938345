package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"loopforge/internal/services"
)

const (
	defaultBaseURL    = "https://www.googleapis.com"
	uploadPath        = "/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status"
	defaultChunkMiB   = 8
	uploadContentType = "video/mp4"
)

// Metadata describes the video being published.
type Metadata struct {
	Title         string
	Description   string
	Tags          []string
	CategoryID    string
	PrivacyStatus string
}

// Uploader defines the behaviour the upload worker needs.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta Metadata, onProgress func(fraction float64)) (string, error)
}

// Client speaks the resumable upload protocol.
type Client struct {
	auth      TokenSource
	http      *http.Client
	baseURL   string
	chunkSize int64
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (for tests).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// New constructs an upload client. chunkSizeMiB bounds how much video is sent
// per request; values below 1 fall back to the default.
func New(auth TokenSource, chunkSizeMiB int, opts ...Option) (*Client, error) {
	if auth == nil {
		return nil, errors.New("token source required")
	}
	if chunkSizeMiB < 1 {
		chunkSizeMiB = defaultChunkMiB
	}
	client := &Client{
		auth:      auth,
		http:      &http.Client{Timeout: 10 * time.Minute},
		baseURL:   defaultBaseURL,
		chunkSize: int64(chunkSizeMiB) * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Upload publishes the file and returns the assigned video identifier.
// onProgress receives the fraction of bytes accepted so far, in [0,1].
func (c *Client) Upload(ctx context.Context, filePath string, meta Metadata, onProgress func(fraction float64)) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "upload", "open", "open rendered artifact", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	total := info.Size()
	if total == 0 {
		return "", services.Wrap(services.ErrValidation, "upload", "open", "rendered artifact is empty", nil)
	}

	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	session, err := c.startSession(ctx, token, meta, total)
	if err != nil {
		return "", err
	}

	var offset int64
	for offset < total {
		end := offset + c.chunkSize
		if end > total {
			end = total
		}
		chunk := make([]byte, end-offset)
		if _, err := io.ReadFull(file, chunk); err != nil {
			return "", fmt.Errorf("read chunk at %d: %w", offset, err)
		}

		videoID, next, err := c.sendChunk(ctx, session, token, chunk, offset, total)
		if err != nil {
			return "", err
		}
		if videoID != "" {
			if onProgress != nil {
				onProgress(1)
			}
			return videoID, nil
		}

		if next <= offset {
			return "", services.Wrap(services.ErrUploadTransport, "upload", "chunk",
				fmt.Sprintf("server did not advance past offset %d", offset), nil)
		}
		if next != end {
			// The server accepted a partial chunk; rewind the file to where
			// it wants the next byte from.
			if _, err := file.Seek(next, io.SeekStart); err != nil {
				return "", fmt.Errorf("seek to %d: %w", next, err)
			}
		}
		offset = next
		if onProgress != nil {
			onProgress(float64(offset) / float64(total))
		}
	}

	return "", services.Wrap(services.ErrUploadTransport, "upload", "finalize", "all bytes sent but no video id returned", nil)
}

// startSession requests a resumable session URI for the upload.
func (c *Client) startSession(ctx context.Context, token string, meta Metadata, totalBytes int64) (string, error) {
	body := map[string]any{
		"snippet": map[string]any{
			"title":       meta.Title,
			"description": meta.Description,
			"tags":        meta.Tags,
			"categoryId":  meta.CategoryID,
		},
		"status": map[string]any{
			"privacyStatus":           meta.PrivacyStatus,
			"selfDeclaredMadeForKids": false,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", uploadContentType)
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(totalBytes, 10))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUploadTransport, "upload", "session", "start resumable session", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.apiError("session", resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", services.Wrap(services.ErrUploadTransport, "upload", "session", "no session URI in response", nil)
	}
	return location, nil
}

// sendChunk uploads one byte range. It returns the video id once the server
// finalizes the upload, otherwise the next offset the server expects.
func (c *Client) sendChunk(ctx context.Context, session, token string, chunk []byte, offset, total int64) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, bytes.NewReader(chunk))
	if err != nil {
		return "", 0, fmt.Errorf("build chunk request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", uploadContentType)
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, total))
	req.ContentLength = int64(len(chunk))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, services.Wrap(services.ErrUploadTransport, "upload", "chunk",
			fmt.Sprintf("send bytes %d-%d", offset, offset+int64(len(chunk))-1), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return "", 0, fmt.Errorf("decode upload response: %w", err)
		}
		if payload.ID == "" {
			return "", 0, services.Wrap(services.ErrUploadTransport, "upload", "finalize", "upload response has no video id", nil)
		}
		return payload.ID, 0, nil
	case 308: // Resume Incomplete
		next := offset + int64(len(chunk))
		if accepted, ok := parseRangeEnd(resp.Header.Get("Range")); ok {
			next = accepted + 1
		}
		return "", next, nil
	default:
		return "", 0, c.apiError("chunk", resp)
	}
}

func (c *Client) apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	marker := services.ErrUploadTransport
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		marker = services.ErrAuthUnavailable
	}
	return services.Wrap(marker, "upload", op,
		fmt.Sprintf("api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
}

// parseRangeEnd extracts the last accepted byte from a "bytes=0-N" header.
func parseRangeEnd(header string) (int64, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	header = strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(header, "-", 2)
	if len(parts) != 2 {
		return 0, false
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return end, true
}

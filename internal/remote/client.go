package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lecture-companion/internal/domain"
)

// ErrNotFound is returned when the server does not know the task id.
var ErrNotFound = errors.New("task not found")

// TransientError marks a retryable transport or server-side failure. It must
// never be conflated with a job-level failure: the caller retries and the
// lifecycle phase stays untouched.
type TransientError struct {
	Op  string
	Err error
}

// Error formats the failed operation and its cause.
func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable service hiccup.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// Client talks to the lecture processing server over HTTP+JSON. The server is
// a black box; only the narrow task contract below is assumed.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     *zap.Logger
}

// NewClient creates a client for the given server base URL.
func NewClient(baseURL string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// GetStatus fetches one task status snapshot and validates it against the
// status contract.
func (c *Client) GetStatus(ctx context.Context, taskID string) (domain.TaskStatus, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/tasks/%s/status", taskID), taskID)
	if err != nil {
		return domain.TaskStatus{}, err
	}

	status, err := domain.ParseTaskStatus(body)
	if err != nil {
		return domain.TaskStatus{}, err
	}
	return status, nil
}

// GetResult fetches the synthesized notes for a completed task.
func (c *Client) GetResult(ctx context.Context, taskID string) (domain.Result, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/tasks/%s/result", taskID), taskID)
	if err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return domain.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}

// RequestSummary asks the server to (re)generate the summary for a task.
// Fire-and-forget: the outcome arrives through subsequent status polls.
func (c *Client) RequestSummary(ctx context.Context, taskID string) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%s/summary", taskID), "", nil, taskID)
	return err
}

// createdTask is the server response for both upload and import.
type createdTask struct {
	TaskID string `json:"taskId"`
}

// Upload streams a lecture video to the server and returns the new task id.
func (c *Client) Upload(ctx context.Context, filePath, channelName string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open lecture file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read lecture file: %w", err)
	}
	if channelName != "" {
		if err := writer.WriteField("channelName", channelName); err != nil {
			return "", fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/tasks", writer.FormDataContentType(), &buf, "")
	if err != nil {
		return "", err
	}

	var created createdTask
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if created.TaskID == "" {
		return "", fmt.Errorf("upload response missing taskId")
	}
	return created.TaskID, nil
}

// ImportURL asks the server to ingest a lecture from a public video URL.
func (c *Client) ImportURL(ctx context.Context, videoURL, channelName string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"url":         videoURL,
		"channelName": channelName,
	})
	if err != nil {
		return "", fmt.Errorf("encode import request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/tasks/import", "application/json", bytes.NewReader(payload), "")
	if err != nil {
		return "", err
	}

	var created createdTask
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode import response: %w", err)
	}
	if created.TaskID == "" {
		return "", fmt.Errorf("import response missing taskId")
	}
	return created.TaskID, nil
}

// get issues a GET and returns the response body.
func (c *Client) get(ctx context.Context, path, taskID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, "", nil, taskID)
}

// do issues one request and maps transport and server failures onto the
// client error taxonomy: network errors and 5xx responses are transient,
// 404 means the task id is unknown.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, taskID string) ([]byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransientError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: method + " " + path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if taskID != "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 500:
		return nil, &TransientError{
			Op:  method + " " + path,
			Err: fmt.Errorf("server returned %d", resp.StatusCode),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.log.Warn("unexpected server response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	return data, nil
}

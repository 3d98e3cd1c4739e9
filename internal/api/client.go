// Package api is the HTTP client for the lab server's REST surface. The
// viewer core uses it to fetch models and assets and to persist
// annotations authored in the viewer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openanatomy/lab/internal/model"
)

// Client handles communication with a lab server.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// New creates an API client for the server at baseURL. Credentials may be
// empty when the server runs without auth.
func New(baseURL, username, password string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the lab server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("building healthcheck request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// GetModel fetches a model's metadata.
func (c *Client) GetModel(ctx context.Context, id string) (*model.Model, error) {
	var m model.Model
	if err := c.do(ctx, http.MethodGet, "/api/models/"+id, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListModels fetches all models, newest first.
func (c *Client) ListModels(ctx context.Context) ([]model.Model, error) {
	var models []model.Model
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// FetchAsset downloads the binary asset behind a model's asset URL.
func (c *Client) FetchAsset(ctx context.Context, assetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building asset request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asset request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset %s returned status %d", assetURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading asset body: %w", err)
	}
	return data, nil
}

// ListLabels fetches the labels of a model, oldest first.
func (c *Client) ListLabels(ctx context.Context, modelID string) ([]model.Label, error) {
	var labels []model.Label
	if err := c.do(ctx, http.MethodGet, "/api/models/"+modelID+"/labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// CreateLabel persists a new label and returns the stored record.
func (c *Client) CreateLabel(ctx context.Context, l *model.Label) (*model.Label, error) {
	var created model.Label
	if err := c.do(ctx, http.MethodPost, "/api/models/"+l.ModelID+"/labels", l, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteLabel removes a label. Deleting an already-removed label succeeds.
func (c *Client) DeleteLabel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/labels/"+id, nil, nil)
}

// ListQuestions fetches the questions of a model, oldest first.
func (c *Client) ListQuestions(ctx context.Context, modelID string) ([]model.Question, error) {
	var questions []model.Question
	if err := c.do(ctx, http.MethodGet, "/api/models/"+modelID+"/questions", nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// CreateQuestion persists a new question and returns the stored record.
func (c *Client) CreateQuestion(ctx context.Context, q *model.Question) (*model.Question, error) {
	var created model.Question
	if err := c.do(ctx, http.MethodPost, "/api/models/"+q.ModelID+"/questions", q, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateQuestion replaces a question's content and returns the stored record.
func (c *Client) UpdateQuestion(ctx context.Context, q *model.Question) (*model.Question, error) {
	var updated model.Question
	if err := c.do(ctx, http.MethodPut, "/api/questions/"+q.ID, q, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteQuestion removes a question. Deleting an already-removed question
// succeeds.
func (c *Client) DeleteQuestion(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/questions/"+id, nil, nil)
}

// do performs a JSON round trip. A non-nil body is encoded as the request
// payload; a non-nil out receives the decoded response.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		payload = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

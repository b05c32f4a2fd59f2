// Package client is the HTTP client hawkctl uses to talk to the hunt engine.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// LaunchResponse is returned by the async campaign and regeneration endpoints.
type LaunchResponse struct {
	TaskID   string `json:"task_id"`
	Campaign string `json:"campaign,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.client.Do(req)
}

func (c *Client) do(method, path string, body, out interface{}) error {
	resp, err := c.doRequest(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// RunCampaign launches the daily campaign. A zero date runs today's campaign.
func (c *Client) RunCampaign(date string) (*LaunchResponse, error) {
	var body interface{}
	if date != "" {
		body = map[string]string{"date": date}
	}
	var resp LaunchResponse
	if err := c.do(http.MethodPost, "/api/v1/campaigns/run", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Regenerate(analyticID int64) (*LaunchResponse, error) {
	var resp LaunchResponse
	err := c.do(http.MethodPost, fmt.Sprintf("/api/v1/analytics/%d/regenerate", analyticID), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateAnalytic(a *models.Analytic) (*models.Analytic, error) {
	var created models.Analytic
	if err := c.do(http.MethodPost, "/api/v1/analytics", a, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) GetAnalytic(id int64) (*models.Analytic, error) {
	var a models.Analytic
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/v1/analytics/%d", id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) UpdateQuery(id int64, query string) (*models.Analytic, error) {
	var a models.Analytic
	err := c.do(http.MethodPut, fmt.Sprintf("/api/v1/analytics/%d/query", id),
		map[string]string{"query": query}, &a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) TransitionAnalytic(id int64, status string) (*models.Analytic, error) {
	var a models.Analytic
	err := c.do(http.MethodPut, fmt.Sprintf("/api/v1/analytics/%d/status", id),
		map[string]string{"status": status}, &a)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) ListTasks() ([]models.TaskStatus, error) {
	var resp struct {
		Data []models.TaskStatus `json:"data"`
	}
	if err := c.do(http.MethodGet, "/api/v1/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) GetTask(taskID string) (*models.TaskStatus, error) {
	var ts models.TaskStatus
	if err := c.do(http.MethodGet, "/api/v1/tasks/"+taskID, nil, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

func (c *Client) CancelTask(taskID string) error {
	return c.do(http.MethodDelete, "/api/v1/tasks/"+taskID, nil, nil)
}

func (c *Client) Purge() error {
	return c.do(http.MethodPost, "/api/v1/purge", nil, nil)
}

package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Client reports progress and outcomes to the requesting tier's
// callback endpoint. Requests carry a short-lived HS256 token so the
// receiver can verify they came from the worker. An empty URL disables
// delivery entirely (useful when the front end only polls).
type Client struct {
	url        string
	secret     []byte
	httpClient *http.Client
}

func NewClient(url, secret string) *Client {
	return &Client{
		url:    url,
		secret: []byte(secret),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type progressPayload struct {
	JobID     string `json:"jobId"`
	Stage     int    `json:"stage"`
	StageName string `json:"stageName"`
	Message   string `json:"message,omitempty"`
}

type completedPayload struct {
	JobID           string `json:"jobId"`
	ResultReference string `json:"resultReference"`
}

type failedPayload struct {
	JobID        string `json:"jobId"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) Progress(ctx context.Context, jobID uuid.UUID, stage int, stageName, message string) error {
	return c.post(ctx, "/progress", progressPayload{
		JobID:     jobID.String(),
		Stage:     stage,
		StageName: stageName,
		Message:   message,
	})
}

func (c *Client) Completed(ctx context.Context, jobID uuid.UUID, resultRef string) error {
	return c.post(ctx, "/completed", completedPayload{
		JobID:           jobID.String(),
		ResultReference: resultRef,
	})
}

// Failed reports a failure with the given user-facing message. Callers
// must pass a generic message, never internal error detail.
func (c *Client) Failed(ctx context.Context, jobID uuid.UUID, message string) error {
	return c.post(ctx, "/failed", failedPayload{
		JobID:        jobID.String(),
		ErrorMessage: message,
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c.url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("callback: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("callback: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.signToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) signToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
		"aud": "mealplan-callback",
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("callback: sign token: %w", err)
	}
	return signed, nil
}

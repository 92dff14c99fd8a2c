package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alertrelay/internal/logger"
	"alertrelay/pkg/models"
)

// ErrRejected is wrapped by every error caused by a backend refusal, as
// opposed to a transport failure.
var ErrRejected = errors.New("backend rejected request")

// DefaultUserAgent mimics the Android WebView the backend expects.
const DefaultUserAgent = "Mozilla/5.0 (Linux; Android 11; Xiaomi 2107113SI) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/101.0.4951.64 Mobile Safari/537.36"

// Config configures the backend client.
type Config struct {
	APIHost    string
	AppID      string
	SDKVersion int
	Platform   string
	UserAgent  string
	Timeout    time.Duration
}

// Client calls the push backend's device API.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a backend client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIHost == "" {
		return nil, fmt.Errorf("backend api host is empty")
	}
	if cfg.AppID == "" {
		return nil, fmt.Errorf("backend app id is empty")
	}
	cfg.APIHost = strings.TrimRight(cfg.APIHost, "/")
	if cfg.Platform == "" {
		cfg.Platform = "android"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type registerRequest struct {
	AndroidID string          `json:"androidId"`
	// App is always sent as an explicit "app": null; the backend rejects
	// registrations that omit the key.
	App      json.RawMessage `json:"app"`
	AppID    string          `json:"appId"`
	Platform string          `json:"platform"`
	SDK      int             `json:"sdk"`
}

type authRequest struct {
	AndroidID string `json:"androidId"`
	AppID     string `json:"appId"`
	Auth      string `json:"auth"`
	SDK       int    `json:"sdk"`
	Token     string `json:"token"`
}

type topicsRequest struct {
	Token  string   `json:"token"`
	Auth   string   `json:"auth"`
	Topics []string `json:"topics"`
}

type response struct {
	Success *bool  `json:"success"`
	Token   string `json:"token"`
	Auth    string `json:"auth"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Register obtains a new credential for the device.
func (c *Client) Register(ctx context.Context, id models.DeviceIdentity) (models.Credential, error) {
	body, err := c.post(ctx, "/register", registerRequest{
		AndroidID: id.AndroidID,
		AppID:     c.cfg.AppID,
		Platform:  c.cfg.Platform,
		SDK:       c.cfg.SDKVersion,
	})
	if err != nil {
		return models.Credential{}, err
	}
	cred := models.Credential{Token: body.Token, Auth: body.Auth}
	if !cred.Valid() {
		return models.Credential{}, fmt.Errorf("%w: register response missing token or auth", ErrRejected)
	}
	return cred, nil
}

// AuthenticateDevice binds a freshly issued credential to the device id.
func (c *Client) AuthenticateDevice(ctx context.Context, id models.DeviceIdentity, cred models.Credential) error {
	return c.action(ctx, "/devices/auth", authRequest{
		AndroidID: id.AndroidID,
		AppID:     c.cfg.AppID,
		Auth:      cred.Auth,
		SDK:       c.cfg.SDKVersion,
		Token:     cred.Token,
	})
}

// Subscribe adds topics to the device's subscriptions.
func (c *Client) Subscribe(ctx context.Context, cred models.Credential, topics []string) error {
	return c.action(ctx, "/devices/subscribe", topicsRequest{Token: cred.Token, Auth: cred.Auth, Topics: topics})
}

// Unsubscribe removes topics from the device's subscriptions.
func (c *Client) Unsubscribe(ctx context.Context, cred models.Credential, topics []string) error {
	return c.action(ctx, "/devices/unsubscribe", topicsRequest{Token: cred.Token, Auth: cred.Auth, Topics: topics})
}

// action posts a device call that must answer {"success": true}.
func (c *Client) action(ctx context.Context, path string, payload interface{}) error {
	body, err := c.post(ctx, path, payload)
	if err != nil {
		return err
	}
	if body.Success == nil || !*body.Success {
		return fmt.Errorf("%w: %s did not report success", ErrRejected, path)
	}
	return nil
}

// post sends payload as JSON. A 2xx status is success, and so is a non-2xx
// status whose body carries "success": true.
func (c *Client) post(ctx context.Context, path string, payload interface{}) (*response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIHost+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", path, err)
	}

	var body response
	decoded := json.Unmarshal(raw, &body) == nil

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return &body, nil
	}
	if decoded && body.Success != nil && *body.Success {
		logger.Debugf("%s answered HTTP %d with success=true, accepting", path, resp.StatusCode)
		return &body, nil
	}
	if decoded {
		msg := body.Error
		if msg == "" {
			msg = body.Message
		}
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, fmt.Errorf("%w: %s: %s (HTTP %d)", ErrRejected, body.Code, msg, resp.StatusCode)
	}
	return nil, fmt.Errorf("%w: %s (HTTP %d)", ErrRejected, strings.TrimSpace(string(raw)), resp.StatusCode)
}

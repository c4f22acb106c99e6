package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 10 * time.Second

	validateTokenPath = "/oauth2/validate"
	channelInfoPath   = "/helix/channels"
	streamTagsPath    = "/helix/streams/tags"
)

var (
	// ErrUnauthorized indicates the platform or auth service rejected the token.
	ErrUnauthorized = errors.New("platform: unauthorized")
	// ErrNotFound covers every other non-2xx platform response. The taxonomy is
	// deliberately coarse; refine it in statusToError if call sites ever need more.
	ErrNotFound = errors.New("platform: not found")

	errMissingAuthURL  = errors.New("auth url is required")
	errMissingAPIURL   = errors.New("platform api url is required")
	errMissingClientID = errors.New("platform client id is required")
)

// Profile is the auth-service identity that owns favourites.
type Profile struct {
	ID int `json:"id"`
}

// Identity is the caller identity resolved from the platform token, valid for
// the lifetime of one request.
type Identity struct {
	UserID      string
	Login       string
	ClientID    string
	BearerToken string
}

// ChannelState is the remote channel snapshot fetched fresh on every
// activation; it is never cached.
type ChannelState struct {
	BroadcasterID   string `json:"broadcaster_id"`
	BroadcasterName string `json:"broadcaster_name"`
	Language        string `json:"broadcaster_language"`
	GameID          string `json:"game_id"`
	GameName        string `json:"game_name"`
}

// ChannelUpdate carries the fields pushed to the live channel.
type ChannelUpdate struct {
	Title    string `json:"title"`
	Language string `json:"broadcaster_language,omitempty"`
	GameID   string `json:"game_id,omitempty"`
}

// ClientConfig bundles configuration required to instantiate a Client.
type ClientConfig struct {
	AuthURL        string
	APIBaseURL     string
	AuthBaseURL    string
	ClientID       string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Client issues the four external operations against the auth service and the
// streaming platform. It holds no per-request state; the caller's token is a
// parameter on every call.
type Client struct {
	authURL     string
	apiBaseURL  string
	authBaseURL string
	clientID    string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient constructs a platform client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	authURL := strings.TrimSpace(cfg.AuthURL)
	if authURL == "" {
		return nil, fmt.Errorf("platform: %w", errMissingAuthURL)
	}
	apiBaseURL := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if apiBaseURL == "" {
		return nil, fmt.Errorf("platform: %w", errMissingAPIURL)
	}
	authBaseURL := strings.TrimRight(strings.TrimSpace(cfg.AuthBaseURL), "/")
	if authBaseURL == "" {
		authBaseURL = apiBaseURL
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, fmt.Errorf("platform: %w", errMissingClientID)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		authURL:     authURL,
		apiBaseURL:  apiBaseURL,
		authBaseURL: authBaseURL,
		clientID:    clientID,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// GetProfile resolves the auth-service profile for the raw bearer header value.
// Any non-200 response from the auth service means the token is not usable.
func (c *Client) GetProfile(ctx context.Context, token string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("token", token)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		c.logger.Debug("profile lookup rejected", zap.Int("status", response.StatusCode))
		return Profile{}, ErrUnauthorized
	}

	var profile Profile
	if err := json.NewDecoder(response.Body).Decode(&profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

type validateTokenResponse struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	Scopes    []string `json:"scopes"`
	UserID    string   `json:"user_id"`
	ExpiresIn int      `json:"expires_in"`
}

// ResolveIdentity validates the inbound token against the platform and returns
// the caller identity. The validate endpoint expects the OAuth scheme, so the
// inbound Bearer value is rewritten before sending.
func (c *Client) ResolveIdentity(ctx context.Context, token string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authBaseURL+validateTokenPath, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", strings.Replace(token, "Bearer ", "OAuth ", 1))

	response, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer response.Body.Close()

	if err := statusToError(response.StatusCode); err != nil {
		c.logger.Debug("token validation rejected", zap.Int("status", response.StatusCode))
		return Identity{}, err
	}

	var validated validateTokenResponse
	if err := json.NewDecoder(response.Body).Decode(&validated); err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID:      validated.UserID,
		Login:       validated.Login,
		ClientID:    validated.ClientID,
		BearerToken: token,
	}, nil
}

type channelInfoResponse struct {
	Data []ChannelState `json:"data"`
}

// GetChannel fetches the current remote channel state for the broadcaster.
func (c *Client) GetChannel(ctx context.Context, identity Identity, broadcasterID string) (ChannelState, error) {
	target := fmt.Sprintf("%s%s?broadcaster_id=%s", c.apiBaseURL, channelInfoPath, broadcasterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ChannelState{}, err
	}
	c.setAPIHeaders(req, identity)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return ChannelState{}, err
	}
	defer response.Body.Close()

	if err := statusToError(response.StatusCode); err != nil {
		c.logger.Debug("channel lookup rejected",
			zap.String("broadcaster_id", broadcasterID),
			zap.Int("status", response.StatusCode))
		return ChannelState{}, err
	}

	var payload channelInfoResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return ChannelState{}, err
	}
	if len(payload.Data) == 0 {
		return ChannelState{}, ErrNotFound
	}
	return payload.Data[0], nil
}

// ModifyChannel pushes a channel-info update for the broadcaster.
func (c *Client) ModifyChannel(ctx context.Context, identity Identity, broadcasterID string, update ChannelUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}

	target := fmt.Sprintf("%s%s?broadcaster_id=%s", c.apiBaseURL, channelInfoPath, broadcasterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setAPIHeaders(req, identity)
	req.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if err := statusToError(response.StatusCode); err != nil {
		c.logger.Debug("channel modify rejected",
			zap.String("broadcaster_id", broadcasterID),
			zap.Int("status", response.StatusCode))
		return err
	}
	return nil
}

type replaceTagsRequest struct {
	TagIDs []string `json:"tag_ids"`
}

// ReplaceTags replaces the broadcaster's stream tags. An empty list is a valid
// call meaning "clear all tags" and must serialize as an empty array.
func (c *Client) ReplaceTags(ctx context.Context, identity Identity, broadcasterID string, tagIDs []string) error {
	if tagIDs == nil {
		tagIDs = []string{}
	}
	body, err := json.Marshal(replaceTagsRequest{TagIDs: tagIDs})
	if err != nil {
		return err
	}

	target := fmt.Sprintf("%s%s?broadcaster_id=%s", c.apiBaseURL, streamTagsPath, broadcasterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setAPIHeaders(req, identity)
	req.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if err := statusToError(response.StatusCode); err != nil {
		c.logger.Debug("tag replace rejected",
			zap.String("broadcaster_id", broadcasterID),
			zap.Int("status", response.StatusCode))
		return err
	}
	return nil
}

func (c *Client) setAPIHeaders(req *http.Request, identity Identity) {
	req.Header.Set("Authorization", identity.BearerToken)
	req.Header.Set("Client-Id", c.clientID)
}

// statusToError is the single place platform responses map onto the error
// taxonomy: 2xx passes, 401 is unauthorized, everything else is not-found.
func statusToError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return ErrNotFound
	}
}

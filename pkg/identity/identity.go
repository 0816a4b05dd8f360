// Package identity verifies end-user ID tokens against Firebase
// Authentication.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
)

const (
	DefaultBaseURL = "https://identitytoolkit.googleapis.com/v1"
	defaultTimeout = 10 * time.Second
	provider       = "firebase"
)

var (
	ErrInvalidToken  = errors.New("invalid identity token")
	ErrNotConfigured = errors.New("identity verification is not configured")
)

// Identity is the verified account behind a token.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	DisplayName   string `json:"display_name,omitempty"`
	PhotoURL      string `json:"photo_url,omitempty"`
	Disabled      bool   `json:"disabled"`
}

type Gate interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Firebase checks tokens through the Identity Toolkit accounts:lookup
// endpoint, which rejects expired, revoked and forged tokens.
type Firebase struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewFirebase(apiKey string, opts Options) *Firebase {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Firebase{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
}

type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
		DisplayName   string `json:"displayName"`
		PhotoURL      string `json:"photoUrl"`
		Disabled      bool   `json:"disabled"`
	} `json:"users"`
}

func (f *Firebase) Verify(ctx context.Context, token string) (Identity, error) {
	if f.apiKey == "" {
		return Identity{}, ErrNotConfigured
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	body, err := json.Marshal(map[string]string{"idToken": token})
	if err != nil {
		return Identity{}, err
	}

	endpoint := f.baseURL + "/accounts:lookup?key=" + url.QueryEscape(f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Identity{}, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return Identity{}, upstream.TransportError(provider, "lookup", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Identity{}, upstream.TransportError(provider, "lookup", err)
	}

	if resp.StatusCode == http.StatusBadRequest {
		return Identity{}, fmt.Errorf("%w: %s", ErrInvalidToken, upstream.ReasonFromBody(raw))
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.WarnContext(ctx, "identity lookup failed", "status", resp.StatusCode)

		return Identity{}, upstream.StatusError(provider, "lookup", resp.StatusCode, raw)
	}

	var decoded lookupResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Identity{}, &upstream.Error{Provider: provider, Op: "lookup", Reason: "malformed response body", Err: err}
	}

	if len(decoded.Users) == 0 {
		return Identity{}, fmt.Errorf("%w: no account for token", ErrInvalidToken)
	}

	user := decoded.Users[0]
	if user.Disabled {
		return Identity{}, fmt.Errorf("%w: account is disabled", ErrInvalidToken)
	}

	return Identity{
		UID:           user.LocalID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		DisplayName:   user.DisplayName,
		PhotoURL:      user.PhotoURL,
	}, nil
}

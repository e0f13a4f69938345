package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"loopforge/internal/services"
)

const defaultTokenURL = "https://oauth2.googleapis.com/token"

// expirySlack refreshes tokens slightly early so a chunk upload does not
// start with a token about to lapse.
const expirySlack = time.Minute

// TokenSource yields a usable bearer token for API calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type clientSecrets struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Authenticator loads OAuth credentials from disk and refreshes access
// tokens against Google's token endpoint when they expire.
type Authenticator struct {
	secretsPath string
	tokenPath   string
	tokenURL    string
	client      *http.Client
	now         func() time.Time
}

// AuthOption configures the authenticator.
type AuthOption func(*Authenticator)

// WithTokenURL overrides the OAuth token endpoint (for tests).
func WithTokenURL(url string) AuthOption {
	return func(a *Authenticator) {
		if url != "" {
			a.tokenURL = url
		}
	}
}

// WithAuthHTTPClient overrides the HTTP client used for token refresh.
func WithAuthHTTPClient(client *http.Client) AuthOption {
	return func(a *Authenticator) {
		if client != nil {
			a.client = client
		}
	}
}

// NewAuthenticator builds an authenticator over the given credential files.
func NewAuthenticator(secretsPath, tokenPath string, opts ...AuthOption) *Authenticator {
	auth := &Authenticator{
		secretsPath: strings.TrimSpace(secretsPath),
		tokenPath:   strings.TrimSpace(tokenPath),
		tokenURL:    defaultTokenURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(auth)
	}
	return auth
}

// AccessToken returns a live bearer token, refreshing and re-persisting the
// token file when the stored one has expired.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	token, err := a.loadToken()
	if err != nil {
		return "", err
	}
	if token.AccessToken != "" && (token.Expiry.IsZero() || a.now().Add(expirySlack).Before(token.Expiry)) {
		return token.AccessToken, nil
	}
	if token.RefreshToken == "" {
		return "", services.Wrap(services.ErrAuthUnavailable, "upload", "auth", "token expired and no refresh token present", nil)
	}
	refreshed, err := a.refresh(ctx, token)
	if err != nil {
		return "", err
	}
	if err := a.saveToken(refreshed); err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

func (a *Authenticator) loadToken() (storedToken, error) {
	var token storedToken
	raw, err := os.ReadFile(a.tokenPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return token, services.Wrap(services.ErrAuthUnavailable, "upload", "auth",
				fmt.Sprintf("token file %s not found; authorize the channel first", a.tokenPath), nil)
		}
		return token, services.Wrap(services.ErrAuthUnavailable, "upload", "auth", "read token file", err)
	}
	if err := json.Unmarshal(raw, &token); err != nil {
		return token, services.Wrap(services.ErrAuthUnavailable, "upload", "auth", "parse token file", err)
	}
	return token, nil
}

func (a *Authenticator) saveToken(token storedToken) error {
	raw, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(a.tokenPath, raw, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (a *Authenticator) loadSecrets() (clientSecrets, error) {
	var secrets clientSecrets
	raw, err := os.ReadFile(a.secretsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return secrets, services.Wrap(services.ErrAuthUnavailable, "upload", "auth",
				fmt.Sprintf("client secrets file %s not found", a.secretsPath), nil)
		}
		return secrets, services.Wrap(services.ErrAuthUnavailable, "upload", "auth", "read client secrets", err)
	}

	// Google exports secrets wrapped in an "installed" or "web" object.
	var wrapper map[string]clientSecrets
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		for _, key := range []string{"installed", "web"} {
			if inner, ok := wrapper[key]; ok && inner.ClientID != "" {
				return inner, nil
			}
		}
	}
	if err := json.Unmarshal(raw, &secrets); err != nil || secrets.ClientID == "" {
		return secrets, services.Wrap(services.ErrAuthUnavailable, "upload", "auth", "client secrets file has no client_id", err)
	}
	return secrets, nil
}

func (a *Authenticator) refresh(ctx context.Context, token storedToken) (storedToken, error) {
	secrets, err := a.loadSecrets()
	if err != nil {
		return storedToken{}, err
	}

	form := url.Values{
		"client_id":     {secrets.ClientID},
		"client_secret": {secrets.ClientSecret},
		"refresh_token": {token.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return storedToken{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return storedToken{}, services.Wrap(services.ErrUploadTransport, "upload", "auth", "refresh access token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return storedToken{}, services.Wrap(services.ErrAuthUnavailable, "upload", "auth",
			fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return storedToken{}, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return storedToken{}, services.Wrap(services.ErrAuthUnavailable, "upload", "auth", "token endpoint returned no access token", nil)
	}

	refreshed := token
	refreshed.AccessToken = payload.AccessToken
	refreshed.TokenType = payload.TokenType
	refreshed.Expiry = a.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return refreshed, nil
}

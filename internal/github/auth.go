package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// authenticator supplies the Authorization header for each request.
type authenticator interface {
	AuthorizationHeader(ctx context.Context) (string, error)
}

// tokenRotationMargin is how long before expiry an installation token is
// replaced.
const tokenRotationMargin = 5 * time.Minute

type tokenAuth struct {
	header string
}

func newTokenAuth(token string) *tokenAuth {
	return &tokenAuth{header: "Bearer " + token}
}

func (auth *tokenAuth) AuthorizationHeader(_ context.Context) (string, error) {
	return auth.header, nil
}

// appAuth signs RS256 JWTs with the App key and exchanges them for
// installation tokens, caching each token until shortly before it expires.
type appAuth struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	now            func() time.Time

	// Set by NewClient once the transport is known.
	httpClient *http.Client
	baseURL    string
	userAgent  string

	exchange singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type installationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newAppAuth(appID, installationID int64, privateKeyPEM []byte, now func() time.Time) (*appAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("github: parsing private key: %w", err)
	}

	return &appAuth{
		appID:          appID,
		installationID: installationID,
		privateKey:     key,
		now:            now,
	}, nil
}

func (auth *appAuth) AuthorizationHeader(ctx context.Context) (string, error) {
	auth.mu.Lock()
	if auth.token != "" && auth.now().Before(auth.expiresAt.Add(-tokenRotationMargin)) {
		header := "Bearer " + auth.token
		auth.mu.Unlock()
		return header, nil
	}
	auth.mu.Unlock()

	result, err, _ := auth.exchange.Do("installation-token", func() (any, error) {
		return auth.rotate(ctx)
	})
	if err != nil {
		return "", err
	}

	fresh := result.(installationToken)
	auth.mu.Lock()
	auth.token = fresh.Token
	auth.expiresAt = fresh.ExpiresAt
	auth.mu.Unlock()

	return "Bearer " + fresh.Token, nil
}

// rotate exchanges a fresh JWT for an installation token.
func (auth *appAuth) rotate(ctx context.Context) (installationToken, error) {
	signed, err := auth.generateJWT()
	if err != nil {
		return installationToken{}, fmt.Errorf("github: generating JWT: %w", err)
	}

	url := auth.baseURL + "/app/installations/" + strconv.FormatInt(auth.installationID, 10) + "/access_tokens"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return installationToken{}, fmt.Errorf("github: creating token exchange request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+signed)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if auth.userAgent != "" {
		request.Header.Set("User-Agent", auth.userAgent)
	}

	response, err := auth.httpClient.Do(request)
	if err != nil {
		return installationToken{}, fmt.Errorf("github: token exchange request: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return installationToken{}, fmt.Errorf("github: reading token exchange response: %w", err)
	}
	if response.StatusCode != http.StatusCreated {
		return installationToken{}, fmt.Errorf("%w: token exchange: %v", ErrAuthentication, parseAPIErrorFromBody(response.StatusCode, body))
	}

	var result installationToken
	if err := json.Unmarshal(body, &result); err != nil {
		return installationToken{}, fmt.Errorf("github: decoding token exchange response: %w", err)
	}
	if strings.TrimSpace(result.Token) == "" {
		return installationToken{}, fmt.Errorf("github: token exchange returned empty token")
	}

	log.Debug("GitHub installation token issued", "installation", auth.installationID, "expires", result.ExpiresAt)
	return result, nil
}

// generateJWT issues a ten minute App JWT, backdated a minute for clock skew.
func (auth *appAuth) generateJWT() (string, error) {
	now := auth.now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(auth.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(auth.privateKey)
}

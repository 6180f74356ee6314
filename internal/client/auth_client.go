package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"trust-service/internal/config"
	"trust-service/internal/util"
)

// AuthProviderClient asks the external identity service whether a
// credential is valid. Credential storage stays on the provider side.
type AuthProviderClient struct {
	httpClient *http.Client
	verifyURL  string
}

func NewAuthProviderClient(cfg *config.Config) *AuthProviderClient {
	return &AuthProviderClient{
		httpClient: &http.Client{Timeout: cfg.AuthProvider.Timeout},
		verifyURL:  cfg.AuthProvider.VerifyURL,
	}
}

type verifyRequest struct {
	UserID     string `json:"user_id"`
	Credential string `json:"credential"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// Verify returns whether the credential matches. A provider outage is an
// error, not a rejection; callers must not treat it as a failed login.
func (c *AuthProviderClient) Verify(ctx context.Context, userID, credential string) (bool, error) {
	body, err := json.Marshal(verifyRequest{UserID: userID, Credential: credential})
	if err != nil {
		return false, fmt.Errorf("failed to encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("auth provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out verifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return false, fmt.Errorf("failed to decode verify response: %w", err)
		}
		return out.Valid, nil
	case http.StatusUnauthorized:
		return false, nil
	default:
		util.Warn("unexpected auth provider status", util.Int("status", resp.StatusCode))
		return false, fmt.Errorf("auth provider returned status %d", resp.StatusCode)
	}
}

// Package auth resolves the user behind a table connection.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

var (
	ErrInvalidToken = errors.New("auth: credential rejected")
	ErrUnavailable  = errors.New("auth: validation service unavailable")
)

// Identity is an authenticated user.
type Identity struct {
	User string `json:"user"`
}

// Validator validates credentials.
type Validator interface {
	// Validate checks a non-empty token and returns the identity it belongs
	// to, ErrInvalidToken if it is rejected or ErrUnavailable if the check
	// could not be made.
	Validate(ctx context.Context, token string) (*Identity, error)
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,32}$`)

// QueryValidator trusts the token as the username. It is meant for
// development, where clients pass ?user=name.
type QueryValidator struct{}

func NewQueryValidator() *QueryValidator {
	return &QueryValidator{}
}

func (QueryValidator) Validate(_ context.Context, token string) (*Identity, error) {
	if !usernamePattern.MatchString(token) {
		return nil, ErrInvalidToken
	}
	return &Identity{User: token}, nil
}

// HTTPValidator asks an external service who owns a token. The service
// answers POST {"token": ...} with {"valid": bool, "user": name}; 401 and
// 403 count as a rejection, any other failure as ErrUnavailable.
type HTTPValidator struct {
	url         string
	adminSecret string
	client      *http.Client
	timeout     time.Duration
}

func NewHTTPValidator(url, adminSecret string) *HTTPValidator {
	return &HTTPValidator{
		url:         url,
		adminSecret: adminSecret,
		client:      &http.Client{},
		timeout:     500 * time.Millisecond,
	}
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	User  string `json:"user,omitempty"`
	Error string `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	answer, err := v.ask(ctx, token)
	if err != nil {
		return nil, err
	}
	if !answer.Valid || !usernamePattern.MatchString(answer.User) {
		return nil, ErrInvalidToken
	}
	return &Identity{User: answer.User}, nil
}

func (v *HTTPValidator) ask(ctx context.Context, token string) (*validateResponse, error) {
	body, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", v.adminSecret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: auth service returned %s", ErrUnavailable, resp.Status)
	}

	var answer validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&answer); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	return &answer, nil
}

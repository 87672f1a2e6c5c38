// Package client talks to the user service, which owns no-show counts and
// free-slot bans.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/bar-booking/internal/logging"
)

type UserService struct {
	baseURL string
	http    *http.Client
}

func NewUserService(baseURL string, timeout time.Duration) *UserService {
	return &UserService{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// CanBookFreeSlot reports whether userID is still allowed on the free slot.
func (c *UserService) CanBookFreeSlot(ctx context.Context, userID uint64) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d/can-book-free-slot", userID))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var ok bool
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		return false, fmt.Errorf("decode can-book-free-slot: %w", err)
	}
	return ok, nil
}

// IncrementNoShow adds one free-slot no-show to userID.
func (c *UserService) IncrementNoShow(ctx context.Context, userID uint64) error {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/users/%d/no-show/increment", userID))
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *UserService) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("Correlation-ID", id)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return resp, nil
}

package sonosapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxStateBytes bounds the size of a state response body.
const maxStateBytes = 1 << 20

// Client fetches room state from node-sonos-http-api.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at host:port with the given request timeout.
func NewClient(host, port string, timeout time.Duration) *Client {
	return &Client{
		baseURL: "http://" + net.JoinHostPort(host, port),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewClientWithBaseURL creates a client against an explicit base URL.
func NewClientWithBaseURL(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetState returns the current state of the room.
func (c *Client) GetState(ctx context.Context, room string) (*StatePayload, error) {
	endpoint := fmt.Sprintf("%s/%s/state", c.baseURL, url.PathEscape(room))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &TimeoutError{Room: room}
		}
		return nil, &UnreachableError{Room: room, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStateBytes))
	if err != nil {
		return nil, &UnreachableError{Room: room, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{Room: room, StatusCode: resp.StatusCode}
	}

	var payload StatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MalformedPayloadError{Room: room, Err: err}
	}
	return &payload, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

package util

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// FetchPage executes a pre-built HTTP request and returns the response body.
// It handles closing the body and turns non-200 statuses into errors. The
// caller builds the request, including context and headers.
func FetchPage(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do request for %s: %w", req.URL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Read a little of the body for context on error.
		limited := io.LimitReader(resp.Body, 512)
		bodyBytes, _ := io.ReadAll(limited)
		return nil, fmt.Errorf("bad status '%s' fetching %s: %s", resp.Status, req.URL.String(), string(bodyBytes))
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading body from %s: %w", req.URL.String(), err)
	}
	return bodyBytes, nil
}

// DefaultHTTPClient returns a client for listing pages and HEAD requests,
// with an overall request deadline.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
}

// StreamHTTPClient returns a client for long archive transfers. It bounds
// only the wait for response headers; the body stream has no deadline and
// is cancelled through the request context.
func StreamHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: 60 * time.Second,
		},
	}
}

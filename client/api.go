package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/lo"
)

// api talks to the server's REST endpoints. It is set up by the root command
// before any subcommand runs.
var api *apiClient

type apiClient struct {
	base   string
	client *retryablehttp.Client
}

func newAPI(server string) *apiClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil

	return &apiClient{
		base:   strings.TrimSuffix(server, "/"),
		client: client,
	}
}

// errorResponse mirrors the error payload of the server.
type errorResponse struct {
	Error string `json:"error"`
}

// doJSON sends one request and decodes the JSON response into T. A non-2xx
// response becomes an error carrying the server's message when it sent one.
func doJSON[T any](c *apiClient, ctx context.Context, method string, route string, payload any) (T, error) {
	var out T

	var body []byte
	if payload != nil {
		body = lo.Must(json.Marshal(payload))
	}

	request, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+route, body)
	if err != nil {
		return out, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.client.Do(request)
	if err != nil {
		return out, fmt.Errorf("failed to reach server at '%s': %w", c.base, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		var failure errorResponse
		if err := json.NewDecoder(response.Body).Decode(&failure); err == nil && failure.Error != "" {
			return out, fmt.Errorf("server refused request: %s", failure.Error)
		}
		return out, fmt.Errorf("server returned %s", response.Status)
	}

	if err := json.NewDecoder(response.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

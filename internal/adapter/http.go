// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/avoronov/go-quiz-sync/internal/config"
	"github.com/avoronov/go-quiz-sync/internal/logger"
	"github.com/avoronov/go-quiz-sync/models"
	"github.com/go-resty/resty/v2"
)

type httpRemoteClient struct {
	client *HTTPClient

	token string

	logger *logger.Logger
}

// NewHTTPRemoteClient constructs an HTTP/REST implementation of [RemoteClient].
// It normalises and validates the base URL from adapterCfg.HTTPAddress and
// configures the underlying HTTP client with the resolved base URL and request
// timeout. If adapterCfg.Token is non-empty it is used as the initial bearer
// token.
//
// Returns an error if adapterCfg.HTTPAddress is empty or cannot be parsed as a
// valid URL.
func NewHTTPRemoteClient(adapterCfg config.ClientAdapter, logger *logger.Logger) (RemoteClient, error) {
	client := NewHTTPClient()
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client.
		SetBaseURL(baseURL).
		SetTimeout(adapterCfg.RequestTimeout)

	remote := &httpRemoteClient{client: client, logger: logger}
	remote.SetToken(adapterCfg.Token)

	return remote, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [RemoteClient]. It stores token (whitespace-trimmed) for
// use in the Authorization header of all subsequent authenticated requests.
func (h *httpRemoteClient) SetToken(token string) {
	h.token = strings.TrimSpace(token)
}

// Ping implements [RemoteClient]. It GETs the health endpoint
// GET /api/health and reports any transport or status failure as an error.
// A returned error indicates the remote store is unreachable or unhealthy.
func (h *httpRemoteClient) Ping(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		return fmt.Errorf("ping request: %w", err)
	}

	return mapHTTPError(resp)
}

// PullCatalog implements [RemoteClient]. It GETs the bulk catalog endpoint
// GET /api/catalog and decodes the response into a [models.CatalogSnapshot]
// containing all active users, subjects and questions. Returns an error if
// the request, response mapping, or JSON decoding fails.
func (h *httpRemoteClient) PullCatalog(ctx context.Context) (models.CatalogSnapshot, error) {
	resp, err := h.authedRequest(ctx).Get("/api/catalog")
	if err != nil {
		return models.CatalogSnapshot{}, fmt.Errorf("pull catalog request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.CatalogSnapshot{}, err
	}

	var snapshot models.CatalogSnapshot
	if err = json.Unmarshal(resp.Body(), &snapshot); err != nil {
		return models.CatalogSnapshot{}, fmt.Errorf("decode catalog response: %w", err)
	}

	return snapshot, nil
}

// SyncAttempt implements [RemoteClient]. It PUTs the attempt record to
// PUT /api/attempts/{id}, upserting it on the server keyed by the attempt ID.
// Returns [ErrConflict] (wrapped) on HTTP 409. Requires a valid bearer token.
func (h *httpRemoteClient) SyncAttempt(ctx context.Context, attempt models.Attempt) error {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(attempt).
		Put("/api/attempts/" + url.PathEscape(attempt.ID))
	if err != nil {
		return fmt.Errorf("sync attempt request: %w", err)
	}

	return mapHTTPError(resp)
}

// GetAttempt implements [RemoteClient]. It GETs the server's copy of one
// attempt from GET /api/attempts/{id} and decodes it. Returns [ErrNotFound]
// (wrapped) if the server has no record for id. Requires a valid bearer token.
func (h *httpRemoteClient) GetAttempt(ctx context.Context, id string) (*models.Attempt, error) {
	resp, err := h.authedRequest(ctx).Get("/api/attempts/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("get attempt request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var attempt models.Attempt
	if err = json.Unmarshal(resp.Body(), &attempt); err != nil {
		return nil, fmt.Errorf("decode attempt response: %w", err)
	}

	return &attempt, nil
}

func (h *httpRemoteClient) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if h.token != "" {
		req.SetHeader("Authorization", "Bearer "+h.token)
	}
	return req
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artem Voronov

// Package adapter provides transport-layer abstractions for communicating
// with the remote authoritative quiz store.
//
// The primary abstraction is [RemoteClient], which decouples the sync engine
// from the underlying protocol. The package ships an HTTP/REST implementation
// ([NewHTTPRemoteClient]).
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrConflict] for 409, [ErrUnauthorized] for 401).
package adapter

import (
	"context"

	"github.com/avoronov/go-quiz-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_client_mock.go -package=mock

// RemoteClient defines transport-agnostic communication with the remote
// authoritative store. Implementations are responsible for serialisation,
// authentication header management, and mapping transport-level errors to the
// sentinel values defined in this package.
type RemoteClient interface {
	// SetToken stores the opaque bearer token attached to all subsequent
	// authenticated requests. Token issuance happens outside this core.
	SetToken(token string)

	// Ping reports whether the remote store is reachable and healthy.
	// A non-nil error means unreachable; it is data, not a failure.
	Ping(ctx context.Context) error

	// PullCatalog fetches the full set of active users, subjects and
	// questions in one bulk response.
	PullCatalog(ctx context.Context) (models.CatalogSnapshot, error)

	// SyncAttempt upserts one attempt record on the server, keyed by its ID.
	SyncAttempt(ctx context.Context, attempt models.Attempt) error

	// GetAttempt fetches the server's version of one attempt. Returns
	// [ErrNotFound] if the server has never seen the record.
	GetAttempt(ctx context.Context, id string) (*models.Attempt, error)
}

// Package graph defines the contracts serendip needs from a knowledge-graph
// host and normalizes the rows hosts return.
package graph

import (
	"context"

	"github.com/starford/serendip/internal/models"
	"github.com/starford/serendip/internal/query"
)

// Severity of a user notification.
type Severity string

// Notification severities.
const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// BlockGetter fetches a block by uuid (or numeric entity id). It returns an
// error wrapping apperr.ErrNotFound when the id does not resolve.
type BlockGetter interface {
	GetBlock(ctx context.Context, id string) (*models.Block, error)
}

// Source executes queries against the graph. Query and lookup results are raw
// rows: possibly nested slices of host-shaped maps or models values, which
// Flatten and Normalize turn into candidates.
type Source interface {
	BlockGetter
	ExecuteQuery(ctx context.Context, q *query.Query) ([]any, error)
	ExecuteSimpleQuery(ctx context.Context, q *query.Query) ([]any, error)
	LookupNamespace(ctx context.Context, namespace string) ([]any, error)
	GetPage(ctx context.Context, id int64) (*models.Page, error)
}

// Navigator moves the host's views.
type Navigator interface {
	// NavigateMain opens a page (by name) or a block (by uuid) in the main view.
	NavigateMain(ctx context.Context, target string) error
	// NavigateSide opens the entity with the given uuid in the side panel.
	NavigateSide(ctx context.Context, uuid string) error
}

// Notifier shows a message to the user.
type Notifier interface {
	Notify(ctx context.Context, message string, severity Severity) error
}

// Host is a Navigator that can also notify.
type Host interface {
	Navigator
	Notifier
}

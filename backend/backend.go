// Package backend defines the two remote operations the loader drives.
//
// A Backend creates one record at a time and updates values of records it
// already holds. Implementations report failures as errors that
// loaderr.Classify understands: a *loaderr.StatusError for HTTP replies,
// network errors as returned by the transport. Implementations must be safe
// for concurrent use.
package backend

import (
	"context"
	"errors"

	"github.com/zero-day-ai/bulkload/record"
)

// ErrNotFound indicates an update for a record the backend does not hold.
var ErrNotFound = errors.New("backend: resource not found")

// Backend is a remote store that creates and updates records.
type Backend interface {
	// CreateRecord creates r and returns the global id the backend assigned.
	// Every reference in r must already be a global id.
	CreateRecord(ctx context.Context, r record.Record) (string, error)

	// UpdateRecord adds a value to, or replaces a placeholder value of, the
	// record with the given global id.
	UpdateRecord(ctx context.Context, globalID string, u Update) error
}

// Update is a single value written back to a created record.
type Update struct {
	// Class is the class of the record being updated.
	Class string `json:"class"`

	// Property is the property the value belongs to.
	Property string `json:"property"`

	// Placeholder, when set, is the text of the value to replace. When
	// empty the value is added.
	Placeholder string `json:"placeholder,omitempty"`

	// Value is the value to write, with references already resolved.
	Value record.PropertyValue `json:"value"`
}

// CreateResponse is the reply to a create call.
type CreateResponse struct {
	ID string `json:"id"`
}

// CreateRequest is the body of a create call.
type CreateRequest struct {
	Class  string                 `json:"class"`
	Label  string                 `json:"label"`
	Values []record.PropertyValue `json:"values"`
}

// NewCreateRequest builds the create body for r. The caller-local id is not sent.
func NewCreateRequest(r record.Record) CreateRequest {
	values := r.Values
	if values == nil {
		values = []record.PropertyValue{}
	}
	return CreateRequest{Class: r.Class, Label: r.Label, Values: values}
}

// Record converts the request back into a record with the given id.
func (c CreateRequest) Record(id string) record.Record {
	return record.Record{ID: id, Class: c.Class, Label: c.Label, Values: c.Values}
}

// UpdateRequest is the body of an update call.
type UpdateRequest struct {
	// Resource is the global id of the record to update.
	Resource string `json:"resource"`
	Update
}

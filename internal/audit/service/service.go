// Package service implements the audit log query surface. Reads apply a
// single-filter rule: of userId, entityType, and entityId, the first
// non-empty one wins and the rest are ignored.
package service

import (
	"context"
	"log/slog"

	"idplane/internal/audit/models"
	"idplane/internal/audit/store"
	dErrors "idplane/pkg/domain-errors"
)

const (
	// DefaultLimit applies when the caller requests no page size.
	DefaultLimit = 100
	// MaxLimit caps the page size regardless of what the caller asks for.
	MaxLimit = 1000
)

// Params are the raw query inputs as received from the caller.
type Params struct {
	UserID     string
	EntityType string
	EntityID   string
	Limit      int
	Offset     int
}

// Page is a query result: one page of records plus the total count under
// the same filter.
type Page struct {
	Records []*models.Record
	Total   int64
	Limit   int
	Offset  int
}

// Service answers audit log queries.
type Service struct {
	records store.RecordStore
	logger  *slog.Logger
}

// New creates the audit query service.
func New(records store.RecordStore, logger *slog.Logger) *Service {
	return &Service{records: records, logger: logger}
}

// Query returns a filtered, newest-first page of the audit log.
func (s *Service) Query(ctx context.Context, p Params) (*Page, error) {
	if p.Offset < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "offset must not be negative")
	}
	if p.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "limit must not be negative")
	}

	limit := p.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	filter := normalizeFilter(p)

	records, err := s.records.List(ctx, store.Query{
		Filter: filter,
		Limit:  limit,
		Offset: p.Offset,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInfrastructure, "query audit log")
	}

	total, err := s.records.Count(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInfrastructure, "count audit log")
	}

	return &Page{
		Records: records,
		Total:   total,
		Limit:   limit,
		Offset:  p.Offset,
	}, nil
}

// normalizeFilter applies the single-filter rule: userId, then entityType,
// then entityId; everything after the first non-empty value is dropped.
func normalizeFilter(p Params) store.Filter {
	switch {
	case p.UserID != "":
		return store.Filter{UserID: p.UserID}
	case p.EntityType != "":
		return store.Filter{EntityType: p.EntityType}
	case p.EntityID != "":
		return store.Filter{EntityID: p.EntityID}
	default:
		return store.Filter{}
	}
}

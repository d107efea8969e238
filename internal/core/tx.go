package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// withSavepoint runs fn inside a savepoint of tx. A failing fn rolls back to the
// savepoint only, leaving the outer transaction usable for the next batch element.
func withSavepoint(ctx context.Context, tx pgx.Tx, fn func(sp pgx.Tx) error) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back savepoint: %w", rbErr))
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// BatchItemResult is the outcome of one element of a batch operation.
type BatchItemResult struct {
	Index int    `json:"index"`
	Key   string `json:"key"`          // serial or id the element was submitted with
	ID    int    `json:"id,omitempty"` // id of the created or updated row
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// BatchResult collects per-element outcomes. Batches never abort on an element failure.
type BatchResult struct {
	Succeeded []BatchItemResult `json:"succeeded"`
	Failed    []BatchItemResult `json:"failed"`
}

func newBatchResult() *BatchResult {
	return &BatchResult{Succeeded: []BatchItemResult{}, Failed: []BatchItemResult{}}
}

func (b *BatchResult) ok(index int, key string, id int) {
	b.Succeeded = append(b.Succeeded, BatchItemResult{Index: index, Key: key, ID: id})
}

func (b *BatchResult) fail(index int, key string, err error) {
	item := BatchItemResult{Index: index, Key: key, Error: err.Error(), Code: "INTERNAL"}
	var de *DomainError
	if errors.As(err, &de) {
		item.Error = de.Message
		item.Code = de.ErrorCode()
	}
	b.Failed = append(b.Failed, item)
}

// AllSucceeded reports whether no element failed.
func (b *BatchResult) AllSucceeded() bool { return len(b.Failed) == 0 }

// NoneSucceeded reports whether every element failed.
func (b *BatchResult) NoneSucceeded() bool { return len(b.Succeeded) == 0 }

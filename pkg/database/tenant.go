package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithTenantRLS runs fn inside a transaction scoped to one tenant.
//
// The transaction first sets the search_path (so queries use unqualified
// table names) and then `SET LOCAL app.current_tenant`, which the row level
// security policies read:
//
//	USING (tenant_id = current_setting('app.current_tenant')::uuid)
//
// Both settings are SET LOCAL, so they die with the transaction and a
// pooled connection returns clean. The transaction is stored in the context
// handed to fn; the DB query helpers route to it, which means every
// repository call inside fn shares one transaction and one tenant scope.
// Wrapping a multi-repository use case in a single WithTenantRLS call is
// therefore also what makes it atomic.
//
// Nested calls join the surrounding transaction instead of opening a new
// one, so repositories can self-wrap and still be composed by services.
func (db *DB) WithTenantRLS(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	if tx := db.getTx(ctx); tx != nil {
		return fn(ctx)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		searchPath := db.searchPath
		if searchPath == "" {
			searchPath = "public"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s", searchPath)); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", searchPath, err)
		}

		// SET LOCAL takes no bind parameters. Interpolating is fine here:
		// TenantMiddleware rejects any X-Tenant-ID that does not parse as
		// a UUID before it reaches the context.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_tenant = '%s'", tenantID)); err != nil {
			return fmt.Errorf("failed to set app.current_tenant to %s: %w", tenantID, err)
		}

		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// getTx extracts the scope transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

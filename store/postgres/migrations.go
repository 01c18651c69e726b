package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Tuition store.
var Migrations = migrate.NewGroup("tuition")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tuition_entries",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tuition_entries (
    id                     TEXT PRIMARY KEY,
    student_id             TEXT NOT NULL DEFAULT '',
    type                   TEXT NOT NULL DEFAULT 'credit',
    status                 TEXT NOT NULL DEFAULT 'open',
    amount_cents           BIGINT NOT NULL DEFAULT 0,
    currency               TEXT NOT NULL DEFAULT 'eur',
    description            TEXT NOT NULL DEFAULT '',
    course_id              TEXT NOT NULL DEFAULT '',
    reference              TEXT NOT NULL DEFAULT '',
    applied_amount_cents   BIGINT NOT NULL DEFAULT 0,
    remaining_amount_cents BIGINT NOT NULL DEFAULT 0,
    reversal_id            TEXT NOT NULL DEFAULT '',
    reversal_of            TEXT NOT NULL DEFAULT '',
    created_by             TEXT NOT NULL DEFAULT '',
    version                BIGINT NOT NULL DEFAULT 1,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tuition_entries_student ON tuition_entries (student_id, created_at);
CREATE INDEX IF NOT EXISTS idx_tuition_entries_open ON tuition_entries (student_id, type, status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tuition_entries_reference ON tuition_entries (student_id, reference) WHERE reference <> '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tuition_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tuition_applications",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tuition_applications (
    id             TEXT PRIMARY KEY,
    entry_id       TEXT NOT NULL DEFAULT '',
    invoice_id     TEXT NOT NULL DEFAULT '',
    invoice_number TEXT NOT NULL DEFAULT '',
    amount_cents   BIGINT NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT 'eur',
    applied_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    applied_by     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tuition_apps_entry ON tuition_applications (entry_id, applied_at);
CREATE INDEX IF NOT EXISTS idx_tuition_apps_invoice ON tuition_applications (invoice_id, applied_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tuition_applications`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tuition_invoices",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tuition_invoices (
    id                  TEXT PRIMARY KEY,
    number              TEXT NOT NULL DEFAULT '',
    student_id          TEXT NOT NULL DEFAULT '',
    enrollment_id       TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'draft',
    issue_date          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    due_date            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    period_start        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    period_end          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    period_type         TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    currency            TEXT NOT NULL DEFAULT 'eur',
    subtotal_cents      BIGINT NOT NULL DEFAULT 0,
    vat_cents           BIGINT NOT NULL DEFAULT 0,
    total_cents         BIGINT NOT NULL DEFAULT 0,
    lines               JSONB NOT NULL DEFAULT '[]',
    payments            JSONB NOT NULL DEFAULT '[]',
    applied_cents       BIGINT NOT NULL DEFAULT 0,
    is_credit_invoice   BOOLEAN NOT NULL DEFAULT FALSE,
    original_invoice_id TEXT NOT NULL DEFAULT '',
    sent_at             TIMESTAMPTZ,
    paid_at             TIMESTAMPTZ,
    cancelled_at        TIMESTAMPTZ,
    cancel_reason       TEXT NOT NULL DEFAULT '',
    notes               TEXT NOT NULL DEFAULT '',
    created_by          TEXT NOT NULL DEFAULT '',
    version             BIGINT NOT NULL DEFAULT 1,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tuition_invoices_number ON tuition_invoices (number);
CREATE INDEX IF NOT EXISTS idx_tuition_invoices_student ON tuition_invoices (student_id, issue_date);
CREATE INDEX IF NOT EXISTS idx_tuition_invoices_overdue ON tuition_invoices (status, due_date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tuition_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tuition_sequences",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tuition_sequences (
    key   TEXT PRIMARY KEY,
    value BIGINT NOT NULL DEFAULT 0
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tuition_sequences`)
				return err
			},
		},
	)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/klauspost/compress/zstd"

	"metaform/internal/core/apperror"
	appctx "metaform/internal/core/context"
	"metaform/internal/core/id"
)

// AuditAction is the kind of schema catalog change being recorded.
type AuditAction string

const (
	AuditActionRegister AuditAction = "register"
	AuditActionMigrate  AuditAction = "migrate"
	AuditActionDelete   AuditAction = "delete"
)

// AuditCompression tags how a recorded document is encoded.
type AuditCompression string

const (
	AuditCompressionNone AuditCompression = "none"
	AuditCompressionZstd AuditCompression = "zstd"
)

// auditCompressThreshold is the document size above which zstd kicks in.
const auditCompressThreshold = 10 * 1024

// AuditEntry is one recorded schema catalog change. Document carries the
// schema as it was registered; for deletions it is empty.
type AuditEntry struct {
	ID          string           `db:"id" json:"id"`
	EntityType  string           `db:"entity_type" json:"entityType"`
	Action      AuditAction      `db:"action" json:"action"`
	UserID      string           `db:"user_id" json:"userId,omitempty"`
	UserEmail   string           `db:"user_email" json:"userEmail,omitempty"`
	DSLVersion  string           `db:"dsl_version" json:"dslVersion,omitempty"`
	Document    []byte           `db:"document" json:"document,omitempty"`
	Compression AuditCompression `db:"compression" json:"-"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// auditQuerier is the subset of pgxpool.Pool the audit log needs.
type auditQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SchemaAudit keeps an append-only history of schema registrations,
// migrations and deletions in sys_schema_audit.
type SchemaAudit struct {
	db      auditQuerier
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewSchemaAudit(db auditQuerier) (*SchemaAudit, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &SchemaAudit{db: db, encoder: encoder, decoder: decoder}, nil
}

func (a *SchemaAudit) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Log records one schema catalog change. The actor is taken from the
// request context; doc may be nil for deletions.
func (a *SchemaAudit) Log(ctx context.Context, action AuditAction, entityType, dslVersion string, doc []byte) error {
	compression := AuditCompressionNone
	if len(doc) > auditCompressThreshold {
		doc = a.encoder.EncodeAll(doc, nil)
		compression = AuditCompressionZstd
	}

	var userID, userEmail string
	if u := appctx.GetUser(ctx); u != nil {
		userID = u.UserID
		userEmail = u.Email
	}

	sql, args, err := a.builder().
		Insert("sys_schema_audit").
		Columns("id", "entity_type", "action", "user_id", "user_email",
			"dsl_version", "document", "compression", "created_at").
		Values(id.NewString(), entityType, action, userID, userEmail,
			dslVersion, doc, compression, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := a.db.Exec(ctx, sql, args...); err != nil {
		return apperror.New(apperror.CodeDatabase, "record schema audit").WithCause(err)
	}
	return nil
}

// History returns the most recent catalog changes for one entity type,
// newest first, with documents decompressed.
func (a *SchemaAudit) History(ctx context.Context, entityType string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	sql, args, err := a.builder().
		Select("id", "entity_type", "action", "user_id", "user_email",
			"dsl_version", "document", "compression", "created_at").
		From("sys_schema_audit").
		Where(squirrel.Eq{"entity_type": entityType}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit select: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, a.db, &entries, sql, args...); err != nil {
		return nil, apperror.New(apperror.CodeDatabase, "load schema audit").WithCause(err)
	}

	for i := range entries {
		if entries[i].Compression != AuditCompressionZstd {
			continue
		}
		decoded, err := a.decoder.DecodeAll(entries[i].Document, nil)
		if err != nil {
			return nil, apperror.New(apperror.CodeDatabase, "decompress audit document").WithCause(err)
		}
		entries[i].Document = decoded
		entries[i].Compression = AuditCompressionNone
	}
	return entries, nil
}

// Audit DDL, applied by the seed command.
const AuditDDL = `
CREATE TABLE IF NOT EXISTS sys_schema_audit (
	id          TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	action      TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	user_email  TEXT NOT NULL DEFAULT '',
	dsl_version TEXT NOT NULL DEFAULT '',
	document    BYTEA,
	compression TEXT NOT NULL DEFAULT 'none',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_schema_audit_entity
	ON sys_schema_audit (entity_type, created_at DESC);
`

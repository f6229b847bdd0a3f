// Package schema_repo persists entity schema documents in PostgreSQL.
// Documents are stored as JSON, zstd-compressed above a size threshold.
package schema_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"metaform/internal/core/apperror"
	"metaform/internal/infrastructure/cache"
	"metaform/internal/schema"
	"metaform/pkg/logger"
)

var tracer = otel.Tracer("metaform/schema_repo")

// CompressionAlgo tags how a stored document is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// compressThreshold is the document size above which zstd kicks in.
const compressThreshold = 10 * 1024

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Record is one stored schema row.
type Record struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	DSLVersion  string          `db:"dsl_version"`
	Document    []byte          `db:"document"`
	Compression CompressionAlgo `db:"compression"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// ListEntry is the lightweight listing row (no document payload).
type ListEntry struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	DSLVersion string    `db:"dsl_version"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Store reads and writes entity schemas in sys_entity_schemas.
type Store struct {
	db      Querier
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewStore(db Querier) (*Store, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Store{db: db, encoder: encoder, decoder: decoder}, nil
}

func (s *Store) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Save upserts a schema document keyed by its entity ID.
func (s *Store) Save(ctx context.Context, entity *schema.EntitySchema) error {
	ctx, span := tracer.Start(ctx, "schema_repo.Save",
		trace.WithAttributes(attribute.String("schema.id", entity.ID)))
	defer span.End()

	doc, err := schema.SerializeEntitySchema(entity)
	if err != nil {
		return apperror.New(apperror.CodeInvalidInput, "serialize schema").WithCause(err)
	}

	compression := CompressionNone
	if len(doc) > compressThreshold {
		doc = s.encoder.EncodeAll(doc, nil)
		compression = CompressionZstd
	}

	sql, args, err := s.builder().
		Insert("sys_entity_schemas").
		Columns("id", "name", "dsl_version", "document", "compression", "updated_at").
		Values(entity.ID, entity.Name, entity.DSLVersion, doc, compression, time.Now().UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			dsl_version = EXCLUDED.dsl_version,
			document = EXCLUDED.document,
			compression = EXCLUDED.compression,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return apperror.New(apperror.CodeDatabase, "save schema").WithCause(err)
	}
	s.notifyChanged(ctx, entity.ID)
	return nil
}

// notifyChanged tells listening instances to drop their cached copy.
// Best-effort: a failed NOTIFY leaves caches to expire by TTL.
func (s *Store) notifyChanged(ctx context.Context, entityID string) {
	if _, err := s.db.Exec(ctx, "SELECT pg_notify($1, $2)", cache.Channel, entityID); err != nil {
		logger.Warn(ctx, "schema change notify failed", "entityType", entityID, "error", err)
	}
}

// Get loads one schema by entity ID.
func (s *Store) Get(ctx context.Context, entityID string) (*schema.EntitySchema, error) {
	ctx, span := tracer.Start(ctx, "schema_repo.Get",
		trace.WithAttributes(attribute.String("schema.id", entityID)))
	defer span.End()

	sql, args, err := s.builder().
		Select("id", "name", "dsl_version", "document", "compression", "updated_at").
		From("sys_entity_schemas").
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rec Record
	if err := pgxscan.Get(ctx, s.db, &rec, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("entity schema", entityID)
		}
		return nil, apperror.New(apperror.CodeDatabase, "load schema").WithCause(err)
	}

	return s.decode(&rec)
}

// List returns the catalog of stored schemas without documents.
func (s *Store) List(ctx context.Context) ([]ListEntry, error) {
	ctx, span := tracer.Start(ctx, "schema_repo.List")
	defer span.End()

	sql, args, err := s.builder().
		Select("id", "name", "dsl_version", "updated_at").
		From("sys_entity_schemas").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	var entries []ListEntry
	if err := pgxscan.Select(ctx, s.db, &entries, sql, args...); err != nil {
		return nil, apperror.New(apperror.CodeDatabase, "list schemas").WithCause(err)
	}
	return entries, nil
}

// Delete removes a stored schema. Deleting an unknown ID is a NotFound.
func (s *Store) Delete(ctx context.Context, entityID string) error {
	ctx, span := tracer.Start(ctx, "schema_repo.Delete",
		trace.WithAttributes(attribute.String("schema.id", entityID)))
	defer span.End()

	sql, args, err := s.builder().
		Delete("sys_entity_schemas").
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return apperror.New(apperror.CodeDatabase, "delete schema").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("entity schema", entityID)
	}
	s.notifyChanged(ctx, entityID)
	return nil
}

func (s *Store) decode(rec *Record) (*schema.EntitySchema, error) {
	doc := rec.Document
	switch rec.Compression {
	case CompressionZstd:
		decoded, err := s.decoder.DecodeAll(doc, nil)
		if err != nil {
			return nil, apperror.New(apperror.CodeDatabase, "decompress schema document").WithCause(err)
		}
		doc = decoded
	case CompressionNone, "":
	default:
		return nil, apperror.New(apperror.CodeDatabase,
			fmt.Sprintf("unknown compression %q for schema %s", rec.Compression, rec.ID))
	}

	entity, err := schema.ParseEntitySchema(doc)
	if err != nil {
		return nil, apperror.New(apperror.CodeDatabase, "decode schema document").WithCause(err)
	}
	return entity, nil
}

// Schema DDL, applied by the seed command.
const DDL = `
CREATE TABLE IF NOT EXISTS sys_entity_schemas (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	dsl_version TEXT NOT NULL,
	document    BYTEA NOT NULL,
	compression TEXT NOT NULL DEFAULT 'none',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

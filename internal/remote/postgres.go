package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/plantid/internal/models"
)

// documentsSchema stores every remote collection as JSONB documents, mirroring
// the Firestore layout so both adapters share field names.
const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    body JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_scientific_name
    ON documents ((body->>'scientificName')) WHERE collection = 'plants';
`

// Postgres is a Store backed by a JSONB document table.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to dsn and ensures the documents table exists.
func NewPostgres(ctx context.Context, dsn string, maxConns int) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, documentsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) GetPlant(ctx context.Context, id string) (*models.Plant, error) {
	plant := &models.Plant{}
	found, err := s.getDocument(ctx, CollectionPlants, id, plant)
	if err != nil || !found {
		return nil, err
	}
	return plant, nil
}

func (s *Postgres) QueryPlants(ctx context.Context, q PlantQuery) ([]*models.Plant, error) {
	query, args := plantQuerySQL(q)
	return s.queryPlants(ctx, "query plants", query, args...)
}

func (s *Postgres) ListPlants(ctx context.Context, limit int) ([]*models.Plant, error) {
	query, args := plantQuerySQL(PlantQuery{Limit: limit})
	return s.queryPlants(ctx, "list plants", query, args...)
}

func (s *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	found, err := s.getDocument(ctx, CollectionUsers, id, user)
	if err != nil || !found {
		return nil, err
	}
	return user, nil
}

func (s *Postgres) SetIdentification(ctx context.Context, identification *models.Identification) error {
	return s.setDocument(ctx, CollectionIdentifications, identification.ID, identification)
}

func (s *Postgres) UpdateConfirmation(ctx context.Context, id string, c Confirmation) error {
	patch, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode confirmation: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET body = body || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2`,
		CollectionIdentifications, id, string(patch),
	)
	if err != nil {
		return unavailable("update confirmation", err)
	}
	if tag.RowsAffected() == 0 {
		return unavailable("update confirmation", fmt.Errorf("identification %s not found", id))
	}
	return nil
}

func (s *Postgres) SetCollection(ctx context.Context, collection *models.PlantCollection) error {
	return s.setDocument(ctx, CollectionPlantCollection, collection.ID, collection)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// plantQuerySQL builds the document query for q.
func plantQuerySQL(q PlantQuery) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT body FROM documents WHERE collection = $1`)
	args := []any{CollectionPlants}

	add := func(clause string, value any) {
		args = append(args, value)
		b.WriteString(" AND ")
		b.WriteString(strings.ReplaceAll(clause, "$?", "$"+strconv.Itoa(len(args))))
	}
	if q.Region != "" {
		add(`body->'regions' ? $?`, q.Region)
	}
	if q.PlantType != "" {
		add(`body->>'plantType' = $?`, string(q.PlantType))
	}
	if q.Family != "" {
		add(`body->>'family' = $?`, q.Family)
	}
	if q.Origin != "" {
		add(`body->>'origin' = $?`, string(q.Origin))
	}
	if q.ConservationStatus != "" {
		add(`body->'description'->>'conservationStatus' = $?`, q.ConservationStatus)
	}

	b.WriteString(` ORDER BY body->>'scientificName', id`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}

func (s *Postgres) queryPlants(ctx context.Context, op, query string, args ...any) ([]*models.Plant, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var plants []*models.Plant
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, unavailable(op, err)
		}
		plant := &models.Plant{}
		if err := json.Unmarshal(body, plant); err != nil {
			return nil, fmt.Errorf("decode plant document: %w", err)
		}
		plants = append(plants, plant)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return plants, nil
}

func (s *Postgres) getDocument(ctx context.Context, collection, id string, out any) (bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("get "+collection, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode %s document %s: %w", collection, id, err)
	}
	return true, nil
}

func (s *Postgres) setDocument(ctx context.Context, collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", collection, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = now()`,
		collection, id, string(body),
	)
	if err != nil {
		return unavailable("set "+collection, err)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kitbuilder587/abn-search/internal/domain"
)

// registryStatusActive - код активного ABN в выгрузке
const registryStatusActive = "ACT"

const selectEntity = `
	SELECT r.abn,
	       r.abn_status,
	       r.abn_status_from_date,
	       r.entity_type_text,
	       COALESCE(NULLIF(m.text, ''), NULLIF(TRIM(CONCAT_WS(' ', l.given_name_1, l.given_name_2, l.family_name)), ''), '') AS name,
	       g.status,
	       g.status_from_date,
	       a.state_code,
	       a.postcode
	FROM abn_records r
	LEFT JOIN main_entity m ON m.abn = r.abn
	LEFT JOIN legal_entity l ON l.abn = r.abn
	LEFT JOIN gst_registrations g ON g.abn = r.abn
	LEFT JOIN business_addresses a ON a.abn = r.abn
`

type ABNRepo struct {
	db *DB
}

func NewABNRepo(db *DB) *ABNRepo {
	return &ABNRepo{db: db}
}

func (r *ABNRepo) Search(ctx context.Context, query string, limit int) ([]domain.ABNEntity, error) {
	if domain.IsABN(query) {
		e, err := r.GetByABN(ctx, query)
		if errors.Is(err, domain.ErrABNNotFound) {
			return []domain.ABNEntity{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []domain.ABNEntity{*e}, nil
	}

	sqlQuery := selectEntity + `
		WHERE m.text ILIKE $1
		   OR CONCAT_WS(' ', l.given_name_1, l.given_name_2, l.family_name) ILIKE $1
		   OR EXISTS (
		       SELECT 1 FROM other_entity_names o
		       WHERE o.abn = r.abn AND o.text ILIKE $1
		   )
		ORDER BY (r.abn_status = $2) DESC, name ASC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, sqlQuery, "%"+escapeLike(query)+"%", registryStatusActive, limit)
	if err != nil {
		return nil, fmt.Errorf("search abn records: %w", err)
	}
	defer rows.Close()

	entities := []domain.ABNEntity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate abn records: %w", err)
	}

	return entities, nil
}

func (r *ABNRepo) GetByABN(ctx context.Context, abn string) (*domain.ABNEntity, error) {
	row := r.db.Pool.QueryRow(ctx, selectEntity+` WHERE r.abn = $1`, domain.NormalizeABN(abn))

	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrABNNotFound
		}
		return nil, err
	}
	return &e, nil
}

type entityRow struct {
	abn            string
	status         string
	statusFromDate string
	entityType     *string
	name           string
	gstStatus      *string
	gstFromDate    *string
	stateCode      *string
	postcode       *string
}

func scanEntity(row pgx.Row) (domain.ABNEntity, error) {
	var er entityRow
	err := row.Scan(
		&er.abn,
		&er.status,
		&er.statusFromDate,
		&er.entityType,
		&er.name,
		&er.gstStatus,
		&er.gstFromDate,
		&er.stateCode,
		&er.postcode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ABNEntity{}, err
		}
		return domain.ABNEntity{}, fmt.Errorf("scan abn record: %w", err)
	}
	return er.toEntity(), nil
}

func (er entityRow) toEntity() domain.ABNEntity {
	e := domain.ABNEntity{
		ABN:              er.abn,
		Name:             er.name,
		EntityType:       deref(er.entityType),
		Status:           domain.StatusFromRegistry(er.status),
		RegistrationDate: registryDate(er.statusFromDate),
	}

	if er.gstStatus != nil {
		gst := &domain.GSTRegistration{Registered: strings.EqualFold(*er.gstStatus, registryStatusActive)}
		if gst.Registered {
			gst.RegistrationDate = registryDate(deref(er.gstFromDate))
		}
		e.GST = gst
	}

	if er.stateCode != nil || er.postcode != nil {
		e.Address = &domain.Address{State: deref(er.stateCode), Postcode: deref(er.postcode)}
	}

	return e
}

// registryDate: "20060102" из выгрузки -> "2006-01-02". Непонятное оставляем как есть.
func registryDate(s string) string {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

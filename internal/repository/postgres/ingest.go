package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kitbuilder587/abn-search/internal/domain"
)

type RecordRepo struct {
	db *DB
}

func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// UpsertBatch пишет батч одной транзакцией. dgr_entries и other_entity_names
// перезаписываются целиком (delete + insert), остальное upsert по abn.
func (r *RecordRepo) UpsertBatch(ctx context.Context, records []domain.ABRRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	abns := make([]string, 0, len(records))
	for i := range records {
		queueRecord(batch, &records[i])
		abns = append(abns, records[i].ABN)
	}

	batch.Queue(`DELETE FROM dgr_entries WHERE abn = ANY($1)`, abns)
	batch.Queue(`DELETE FROM other_entity_names WHERE abn = ANY($1)`, abns)
	for i := range records {
		queueChildren(batch, &records[i])
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func queueRecord(b *pgx.Batch, rec *domain.ABRRecord) {
	b.Queue(`
		INSERT INTO abn_records (abn, abn_status, abn_status_from_date, record_last_updated_date, entity_type_ind, entity_type_text)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (abn) DO UPDATE SET
			abn_status = EXCLUDED.abn_status,
			abn_status_from_date = EXCLUDED.abn_status_from_date,
			record_last_updated_date = EXCLUDED.record_last_updated_date,
			entity_type_ind = EXCLUDED.entity_type_ind,
			entity_type_text = EXCLUDED.entity_type_text,
			updated_at = NOW()
	`, rec.ABN, rec.Status, rec.StatusFromDate, rec.RecordLastUpdatedDate,
		nullString(rec.EntityTypeInd), nullString(rec.EntityTypeText))

	if rec.MainEntity != nil {
		b.Queue(`
			INSERT INTO main_entity (abn, type, text) VALUES ($1, $2, $3)
			ON CONFLICT (abn) DO UPDATE SET type = EXCLUDED.type, text = EXCLUDED.text
		`, rec.ABN, rec.MainEntity.Type, nullString(rec.MainEntity.Text))
	}

	if p := rec.LegalEntity; p != nil {
		b.Queue(`
			INSERT INTO legal_entity (abn, type, title, given_name_1, given_name_2, family_name)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (abn) DO UPDATE SET
				type = EXCLUDED.type,
				title = EXCLUDED.title,
				given_name_1 = EXCLUDED.given_name_1,
				given_name_2 = EXCLUDED.given_name_2,
				family_name = EXCLUDED.family_name
		`, rec.ABN, p.Type, nullString(p.Title), nullString(p.GivenName1), nullString(p.GivenName2), nullString(p.FamilyName))
	}

	if rec.ASICNumber != "" {
		b.Queue(`
			INSERT INTO asic_numbers (abn, asic_number) VALUES ($1, $2)
			ON CONFLICT (abn) DO UPDATE SET asic_number = EXCLUDED.asic_number
		`, rec.ABN, rec.ASICNumber)
	}

	if rec.GST != nil {
		b.Queue(`
			INSERT INTO gst_registrations (abn, status, status_from_date) VALUES ($1, $2, $3)
			ON CONFLICT (abn) DO UPDATE SET status = EXCLUDED.status, status_from_date = EXCLUDED.status_from_date
		`, rec.ABN, rec.GST.Status, rec.GST.StatusFromDate)
	}

	if a := rec.BusinessAddress; a != nil {
		b.Queue(`
			INSERT INTO business_addresses (abn, state_code, postcode) VALUES ($1, $2, $3)
			ON CONFLICT (abn) DO UPDATE SET state_code = EXCLUDED.state_code, postcode = EXCLUDED.postcode
		`, rec.ABN, nullString(a.StateCode), nullString(a.Postcode))
	}
}

func queueChildren(b *pgx.Batch, rec *domain.ABRRecord) {
	for _, d := range rec.DGR {
		b.Queue(`INSERT INTO dgr_entries (abn, status_from_date, status, type, text) VALUES ($1, $2, $3, $4, $5)`,
			rec.ABN, d.StatusFromDate, nullString(d.Status), nullString(d.Type), nullString(d.Text))
	}
	for _, o := range rec.OtherNames {
		b.Queue(`INSERT INTO other_entity_names (abn, type, text) VALUES ($1, $2, $3)`,
			rec.ABN, o.Type, nullString(o.Text))
	}
}

package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"origtext/internal/models"
)

// IndexRepo maintains the query projection of original texts. entry_id is the
// routing key for every per-entry query.
type IndexRepo struct {
	db *DB
}

func NewIndexRepo(db *DB) *IndexRepo {
	return &IndexRepo{db: db}
}

const indexColumns = `catalogue_id, id, entry_id, title, type, version, remark, name, size, md5,
  order_number, COALESCE(content_index,''), content_index_status, COALESCE(pdf_md5,''),
  pdf_conver_status, COALESCE(file_attributes,'{}'::jsonb), create_time, gmt_create, gmt_modified`

const upsertIndexSQL = `
INSERT INTO original_text_index (catalogue_id, id, entry_id, title, type, version, remark, name, size, md5,
  order_number, content_index, content_index_status, pdf_md5, pdf_conver_status, file_attributes,
  create_time, gmt_create, gmt_modified)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12,''), $13, NULLIF($14,''), $15, $16, $17, $18, $19)
ON CONFLICT (catalogue_id, id)
DO UPDATE SET
  entry_id = EXCLUDED.entry_id,
  title = EXCLUDED.title,
  type = EXCLUDED.type,
  version = EXCLUDED.version,
  remark = EXCLUDED.remark,
  name = EXCLUDED.name,
  size = EXCLUDED.size,
  md5 = EXCLUDED.md5,
  order_number = EXCLUDED.order_number,
  content_index = EXCLUDED.content_index,
  content_index_status = EXCLUDED.content_index_status,
  pdf_md5 = EXCLUDED.pdf_md5,
  pdf_conver_status = EXCLUDED.pdf_conver_status,
  file_attributes = EXCLUDED.file_attributes,
  create_time = EXCLUDED.create_time,
  gmt_create = EXCLUDED.gmt_create,
  gmt_modified = EXCLUDED.gmt_modified`

func upsertArgs(o models.OriginalText) []any {
	attrs := o.FileAttributesMap
	if attrs == nil {
		attrs = map[string]any{}
	}
	return []any{
		o.CatalogueID, o.ID, o.EntryID, o.Title, o.Type, o.Version, o.Remark, o.Name, o.Size, o.MD5,
		o.OrderNumber, o.ContentIndex, int(o.ContentIndexStatus), o.PDFMD5, int(o.PDFConverStatus), attrs,
		o.CreateTime, o.GmtCreate, o.GmtModified,
	}
}

func (r *IndexRepo) Save(ctx context.Context, o models.OriginalText) error {
	if _, err := r.db.Pool.Exec(ctx, upsertIndexSQL, upsertArgs(o)...); err != nil {
		return fmt.Errorf("index original text %s: %w", o.ID, err)
	}
	return nil
}

func (r *IndexRepo) SaveAll(ctx context.Context, items []models.OriginalText) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx index original texts: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, o := range items {
		batch.Queue(upsertIndexSQL, upsertArgs(o)...)
	}
	br := tx.SendBatch(ctx, batch)
	for _, o := range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("index original text %s: %w", o.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close index batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit index tx: %w", err)
	}
	return nil
}

// Delete removes the projection row. entryID routes the delete; an empty
// entryID deletes by key alone.
func (r *IndexRepo) Delete(ctx context.Context, catalogueID int, id, entryID string) error {
	_, err := r.db.Pool.Exec(ctx, `
DELETE FROM original_text_index
WHERE catalogue_id=$1 AND id=$2 AND ($3 = '' OR entry_id=$3)`, catalogueID, id, entryID)
	if err != nil {
		return fmt.Errorf("delete indexed original text %s: %w", id, err)
	}
	return nil
}

// Search matches entryID exactly and title as a case-insensitive substring,
// ordered by order_number.
// UpdateMetadata rewrites only the descriptive columns of an indexed row.
func (r *IndexRepo) UpdateMetadata(ctx context.Context, catalogueID int, id string, m models.Metadata, modified time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE original_text_index
SET title=$3, type=$4, version=$5, remark=$6, gmt_modified=$7
WHERE catalogue_id=$1 AND id=$2`, catalogueID, id, m.Title, m.Type, m.Version, m.Remark, modified)
	if err != nil {
		return fmt.Errorf("update indexed original text %s: %w", id, err)
	}
	return nil
}

func (r *IndexRepo) UpdateOrder(ctx context.Context, catalogueID int, id string, order int, modified time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE original_text_index
SET order_number=$3, gmt_modified=$4
WHERE catalogue_id=$1 AND id=$2`, catalogueID, id, order, modified)
	if err != nil {
		return fmt.Errorf("reorder indexed original text %s: %w", id, err)
	}
	return nil
}

func (r *IndexRepo) Search(ctx context.Context, catalogueID int, entryID, title string, page models.Page) ([]models.OriginalText, int64, error) {
	page = page.Normalize()
	pattern := "%" + escapeLike(strings.TrimSpace(title)) + "%"

	var total int64
	err := r.db.Pool.QueryRow(ctx, `
SELECT COUNT(*) FROM original_text_index
WHERE catalogue_id=$1 AND entry_id=$2 AND title ILIKE $3`, catalogueID, entryID, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count indexed original texts: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
SELECT `+indexColumns+`
FROM original_text_index
WHERE catalogue_id=$1 AND entry_id=$2 AND title ILIKE $3
ORDER BY order_number ASC, id ASC
LIMIT $4 OFFSET $5`, catalogueID, entryID, pattern, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("search original texts: %w", err)
	}
	defer rows.Close()

	out := make([]models.OriginalText, 0, page.Size)
	for rows.Next() {
		o, err := scanIndexRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate original texts: %w", err)
	}
	return out, total, nil
}

// MaxOrderNumber returns the largest order number under the entry, 0 when empty.
func (r *IndexRepo) MaxOrderNumber(ctx context.Context, catalogueID int, entryID string) (int, error) {
	var max int
	err := r.db.Pool.QueryRow(ctx, `
SELECT COALESCE(MAX(order_number), 0) FROM original_text_index
WHERE catalogue_id=$1 AND entry_id=$2`, catalogueID, entryID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max order number: %w", err)
	}
	return max, nil
}

func scanIndexRow(row pgx.Row) (models.OriginalText, error) {
	var (
		o             models.OriginalText
		contentStatus int
		pdfStatus     int
	)
	err := row.Scan(&o.CatalogueID, &o.ID, &o.EntryID, &o.Title, &o.Type, &o.Version, &o.Remark, &o.Name,
		&o.Size, &o.MD5, &o.OrderNumber, &o.ContentIndex, &contentStatus, &o.PDFMD5, &pdfStatus,
		&o.FileAttributesMap, &o.CreateTime, &o.GmtCreate, &o.GmtModified)
	if err != nil {
		return models.OriginalText{}, fmt.Errorf("scan indexed original text: %w", err)
	}
	o.ContentIndexStatus = models.ProcessStatus(contentStatus)
	o.PDFConverStatus = models.ProcessStatus(pdfStatus)
	return o, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

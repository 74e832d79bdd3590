package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-engine/internal/database"
)

// FaceRepository stores detected faces with pgvector embeddings.
type FaceRepository struct {
	pool *Pool
}

// interface compliance
var (
	_ database.FaceReader = (*FaceRepository)(nil)
	_ database.FaceWriter = (*FaceRepository)(nil)
)

// NewFaceRepository creates a face repository backed by the pool.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

const faceColumns = "id, tenant, photo_uid, face_index, embedding, bbox, det_score, dim, created_at"

func scanFaceRow(rows *sql.Rows) (database.StoredFace, error) {
	var f database.StoredFace
	var embedding pgvector.Vector
	var bbox pq.Float64Array
	if err := rows.Scan(&f.ID, &f.Tenant, &f.PhotoUID, &f.FaceIndex, &embedding, &bbox, &f.DetScore, &f.Dim, &f.CreatedAt); err != nil {
		return f, fmt.Errorf("scanning face row: %w", err)
	}
	f.Embedding = embedding.Slice()
	f.BBox = []float64(bbox)
	return f, nil
}

// AllFaces returns every stored face for the tenant in a stable order.
// Rows that cannot be decoded are skipped and counted, not fatal: one
// corrupt row must never wedge every rebuild.
func (r *FaceRepository) AllFaces(ctx context.Context, tenant string) ([]database.StoredFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+faceColumns+`
		FROM faces
		WHERE tenant = $1
		ORDER BY photo_uid, face_index, id
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("querying faces: %w", err)
	}
	defer rows.Close()

	var faces []database.StoredFace
	skipped := 0
	for rows.Next() {
		f, err := scanFaceRow(rows)
		if err != nil {
			skipped++
			continue
		}
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating faces: %w", err)
	}
	if skipped > 0 {
		log.Printf("[STORAGE] skipped %d unreadable face rows for tenant %s", skipped, tenant)
	}
	return faces, nil
}

// GetFaces returns the stored faces for a single photo.
func (r *FaceRepository) GetFaces(ctx context.Context, tenant, photoUID string) ([]database.StoredFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+faceColumns+`
		FROM faces
		WHERE tenant = $1 AND photo_uid = $2
		ORDER BY face_index
	`, tenant, photoUID)
	if err != nil {
		return nil, fmt.Errorf("querying faces for %s: %w", photoUID, err)
	}
	defer rows.Close()

	var faces []database.StoredFace
	skipped := 0
	for rows.Next() {
		f, err := scanFaceRow(rows)
		if err != nil {
			skipped++
			continue
		}
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating faces: %w", err)
	}
	if skipped > 0 {
		log.Printf("[STORAGE] skipped %d unreadable face rows for photo %s", skipped, photoUID)
	}
	return faces, nil
}

// CountFaces returns the number of stored faces for the tenant.
func (r *FaceRepository) CountFaces(ctx context.Context, tenant string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces WHERE tenant = $1", tenant).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting faces: %w", err)
	}
	return count, nil
}

// ReplaceFaces drops the photo's previous rows and inserts the new ones
// in one transaction, so a re-detected photo never duplicates faces.
func (r *FaceRepository) ReplaceFaces(ctx context.Context, tenant, photoUID string, faces []database.StoredFace) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM faces WHERE tenant = $1 AND photo_uid = $2", tenant, photoUID); err != nil {
		return fmt.Errorf("deleting old faces for %s: %w", photoUID, err)
	}

	for _, f := range faces {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO faces (tenant, photo_uid, face_index, embedding, bbox, det_score, dim)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, tenant, photoUID, f.FaceIndex, pgvector.NewVector(f.Embedding), pq.Array(f.BBox), f.DetScore, f.Dim)
		if err != nil {
			return fmt.Errorf("inserting face %d for %s: %w", f.FaceIndex, photoUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing faces for %s: %w", photoUID, err)
	}
	return nil
}

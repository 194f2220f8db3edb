package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-planner/internal/models"
)

// FileHistoryRepository persists the uploaded course file history. It
// survives schedule cleanup.
type FileHistoryRepository struct {
	db *sqlx.DB
}

// NewFileHistoryRepository constructs repository.
func NewFileHistoryRepository(db *sqlx.DB) *FileHistoryRepository {
	return &FileHistoryRepository{db: db}
}

// Record stores an upload and assigns its id.
func (r *FileHistoryRepository) Record(ctx context.Context, entry *models.FileHistory) error {
	if entry == nil {
		return fmt.Errorf("file history payload is nil")
	}
	if entry.UploadedAt.IsZero() {
		entry.UploadedAt = time.Now().UTC()
	}

	const query = `INSERT INTO file_history (file_name, fingerprint, course_count, uploaded_at) VALUES (?, ?, ?, ?) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(query), entry.FileName, entry.Fingerprint, entry.CourseCount, entry.UploadedAt).Scan(&entry.ID); err != nil {
		return fmt.Errorf("insert file history: %w", err)
	}
	return nil
}

// List returns uploads, newest first.
func (r *FileHistoryRepository) List(ctx context.Context) ([]models.FileHistory, error) {
	const query = `SELECT id, file_name, fingerprint, course_count, uploaded_at FROM file_history ORDER BY uploaded_at DESC, id DESC`
	var entries []models.FileHistory
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list file history: %w", err)
	}
	return entries, nil
}

// FindByFingerprint returns the most recent upload with the given content hash.
func (r *FileHistoryRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*models.FileHistory, error) {
	const query = `SELECT id, file_name, fingerprint, course_count, uploaded_at FROM file_history WHERE fingerprint = ? ORDER BY id DESC LIMIT 1`
	var entry models.FileHistory
	if err := r.db.GetContext(ctx, &entry, r.db.Rebind(query), fingerprint); err != nil {
		return nil, err
	}
	return &entry, nil
}

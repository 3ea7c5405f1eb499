// Package repo holds the Postgres-backed implementations of the actors
// package's store interfaces (MediaFileStore, ProcessingStatusStore,
// ReferenceStore, ImageStore), following the teacher's flat
// one-struct-per-table repository style
// (internal/repository/media_repository.go: plain db *sql.DB, $N
// placeholders, sql.ErrNoRows translated at the call site).
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

type MediaFiles struct {
	db *sql.DB
}

func NewMediaFiles(db *sql.DB) *MediaFiles {
	return &MediaFiles{db: db}
}

func (r *MediaFiles) Upsert(ctx context.Context, f domain.MediaFile) (domain.MediaFile, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	var techJSON []byte
	if f.TechnicalMetadata != nil {
		b, err := json.Marshal(f.TechnicalMetadata)
		if err != nil {
			return domain.MediaFile{}, errs.InvalidInput("repo.mediafiles.upsert", err)
		}
		techJSON = b
	}

	const stmt = `
		INSERT INTO media_files (id, library_id, path, filename, size, discovered_at,
			fingerprint_device_id, fingerprint_inode, fingerprint_size, fingerprint_mtime,
			fingerprint_weak_hash, technical_metadata)
		VALUES ($1,$2,$3,$4,$5,now(),$6,$7,$8,$9,$10,$11)
		ON CONFLICT (library_id, path) DO UPDATE SET
			size = EXCLUDED.size,
			fingerprint_device_id = EXCLUDED.fingerprint_device_id,
			fingerprint_inode = EXCLUDED.fingerprint_inode,
			fingerprint_size = EXCLUDED.fingerprint_size,
			fingerprint_mtime = EXCLUDED.fingerprint_mtime,
			fingerprint_weak_hash = EXCLUDED.fingerprint_weak_hash,
			technical_metadata = COALESCE(EXCLUDED.technical_metadata, media_files.technical_metadata)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, stmt, f.ID, f.LibraryID, f.Path, f.Filename, f.Size,
		f.Fingerprint.DeviceID, f.Fingerprint.Inode, f.Fingerprint.Size, f.Fingerprint.ModTime,
		nullIfEmpty(f.Fingerprint.WeakHash), nullIfEmpty(string(techJSON))).Scan(&f.ID)
	if err != nil {
		return domain.MediaFile{}, errs.Transient("repo.mediafiles.upsert", err)
	}
	return f, nil
}

func (r *MediaFiles) GetByPath(ctx context.Context, libraryID uuid.UUID, path string) (domain.MediaFile, bool, error) {
	const query = `
		SELECT id, library_id, path, filename, size, discovered_at,
		       fingerprint_device_id, fingerprint_inode, fingerprint_size, fingerprint_mtime,
		       fingerprint_weak_hash, technical_metadata
		FROM media_files WHERE library_id = $1 AND path = $2`

	var f domain.MediaFile
	var weakHash sql.NullString
	var techJSON sql.NullString
	var deviceID, inode sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, libraryID, path).Scan(
		&f.ID, &f.LibraryID, &f.Path, &f.Filename, &f.Size, &f.DiscoveredAt,
		&deviceID, &inode, &f.Fingerprint.Size, &f.Fingerprint.ModTime, &weakHash, &techJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MediaFile{}, false, nil
		}
		return domain.MediaFile{}, false, errs.Transient("repo.mediafiles.get_by_path", err)
	}
	if deviceID.Valid {
		v := uint64(deviceID.Int64)
		f.Fingerprint.DeviceID = &v
	}
	if inode.Valid {
		v := uint64(inode.Int64)
		f.Fingerprint.Inode = &v
	}
	f.Fingerprint.WeakHash = weakHash.String
	if techJSON.Valid && techJSON.String != "" {
		var tech domain.TechnicalMetadata
		if err := json.Unmarshal([]byte(techJSON.String), &tech); err == nil {
			f.TechnicalMetadata = &tech
		}
	}
	return f, true, nil
}

func (r *MediaFiles) ListPathsUnder(ctx context.Context, libraryID uuid.UUID, root string) ([]string, error) {
	const query = `SELECT path FROM media_files WHERE library_id = $1 AND path LIKE $2`
	rows, err := r.db.QueryContext(ctx, query, libraryID, root+"%")
	if err != nil {
		return nil, errs.Transient("repo.mediafiles.list_paths_under", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errs.Transient("repo.mediafiles.list_paths_under", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *MediaFiles) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM media_files WHERE id = $1`, id); err != nil {
		return errs.Transient("repo.mediafiles.delete", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

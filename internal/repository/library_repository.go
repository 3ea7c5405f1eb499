package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/JustinTDCT/orchestrator/internal/models"
	"github.com/google/uuid"
)

// LibraryRepository is the one piece of the teacher's HTTP-era repository
// layer this tree still needs: bootstrap.Build and control.Service both read
// and write `libraries` rows, nothing else. The per-user visibility queries
// (ListForUser, ListHomepageLibraries, ListSearchableLibraryIDs) and the
// permissions/folders tables they joined against belonged to the
// media-browser client and auth layer, both out of scope here.
type LibraryRepository struct {
	db *sql.DB
}

func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

const libraryColumns = `id, name, media_type, path, is_enabled, scan_on_startup,
	season_grouping, access_level, include_in_homepage, include_in_search,
	retrieve_metadata, adult_content_type, last_scan_at, created_at, updated_at`

func scanLibrary(row interface{ Scan(dest ...interface{}) error }) (*models.Library, error) {
	lib := &models.Library{}
	err := row.Scan(
		&lib.ID, &lib.Name, &lib.MediaType, &lib.Path,
		&lib.IsEnabled, &lib.ScanOnStartup,
		&lib.SeasonGrouping, &lib.AccessLevel,
		&lib.IncludeInHomepage, &lib.IncludeInSearch,
		&lib.RetrieveMetadata, &lib.AdultContentType,
		&lib.LastScanAt, &lib.CreatedAt, &lib.UpdatedAt,
	)
	return lib, err
}

func (r *LibraryRepository) Create(library *models.Library) error {
	query := `
		INSERT INTO libraries (id, name, media_type, path, is_enabled, scan_on_startup,
			season_grouping, access_level, include_in_homepage, include_in_search,
			retrieve_metadata, adult_content_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	return r.db.QueryRow(query, library.ID, library.Name, library.MediaType,
		library.Path, library.IsEnabled, library.ScanOnStartup,
		library.SeasonGrouping, library.AccessLevel,
		library.IncludeInHomepage, library.IncludeInSearch,
		library.RetrieveMetadata, library.AdultContentType).
		Scan(&library.CreatedAt, &library.UpdatedAt)
}

func (r *LibraryRepository) GetByID(id uuid.UUID) (*models.Library, error) {
	query := `SELECT ` + libraryColumns + ` FROM libraries WHERE id = $1`
	lib, err := scanLibrary(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("library not found")
	}
	if err != nil {
		return nil, err
	}
	return lib, nil
}

func (r *LibraryRepository) List() ([]*models.Library, error) {
	query := `SELECT ` + libraryColumns + ` FROM libraries ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	libraries := []*models.Library{}
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		libraries = append(libraries, lib)
	}
	return libraries, rows.Err()
}

func (r *LibraryRepository) Update(library *models.Library) error {
	query := `
		UPDATE libraries
		SET name = $1, path = $2, is_enabled = $3, scan_on_startup = $4,
		    season_grouping = $5, access_level = $6,
		    include_in_homepage = $7, include_in_search = $8,
		    retrieve_metadata = $9, adult_content_type = $10,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $11`

	result, err := r.db.Exec(query, library.Name, library.Path,
		library.IsEnabled, library.ScanOnStartup,
		library.SeasonGrouping, library.AccessLevel,
		library.IncludeInHomepage, library.IncludeInSearch,
		library.RetrieveMetadata, library.AdultContentType,
		library.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("library not found")
	}
	return nil
}

func (r *LibraryRepository) UpdateLastScan(id uuid.UUID) error {
	query := `UPDATE libraries SET last_scan_at = $1 WHERE id = $2`
	_, err := r.db.Exec(query, time.Now(), id)
	return err
}

func (r *LibraryRepository) Delete(id uuid.UUID) error {
	query := `DELETE FROM libraries WHERE id = $1`
	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("library not found")
	}
	return nil
}

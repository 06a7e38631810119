package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/zjrosen/registrar/internal/registry/domain"
)

// entryColumns is the list of columns to select for entry queries.
const entryColumns = `id, address, metadata_uri, salt, created_at, updated_at, destroyed_at`

// entryRepository implements domain.EntryRepository using SQLite.
type entryRepository struct {
	db *sql.DB
}

func newEntryRepository(db *sql.DB) *entryRepository {
	return &entryRepository{db: db}
}

var _ domain.EntryRepository = (*entryRepository)(nil)

// scanEntry scans a row into an EntryModel.
func scanEntry(scanner interface{ Scan(...any) error }) (*EntryModel, error) {
	var model EntryModel
	err := scanner.Scan(
		&model.ID, &model.Address, &model.MetadataURI, &model.Salt,
		&model.CreatedAt, &model.UpdatedAt, &model.DestroyedAt,
	)
	return &model, err
}

// Register allocates the next sequential identifier and inserts the entry
// under it in a single transaction. A failed insert rolls the counter back
// with the transaction, so no identifier is ever consumed by a failure.
func (r *entryRepository) Register(entry *domain.Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var nextID int64
	if err := tx.QueryRow(`SELECT value FROM counters WHERE name = 'next_id'`).Scan(&nextID); err != nil {
		return fmt.Errorf("read allocator counter: %w", err)
	}

	entry.SetID(uint64(nextID))
	model := toEntryModel(entry)

	if _, err := tx.Exec(
		`INSERT INTO entries (id, address, metadata_uri, salt, created_at, updated_at, destroyed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		model.ID, model.Address, model.MetadataURI, model.Salt,
		model.CreatedAt, model.UpdatedAt, model.DestroyedAt,
	); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	if _, err := tx.Exec(`UPDATE counters SET value = value + 1 WHERE name = 'next_id'`); err != nil {
		return fmt.Errorf("bump allocator counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

// FindByID retrieves an entry by identifier. Tombstoned entries are
// returned; only never-allocated identifiers fail.
func (r *entryRepository) FindByID(id uint64) (*domain.Entry, error) {
	row := r.db.QueryRow(
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`,
		int64(id),
	)
	model, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find entry by id: %w", err)
	}
	return model.toDomain(), nil
}

// Save persists mutations to an already registered entry.
func (r *entryRepository) Save(entry *domain.Entry) error {
	model := toEntryModel(entry)

	result, err := r.db.Exec(
		`UPDATE entries SET address = ?, metadata_uri = ?, salt = ?, updated_at = ?, destroyed_at = ?
		 WHERE id = ?`,
		model.Address, model.MetadataURI, model.Salt, model.UpdatedAt, model.DestroyedAt,
		model.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %d", domain.ErrEntryNotFound, entry.ID())
	}
	return nil
}

// NextID returns the identifier the next registration will assign.
func (r *entryRepository) NextID() (uint64, error) {
	var next int64
	if err := r.db.QueryRow(`SELECT value FROM counters WHERE name = 'next_id'`).Scan(&next); err != nil {
		return 0, fmt.Errorf("read allocator counter: %w", err)
	}
	return uint64(next), nil
}

// List retrieves entries matching the filter, ordered by identifier
// ascending.
func (r *entryRepository) List(filter domain.ListFilter) ([]*domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries`
	var args []any

	if !filter.IncludeDestroyed {
		query += ` WHERE destroyed_at IS NULL`
	}

	query += ` ORDER BY id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.Entry
	for rows.Next() {
		model, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}

	return entries, nil
}

// Close releases any resources held by the repository.
// This is a no-op because the connection is owned by the DB struct.
func (r *entryRepository) Close() error {
	return nil
}

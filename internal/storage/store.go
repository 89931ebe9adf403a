package storage

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// AnalysisCacheEntry represents a cached analysis result.
type AnalysisCacheEntry struct {
	Name            string
	Category        string
	Condition       string
	EstimatedValue  decimal.Decimal
	ConfidenceScore float64
	Description     string
	Insights        string
}

// Store defines the interface for credential and analysis cache persistence.
type Store interface {
	// GetCredential returns the decrypted credential for a provider, or ""
	// if none is stored.
	GetCredential(provider string) (string, error)
	SetCredential(provider, value string) error
	DeleteCredential(provider string) error

	GetAnalysisCache(imageHash string) (*AnalysisCacheEntry, error)
	SetAnalysisCache(imageHash string, entry *AnalysisCacheEntry) error
	PruneAnalysisCache(olderThan time.Duration) (int64, error)

	Close() error
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite with encrypted credentials.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based store.
// The dbPath is the path to the SQLite database file.
// The encryptionKey is used to encrypt/decrypt credentials.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// The file exists once the schema is created
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("failed to restrict database permissions: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	credentialsQuery := `
	CREATE TABLE IF NOT EXISTS credentials (
		provider TEXT PRIMARY KEY,
		encrypted_value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(credentialsQuery); err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}

	analysisCacheQuery := `
	CREATE TABLE IF NOT EXISTS analysis_cache (
		image_hash TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		condition TEXT NOT NULL,
		estimated_value TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		description TEXT NOT NULL,
		insights TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(analysisCacheQuery); err != nil {
		return fmt.Errorf("failed to create analysis_cache table: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetCredential retrieves and decrypts the credential stored for provider.
// Returns "", nil if none is stored.
func (s *SQLiteStore) GetCredential(provider string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encrypted string
	err := s.db.QueryRow(
		"SELECT encrypted_value FROM credentials WHERE provider = ?",
		provider,
	).Scan(&encrypted)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query credential: %w", err)
	}

	value, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(value), nil
}

// SetCredential encrypts and stores the credential for provider, replacing
// any existing one.
func (s *SQLiteStore) SetCredential(provider, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encrypted, err := Encrypt([]byte(value), s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO credentials (provider, encrypted_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			encrypted_value = excluded.encrypted_value,
			updated_at = excluded.updated_at
	`, provider, encrypted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// DeleteCredential removes the credential stored for provider.
func (s *SQLiteStore) DeleteCredential(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM credentials WHERE provider = ?", provider); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// GetAnalysisCache retrieves a cached analysis result by image hash.
// Returns nil, nil if no cache entry exists.
func (s *SQLiteStore) GetAnalysisCache(imageHash string) (*AnalysisCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry AnalysisCacheEntry
	err := s.db.QueryRow(`
		SELECT name, category, condition, estimated_value, confidence_score, description, insights
		FROM analysis_cache WHERE image_hash = ?
	`, imageHash).Scan(
		&entry.Name,
		&entry.Category,
		&entry.Condition,
		&entry.EstimatedValue,
		&entry.ConfidenceScore,
		&entry.Description,
		&entry.Insights,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis cache: %w", err)
	}

	return &entry, nil
}

// SetAnalysisCache stores an analysis result in the cache.
func (s *SQLiteStore) SetAnalysisCache(imageHash string, entry *AnalysisCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO analysis_cache (image_hash, name, category, condition, estimated_value, confidence_score, description, insights, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			condition = excluded.condition,
			estimated_value = excluded.estimated_value,
			confidence_score = excluded.confidence_score,
			description = excluded.description,
			insights = excluded.insights,
			created_at = excluded.created_at
	`, imageHash, entry.Name, entry.Category, entry.Condition, entry.EstimatedValue.String(),
		entry.ConfidenceScore, entry.Description, entry.Insights, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to cache analysis result: %w", err)
	}
	return nil
}

// PruneAnalysisCache removes cache entries older than the given duration.
func (s *SQLiteStore) PruneAnalysisCache(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.Exec(`DELETE FROM analysis_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune analysis cache: %w", err)
	}

	return result.RowsAffected()
}

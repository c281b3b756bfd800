package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// documentRow is the SQL representation of a document.
type documentRow struct {
	Collection string    `gorm:"primaryKey;size:64"`
	ID         string    `gorm:"primaryKey;size:64"`
	Body       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"index"`
}

func (documentRow) TableName() string { return "documents" }

// SQLStore is a DocumentStore on a relational database through gorm.
type SQLStore struct {
	db *gorm.DB
}

var _ ReadWriter = (*SQLStore)(nil)

// OpenSQL opens dsn and migrates the documents table. A postgres:// or
// postgresql:// dsn selects Postgres; anything else is a SQLite path
// (":memory:" included).
func OpenSQL(dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an open gorm connection and migrates the schema.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	log.Debug().Str("dialect", db.Dialector.Name()).Msg("SQL document store ready")
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) CreateDocument(ctx context.Context, collection string, data any) (string, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	row := documentRow{
		Collection: collection,
		ID:         documentID(data),
		Body:       string(body),
		CreatedAt:  time.Now().UTC(),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return "", fmt.Errorf("insert %s/%s: %w", collection, row.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return "", fmt.Errorf("%s/%s: %w", collection, row.ID, ErrConflict)
	}
	return row.ID, nil
}

func (s *SQLStore) GetDocument(ctx context.Context, collection, id string, out any) error {
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("select %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal([]byte(row.Body), out)
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

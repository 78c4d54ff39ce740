package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type problemRecord struct {
	ID              string `gorm:"primaryKey"`
	Title           string
	Description     string
	Difficulty      string
	InputFormat     string
	OutputFormat    string
	Constraints     string
	Example         string
	TestCases       []TestCase `gorm:"type:jsonb;serializer:json"`
	Tags            []string   `gorm:"type:jsonb;serializer:json"`
	LanguageSupport []string   `gorm:"type:jsonb;serializer:json"`
}

func (problemRecord) TableName() string { return "questions" }

func (r problemRecord) problem() Problem {
	return Problem{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		Difficulty:      r.Difficulty,
		InputFormat:     r.InputFormat,
		OutputFormat:    r.OutputFormat,
		Constraints:     r.Constraints,
		Example:         r.Example,
		TestCases:       r.TestCases,
		Tags:            r.Tags,
		LanguageSupport: r.LanguageSupport,
	}
}

func record(p Problem) problemRecord {
	return problemRecord{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		Difficulty:      p.Difficulty,
		InputFormat:     p.InputFormat,
		OutputFormat:    p.OutputFormat,
		Constraints:     p.Constraints,
		Example:         p.Example,
		TestCases:       p.TestCases,
		Tags:            p.Tags,
		LanguageSupport: p.LanguageSupport,
	}
}

// Store reads problems from the questions table.
type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return &Store{db: db}, nil
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Migrate creates the questions table and seeds it when empty.
func (s *Store) Migrate(ctx context.Context, seed []Problem) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&problemRecord{}); err != nil {
		return fmt.Errorf("migrate questions: %w", err)
	}

	var count int64
	if err := db.Model(&problemRecord{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if count > 0 || len(seed) == 0 {
		return nil
	}

	records := make([]problemRecord, len(seed))
	for i, p := range seed {
		records[i] = record(p)
	}
	if err := db.Create(&records).Error; err != nil {
		return fmt.Errorf("seed questions: %w", err)
	}
	return nil
}

func (s *Store) Random(ctx context.Context) (Problem, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&problemRecord{}).Count(&count).Error; err != nil {
		return Problem{}, fmt.Errorf("count questions: %w", err)
	}
	if count == 0 {
		return Problem{}, ErrNoProblems
	}

	var rec problemRecord
	err := db.Order("id").Offset(rand.IntN(int(count))).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Rows were deleted between the count and the read.
		return Problem{}, ErrNoProblems
	}
	if err != nil {
		return Problem{}, fmt.Errorf("pick random question: %w", err)
	}
	return rec.problem(), nil
}

func (s *Store) ByID(ctx context.Context, id string) (Problem, error) {
	var rec problemRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Problem{}, ErrNotFound
	}
	if err != nil {
		return Problem{}, fmt.Errorf("get question %s: %w", id, err)
	}
	return rec.problem(), nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

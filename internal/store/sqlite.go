// Package store persists aggregation results to a local SQLite
// database so batches can be queried after the fact.
package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gazemetrics/aoirun/internal/record"
	"github.com/gazemetrics/aoirun/internal/summary"
)

// RunRow is one sealed run as stored in the merged_runs table.
type RunRow struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	BatchID        string    `gorm:"column:batch_id;index"`
	File           string    `gorm:"column:file;index"`
	Recording      string    `gorm:"column:recording"`
	Participant    string    `gorm:"column:participant"`
	Position       string    `gorm:"column:position"`
	TOI            string    `gorm:"column:toi"`
	Interval       string    `gorm:"column:interval"`
	EventType      string    `gorm:"column:event_type"`
	Validity       string    `gorm:"column:validity"`
	AOI            string    `gorm:"column:aoi;index"`
	Start          float64   `gorm:"column:start_ms"`
	Stop           float64   `gorm:"column:stop_ms"`
	Duration       float64   `gorm:"column:duration_ms"`
	SegmentsMerged int       `gorm:"column:segments_merged"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (*RunRow) TableName() string { return "merged_runs" }

// SummaryRow is one per-AOI total, either overall (empty context
// columns) or per context group.
type SummaryRow struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	BatchID       string    `gorm:"column:batch_id;index"`
	File          string    `gorm:"column:file;index"`
	Scope         string    `gorm:"column:scope"` // "overall" or "group"
	Recording     string    `gorm:"column:recording"`
	Participant   string    `gorm:"column:participant"`
	Position      string    `gorm:"column:position"`
	TOI           string    `gorm:"column:toi"`
	Interval      string    `gorm:"column:interval"`
	EventType     string    `gorm:"column:event_type"`
	Validity      string    `gorm:"column:validity"`
	AOI           string    `gorm:"column:aoi;index"`
	Rows          int       `gorm:"column:rows"`
	Runs          int       `gorm:"column:runs"`
	TotalDuration float64   `gorm:"column:total_duration_ms"`
	FirstStart    float64   `gorm:"column:first_start_ms"`
	LastStop      float64   `gorm:"column:last_stop_ms"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (*SummaryRow) TableName() string { return "aoi_summaries" }

const (
	ScopeOverall = "overall"
	ScopeGroup   = "group"
)

// Store wraps the SQLite database handle.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&RunRow{}, &SummaryRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveRuns inserts all sealed runs for one processed file.
func (s *Store) SaveRuns(batchID, file string, runs []record.Run) error {
	if len(runs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]RunRow, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, RunRow{
			BatchID:        batchID,
			File:           file,
			Recording:      r.Context.Recording,
			Participant:    r.Context.Participant,
			Position:       r.Context.Position,
			TOI:            r.Context.TOI,
			Interval:       r.Context.Interval,
			EventType:      r.Context.EventType,
			Validity:       r.Context.Validity,
			AOI:            r.AOI,
			Start:          r.Start,
			Stop:           r.Stop,
			Duration:       r.Duration,
			SegmentsMerged: r.Count,
			CreatedAt:      now,
		})
	}
	if err := s.db.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert runs: %w", err)
	}

	return nil
}

// SaveSummary inserts the overall and per-group totals for one file.
func (s *Store) SaveSummary(batchID, file string, overall []summary.AOITotal, groups []summary.GroupTotal) error {
	now := time.Now()
	rows := make([]SummaryRow, 0, len(overall)+len(groups))
	for _, t := range overall {
		rows = append(rows, SummaryRow{
			BatchID:       batchID,
			File:          file,
			Scope:         ScopeOverall,
			AOI:           t.AOI,
			Rows:          t.Rows,
			Runs:          t.Runs,
			TotalDuration: t.TotalDuration,
			FirstStart:    t.FirstStart,
			LastStop:      t.LastStop,
			CreatedAt:     now,
		})
	}
	for _, g := range groups {
		rows = append(rows, SummaryRow{
			BatchID:       batchID,
			File:          file,
			Scope:         ScopeGroup,
			Recording:     g.Context.Recording,
			Participant:   g.Context.Participant,
			Position:      g.Context.Position,
			TOI:           g.Context.TOI,
			Interval:      g.Context.Interval,
			EventType:     g.Context.EventType,
			Validity:      g.Context.Validity,
			AOI:           g.AOI,
			Rows:          g.Rows,
			Runs:          g.Runs,
			TotalDuration: g.TotalDuration,
			FirstStart:    g.FirstStart,
			LastStop:      g.LastStop,
			CreatedAt:     now,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert summaries: %w", err)
	}

	return nil
}

// RunsForFile returns the stored runs for one file in insertion order.
func (s *Store) RunsForFile(batchID, file string) ([]RunRow, error) {
	var rows []RunRow
	err := s.db.Where("batch_id = ? AND file = ?", batchID, file).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	return rows, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

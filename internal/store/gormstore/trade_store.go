// Package gormstore persists executed trades with Gorm + SQLite.
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ladderbot/internal/engine"
	storemodel "ladderbot/internal/store/model"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tradeModel = storemodel.TradeModel

// TradeStore implements the engine's trade sink plus the read queries the
// HTTP layer serves.
type TradeStore struct {
	db *gorm.DB
}

var _ engine.TradeSink = (*TradeStore)(nil)

func NewTradeStore(path string) (*TradeStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("trade store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&tradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads while
	// keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &TradeStore{db: db}, nil
}

func (s *TradeStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record appends one trade. Detail keeps the full record as JSON so schema
// additions never lose data written by older builds.
func (s *TradeStore) Record(ctx context.Context, rec engine.TradeRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("trade store not initialized")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	detail, _ := json.Marshal(rec)
	m := tradeModel{
		UserID:          strings.TrimSpace(rec.UserID),
		Action:          string(rec.Action),
		Token:           strings.TrimSpace(rec.Token),
		Price:           rec.Price,
		AmountUSD:       rec.AmountUSD,
		ReferenceBefore: rec.ReferenceBefore,
		PnL:             rec.PnL,
		PartIndex:       rec.PartIndex,
		Status:          string(rec.Status),
		Detail:          datatypes.JSON(detail),
		TimestampMs:     rec.Timestamp.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// ListByUser returns the user's most recent trades, newest first.
func (s *TradeStore) ListByUser(ctx context.Context, userID string, limit int) ([]engine.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("trade store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []tradeModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]engine.TradeRecord, 0, len(models))
	for _, m := range models {
		out = append(out, modelToRecord(m))
	}
	return out, nil
}

// ListByDay returns the user's trades within the UTC day containing t,
// oldest first.
func (s *TradeStore) ListByDay(ctx context.Context, userID string, t time.Time) ([]engine.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("trade store not initialized")
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var models []tradeModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ? AND timestamp < ?",
			strings.TrimSpace(userID), start.UnixMilli(), end.UnixMilli()).
		Order("timestamp ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]engine.TradeRecord, 0, len(models))
	for _, m := range models {
		out = append(out, modelToRecord(m))
	}
	return out, nil
}

// TotalRealizedPnL sums the recorded sell pnl for a user.
func (s *TradeStore) TotalRealizedPnL(ctx context.Context, userID string) (float64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("trade store not initialized")
	}
	var total *float64
	err := s.db.WithContext(ctx).Model(&tradeModel{}).
		Where("user_id = ? AND pnl IS NOT NULL", strings.TrimSpace(userID)).
		Select("SUM(pnl)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func modelToRecord(m tradeModel) engine.TradeRecord {
	return engine.TradeRecord{
		UserID:          m.UserID,
		Timestamp:       time.UnixMilli(m.TimestampMs),
		Action:          engine.Action(m.Action),
		Token:           m.Token,
		Price:           m.Price,
		AmountUSD:       m.AmountUSD,
		ReferenceBefore: m.ReferenceBefore,
		PnL:             m.PnL,
		PartIndex:       m.PartIndex,
		Status:          engine.TradeStatus(m.Status),
	}
}

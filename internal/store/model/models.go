package model

import "gorm.io/datatypes"

// TradeModel is the persisted form of one executed trade.
type TradeModel struct {
	ID              int64          `gorm:"column:id;primaryKey"`
	UserID          string         `gorm:"column:user_id;index"`
	Action          string         `gorm:"column:action"`
	Token           string         `gorm:"column:token;index"`
	Price           float64        `gorm:"column:price"`
	AmountUSD       float64        `gorm:"column:amount_usd"`
	ReferenceBefore float64        `gorm:"column:reference_before"`
	PnL             *float64       `gorm:"column:pnl"`
	PartIndex       int            `gorm:"column:part_index"`
	Status          string         `gorm:"column:status"`
	Detail          datatypes.JSON `gorm:"column:detail"`
	TimestampMs     int64          `gorm:"column:timestamp;index"`
}

func (TradeModel) TableName() string { return "trades" }

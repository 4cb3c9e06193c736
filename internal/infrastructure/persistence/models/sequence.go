package models

import "time"

// SequenceCounterModel is the counter row behind the database sequence
// strategy. LastValue is the last number handed out for (company, branch, kind).
type SequenceCounterModel struct {
	CompanyID int64     `gorm:"primaryKey;autoIncrement:false"`
	BranchID  int64     `gorm:"primaryKey;autoIncrement:false"`
	Kind      string    `gorm:"primaryKey;type:varchar(20)"`
	LastValue int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceCounterModel) TableName() string {
	return "document_sequences"
}

package models

import "time"

// Photo is a single photograph extracted from a ScanBatch, deskewed and
// cropped, stored under {index}_{scan file name}.
type Photo struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	BatchID   uint      `gorm:"index;not null;uniqueIndex:idx_batch_photo_index"`
	Batch     ScanBatch `gorm:"foreignKey:BatchID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Index     int       `gorm:"column:photo_index;not null;uniqueIndex:idx_batch_photo_index"` // "index" is reserved in Postgres
	FileName  string    `gorm:"size:255;not null"`
	StorePath string    `gorm:"column:store_path;size:512"`
	ThumbPath string    `gorm:"column:thumb_path;size:512"`
	Width     int
	Height    int
	// TakenAt is filled from the printed date stamp when corner OCR finds one
	TakenAt    *time.Time `gorm:"index"`
	TakenAtRaw string     `gorm:"size:64"` // raw OCR text the date was parsed from
}

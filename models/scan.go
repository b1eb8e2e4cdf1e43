package models

import "time"

// ScanBatch is one scanned sheet of photos: the original flatbed scan as
// uploaded or picked up from disk, plus the outcome of dividing it.
type ScanBatch struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      uint   `gorm:"index;not null;uniqueIndex:idx_user_scan_file"`
	FileName    string `gorm:"size:255;not null;uniqueIndex:idx_user_scan_file"`
	StorePath   string `gorm:"column:store_path;size:512"` // relative path of the stored scan
	ContentType string `gorm:"size:128"`
	Width       int
	Height      int
	PhotoCount  int `gorm:"default:0"`
	// Mark the batch as failed when convert cannot process it (record kept so
	// the scan can be reviewed and rescanned instead of silently vanishing)
	Failed       bool    `gorm:"default:false;index"`
	FailedReason string  `gorm:"size:255"`
	Photos       []Photo `gorm:"foreignKey:BatchID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

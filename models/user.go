package models

import "time"

// User owns scan batches. Accounts are local (bcrypt hash) with a single role.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string      `gorm:"size:255;not null;unique"`
	HashedPassword []byte      `gorm:"not null"`
	Scans          []ScanBatch `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	RoleID         *uint       `gorm:"index"`
	Role           Role        `gorm:"foreignKey:RoleID;references:ID"`
}

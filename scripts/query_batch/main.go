package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// local lightweight models to avoid importing the whole models package
type User struct {
	ID       uint
	Username string
}
type ScanBatch struct {
	ID           uint
	UserID       uint
	FileName     string
	StorePath    string
	PhotoCount   int
	Failed       bool
	FailedReason string
}
type Photo struct {
	ID        uint
	BatchID   uint
	Index     int `gorm:"column:photo_index"`
	FileName  string
	StorePath string
	TakenAt   *time.Time
}

func (ScanBatch) TableName() string { return "scan_batches" }
func (Photo) TableName() string     { return "photos" }

func main() {
	username := flag.String("username", "", "username")
	file := flag.String("file", "", "scan file name")
	flag.Parse()
	if *username == "" || *file == "" {
		log.Fatal("--username and --file required")
	}
	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in env")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	var u User
	if err := db.Where("username = ?", *username).First(&u).Error; err != nil {
		log.Fatalf("user: %v", err)
	}
	var b ScanBatch
	if err := db.Where("user_id = ? AND file_name = ?", u.ID, *file).Order("id desc").First(&b).Error; err != nil {
		log.Fatalf("batch: %v", err)
	}
	fmt.Printf("batch id=%d file=%s photos=%d failed=%v reason=%q store=%s\n",
		b.ID, b.FileName, b.PhotoCount, b.Failed, b.FailedReason, b.StorePath)
	var photos []Photo
	if err := db.Where("batch_id = ?", b.ID).Order("photo_index").Find(&photos).Error; err != nil {
		log.Fatalf("photos: %v", err)
	}
	for _, p := range photos {
		taken := "-"
		if p.TakenAt != nil {
			taken = p.TakenAt.Format("2006-01-02")
		}
		fmt.Printf("  %d: %s taken=%s store=%s\n", p.Index, p.FileName, taken, p.StorePath)
	}
}

package report

import (
	"fmt"
	"log"
	"os"
	"time"

	"scansplit/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mustDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	return gdb
}

// RunReport prints a month-bounded digitization report for username (month in
// YYYY-MM): batches scanned and photos extracted that month, plus photos whose
// recovered date stamp falls in that month. Optionally lists matching batches.
func RunReport(username, month string, list bool) {
	gdb := mustDBFromEnv()

	var user models.User
	if err := gdb.Where("username = ?", username).First(&user).Error; err != nil {
		log.Fatalf("user not found: %v", err)
	}

	t, err := time.Parse("2006-01", month)
	if err != nil {
		log.Fatalf("invalid month format, expected YYYY-MM: %v", err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var batches, failed, photos, stamped int64
	if err := gdb.Raw(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN failed THEN 1 ELSE 0 END),0), COALESCE(SUM(photo_count),0)
		FROM scan_batches WHERE user_id = ? AND created_at >= ? AND created_at < ?`,
		user.ID, start, end).Row().Scan(&batches, &failed, &photos); err != nil {
		log.Fatalf("query failed: %v", err)
	}
	if err := gdb.Raw(`SELECT COUNT(*) FROM photos p JOIN scan_batches b ON b.id = p.batch_id
		WHERE b.user_id = ? AND p.taken_at >= ? AND p.taken_at < ?`,
		user.ID, start, end).Row().Scan(&stamped); err != nil {
		log.Fatalf("query failed: %v", err)
	}

	fmt.Printf("Report for user=%s month=%s (UTC):\n", user.Username, month)
	fmt.Printf("  batches=%d failed=%d photos=%d date_stamped_in_month=%d\n", batches, failed, photos, stamped)

	if list {
		var rows []models.ScanBatch
		if err := gdb.Where("user_id = ? AND created_at >= ? AND created_at < ?", user.ID, start, end).Order("id").Find(&rows).Error; err != nil {
			log.Fatalf("fetch rows failed: %v", err)
		}
		for _, r := range rows {
			status := "ok"
			if r.Failed {
				status = "failed: " + r.FailedReason
			}
			fmt.Printf("%d|%s|%d photos|%s|%s\n", r.ID, r.FileName, r.PhotoCount, status, r.CreatedAt.Format(time.RFC3339))
		}
	}
}

package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"scansplit/models"
	"scansplit/pkg/datestamp"
	"scansplit/pkg/magick"
)

// Global DB handle for helper funcs
var db *gorm.DB

// global flags (parsed in main)
var (
	verbose bool
	dateOCR bool
	outBase string
)

// MIME mapping to avoid opening files repeatedly
var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
}

// preload cache of existing batches keyed by scan file name
type preloadState struct {
	batchesByFile map[string]*models.ScanBatch
	mu            sync.RWMutex
}

func newPreloadState() *preloadState {
	return &preloadState{batchesByFile: make(map[string]*models.ScanBatch, 1024)}
}

func (ps *preloadState) getBatch(name string) (*models.ScanBatch, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	b, ok := ps.batchesByFile[name]
	return b, ok
}
func (ps *preloadState) putBatch(b *models.ScanBatch) {
	ps.mu.Lock()
	ps.batchesByFile[b.FileName] = b
	ps.mu.Unlock()
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

// Main: scans a directory of flatbed scan batches, divides each into photos with
// ImageMagick, records ScanBatch/Photo rows, optional watch mode and date-stamp OCR.
func main() {
	dirFlag := flag.String("dir", "scans/incoming", "directory to scan for batch images")
	flag.StringVar(&outBase, "out", "photos", "base directory for extracted photos")
	userID := flag.Uint("user-id", 0, "User ID to assign batches to (if omitted attempts admin user)")
	dryRun := flag.Bool("dry-run", false, "Skip all DB queries and writes; just list / optionally detect (see --detect)")
	detect := flag.Bool("detect", false, "In dry-run: actually run detection to show how many photos each scan contains")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.BoolVar(&dateOCR, "date-ocr", false, "OCR photo corners for printed date stamps")
	flag.Parse()

	if err := magick.LookPathConvert(); err != nil {
		log.Fatalf("%v; install ImageMagick first", err)
	}
	magick.Verbose = verbose

	if *dryRun {
		log.Printf("Dry-run: scanning %s (no DB interaction)", *dirFlag)
		files := listScanFiles(*dirFlag)
		log.Printf("Found %d candidate files", len(files))
		if *detect {
			for _, f := range files {
				regions, err := magick.DetectRegions(filepath.Join(*dirFlag, f), magick.DefaultOptions())
				if err != nil {
					log.Printf("detect %s failed: %v", f, err)
					continue
				}
				log.Printf("%s would split into %d photos", f, len(regions))
			}
		}
		return
	}

	db = mustInitDBFromEnv()
	user := resolveUser(*userID)
	ps := preloadBatches(user)
	log.Printf("Preloaded: batches=%d", len(ps.batchesByFile))

	files := listScanFiles(*dirFlag)
	log.Printf("Scanning %d files (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(*dirFlag, user, ps, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(*dirFlag, user, ps, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

// preloadBatches fetches existing batches to minimize per-file queries.
func preloadBatches(user models.User) *preloadState {
	ps := newPreloadState()
	var batches []models.ScanBatch
	if err := db.Where("user_id = ?", user.ID).Find(&batches).Error; err == nil {
		for i := range batches {
			b := batches[i]
			ps.batchesByFile[b.FileName] = &b
		}
	}
	return ps
}

// resolveUser finds the owning user either by explicit id or by admin username.
func resolveUser(id uint) models.User {
	var u models.User
	if id != 0 {
		if err := db.First(&u, id).Error; err != nil {
			log.Fatalf("failed to find user id %d: %v", id, err)
		}
		return u
	}
	if err := db.Where("username = ?", "admin").First(&u).Error; err != nil {
		log.Fatalf("no --user-id provided and admin user not found: %v", err)
	}
	return u
}

func listScanFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func watchDirectory(dir string, user models.User, ps *preloadState, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending files; scanners write large files
		// slowly, so wait until a file stops changing before processing it
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 500*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	// Use worker pool for watch events too
	go runWorkerPool(dir, user, ps, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}

func isSupportedExt(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := extMime[strings.ToLower(filepath.Ext(name))]
	return ok
}

func mimeFromExt(name string) string {
	return extMime[strings.ToLower(filepath.Ext(name))]
}

// worker pool orchestrator
func runWorkerPool(dir string, user models.User, ps *preloadState, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				processSingleScan(dir, name, user, ps)
			}
		}()
	}
	// feed initial
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		// also relay from extra channels if provided
		for _, ch := range extraCh {
			go func(c <-chan string) {
				for n := range c {
					fileCh <- n
				}
			}(ch)
		}
		// if no extraCh (scan only) close when done
		if len(extraCh) == 0 {
			close(fileCh)
		}
	}()
	if len(extraCh) == 0 {
		wg.Wait()
	}
}

// processSingleScan divides one scan file into photos and records the result.
// Idempotent: a batch that already succeeded is skipped, a failed one is retried.
func processSingleScan(dir, name string, user models.User, ps *preloadState) {
	filePath := filepath.Join(dir, name)

	batch, exists := ps.getBatch(name)
	if exists && !batch.Failed {
		logV("SKIP batch exists %s", name)
		return
	}

	if !exists {
		newBatch := models.ScanBatch{
			UserID:      user.ID,
			FileName:    name,
			StorePath:   filepath.ToSlash(filePath),
			ContentType: mimeFromExt(name),
		}
		if info, err := magick.Probe(filePath); err == nil {
			newBatch.Width = info.Width
			newBatch.Height = info.Height
		} else {
			log.Printf("WARN unreadable scan %s: %v", name, err)
			return
		}
		if err := db.Create(&newBatch).Error; err != nil {
			if isUniqueConstraintError(err) { // race: someone else created
				if err2 := db.Where("user_id = ? AND file_name = ?", user.ID, name).First(&newBatch).Error; err2 != nil {
					log.Printf("WARN fetch after race failed %s: %v", name, err2)
					return
				}
			} else {
				log.Printf("ERROR create batch %s: %v", name, err)
				return
			}
		}
		ps.putBatch(&newBatch)
		batch = &newBatch
		log.Printf("NEW batch id=%d file=%s", newBatch.ID, name)
	}

	outDir := filepath.Join(outBase, strconv.FormatUint(uint64(batch.ID), 10))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Printf("ERROR mkdir %s: %v", outDir, err)
		return
	}

	extracted, err := magick.Divide(filePath, outDir, magick.DefaultOptions())
	if err != nil {
		reason := err.Error()
		if len(reason) > 255 {
			reason = reason[:255]
		}
		batch.Failed = true
		batch.FailedReason = reason
		_ = db.Save(batch).Error
		log.Printf("FAIL divide %s: %v", name, err)
		return
	}

	count := 0
	for _, ex := range extracted {
		photo := models.Photo{
			BatchID:   batch.ID,
			Index:     ex.Index,
			FileName:  filepath.Base(ex.Path),
			StorePath: filepath.ToSlash(ex.Path),
		}
		if info, err := magick.Probe(ex.Path); err == nil {
			photo.Width = info.Width
			photo.Height = info.Height
		}
		if dateOCR {
			if t, raw, err := datestamp.Extract(ex.Path); err == nil {
				photo.TakenAt = &t
				photo.TakenAtRaw = raw
				logV("DATE %s -> %s (raw %q)", photo.FileName, t.Format("2006-01-02"), raw)
			} else if err != datestamp.ErrNoDate {
				logV("date OCR %s: %v", photo.FileName, err)
			}
		}
		if err := db.Create(&photo).Error; err != nil {
			if !isUniqueConstraintError(err) {
				log.Printf("ERROR create photo %s: %v", photo.FileName, err)
				continue
			}
			// rerun after partial failure: row already there
		}
		count++
	}
	batch.Failed = false
	batch.FailedReason = ""
	batch.PhotoCount = count
	if err := db.Save(batch).Error; err != nil {
		log.Printf("ERROR update batch %d: %v", batch.ID, err)
		return
	}
	log.Printf("OK %s -> %d photos", name, count)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}

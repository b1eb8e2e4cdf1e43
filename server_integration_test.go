package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	t.Setenv("SCAN_BASE", t.TempDir())
	t.Setenv("PHOTO_BASE", t.TempDir())
	initDB()
	r := gin.Default()
	setupRoutes(r)
	return r
}

// writeTestScan renders a white sheet with two dark rectangles, which divides
// into two photos when convert is installed.
func writeTestScan(t *testing.T) string {
	t.Helper()
	sheet := imaging.New(600, 400, color.NRGBA{255, 255, 255, 255})
	photo1 := imaging.New(200, 150, color.NRGBA{40, 40, 40, 255})
	photo2 := imaging.New(180, 140, color.NRGBA{60, 50, 40, 255})
	sheet = imaging.Paste(sheet, photo1, image.Pt(40, 40))
	sheet = imaging.Paste(sheet, photo2, image.Pt(340, 200))
	path := filepath.Join(t.TempDir(), "batch.png")
	if err := imaging.Save(sheet, path); err != nil {
		t.Fatalf("write scan fixture: %v", err)
	}
	return path
}

func TestScanUploadFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": "scanner1", "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": "scanner1", "password": "pass123"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Upload a scan (multipart)
	scanPath := writeTestScan(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", filepath.Base(scanPath))
	data, _ := os.ReadFile(scanPath)
	_, _ = fw.Write(data)
	_ = mw.Close()
	resp = performRequest(r, http.MethodPost, "/scans", &buf, token, mw.FormDataContentType())
	// 422 is acceptable when convert is not installed on the test host;
	// the batch must still have been recorded
	if resp.Code != 200 && resp.Code != 422 {
		t.Fatalf("upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 4. List scans: the batch must appear either way
	resp = performRequest(r, http.MethodGet, "/scans", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list scans failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var batches []map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &batches)
	if len(batches) == 0 {
		t.Fatalf("expected at least one batch, got none: %s", resp.Body.String())
	}

	// 5. Unauthorized access is rejected
	resp = performRequest(r, http.MethodGet, "/scans", nil, "", "")
	if resp.Code != 401 {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

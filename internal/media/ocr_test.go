package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecognizeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ocr" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req ocrRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.ImagePath != "/tmp/photo.jpg" {
			t.Errorf("unexpected image path: %q", req.ImagePath)
		}
		json.NewEncoder(w).Encode(ocrResponse{Text: "  TOTAL: R142.50  "})
	}))
	defer srv.Close()

	client := NewOCRClient(srv.URL + "/")
	got := client.Recognize(context.Background(), "/tmp/photo.jpg")
	if got != "TOTAL: R142.50" {
		t.Errorf("unexpected recognized text: %q", got)
	}
}

func TestRecognizeFailuresDegradeToPlaceholder(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"error status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		},
		"empty text": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ocrResponse{Text: "   "})
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			client := NewOCRClient(srv.URL)
			if got := client.Recognize(context.Background(), "/tmp/photo.jpg"); got != OCRPlaceholder {
				t.Errorf("expected placeholder, got %q", got)
			}
		})
	}
}

func TestRecognizeUnreachableEndpoint(t *testing.T) {
	client := NewOCRClient("http://127.0.0.1:1")
	if got := client.Recognize(context.Background(), "/tmp/photo.jpg"); got != OCRPlaceholder {
		t.Errorf("expected placeholder, got %q", got)
	}
}

func TestAppendRecognized(t *testing.T) {
	got := AppendRecognized("check this out", "invoice #42")
	if got != "check this out\n\n[image text]\ninvoice #42" {
		t.Errorf("unexpected merge: %q", got)
	}

	got = AppendRecognized("", "invoice #42")
	if got != "[image text]\ninvoice #42" {
		t.Errorf("caption-less merge: %q", got)
	}

	if got := AppendRecognized("check this out", ""); got != "check this out" {
		t.Errorf("empty recognition must leave the body alone: %q", got)
	}
}

func TestStoreSaveAndLimits(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	path, err := store.Save([]byte{0xFF, 0xD8, 0xFF}, ".jpg")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasSuffix(path, ".jpg") {
		t.Errorf("extension not applied: %q", path)
	}
	if filepath.Dir(path) != filepath.Join(store.BaseDir(), "inbound") {
		t.Errorf("saved outside inbound dir: %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) != 3 {
		t.Errorf("saved bytes unreadable: %v", err)
	}

	if _, err := store.Save(make([]byte, MaxMediaBytes+1), ".jpg"); err == nil {
		t.Error("oversize attachment must be rejected")
	}
}

func TestMimeToExt(t *testing.T) {
	if got := MimeToExt("image/png"); got != ".png" {
		t.Errorf("png: %q", got)
	}
	if got := MimeToExt("application/pdf"); got != ".bin" {
		t.Errorf("unknown mime: %q", got)
	}
}

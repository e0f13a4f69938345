package youtube_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"loopforge/internal/services"
	"loopforge/internal/services/youtube"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

func writeArtifact(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loop.mp4")
	data := bytes.Repeat([]byte{0xAB}, size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestUploadChunked(t *testing.T) {
	const mib = 1024 * 1024
	artifact := writeArtifact(t, 2*mib+512*1024)

	var received bytes.Buffer
	var ranges []string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("session method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization = %q", got)
		}
		var body struct {
			Snippet struct {
				Title      string   `json:"title"`
				Tags       []string `json:"tags"`
				CategoryID string   `json:"categoryId"`
			} `json:"snippet"`
			Status struct {
				PrivacyStatus           string `json:"privacyStatus"`
				SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
			} `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode metadata: %v", err)
		}
		if body.Snippet.Title != "Rain Loop" || body.Snippet.CategoryID != "22" {
			t.Errorf("unexpected snippet: %+v", body.Snippet)
		}
		if body.Status.PrivacyStatus != "private" || body.Status.SelfDeclaredMadeForKids {
			t.Errorf("unexpected status: %+v", body.Status)
		}
		w.Header().Set("Location", server.URL+"/session/upload-1")
		w.WriteHeader(http.StatusOK)
	})

	total := int64(2*mib + 512*1024)
	mux.HandleFunc("/session/upload-1", func(w http.ResponseWriter, r *http.Request) {
		ranges = append(ranges, r.Header.Get("Content-Range"))
		chunk, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read chunk: %v", err)
		}
		received.Write(chunk)
		if int64(received.Len()) < total {
			w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", received.Len()-1))
			w.WriteHeader(308)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "vid-123"})
	})

	client, err := youtube.New(staticToken("tok-1"), 1, youtube.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var fractions []float64
	id, err := client.Upload(context.Background(), artifact, youtube.Metadata{
		Title:         "Rain Loop",
		Description:   "8 hours of rain",
		Tags:          []string{"rain", "asmr"},
		CategoryID:    "22",
		PrivacyStatus: "private",
	}, func(fraction float64) {
		fractions = append(fractions, fraction)
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if id != "vid-123" {
		t.Fatalf("video id = %q", id)
	}
	if int64(received.Len()) != total {
		t.Fatalf("server received %d bytes, want %d", received.Len(), total)
	}

	wantRanges := []string{
		fmt.Sprintf("bytes 0-%d/%d", mib-1, total),
		fmt.Sprintf("bytes %d-%d/%d", mib, 2*mib-1, total),
		fmt.Sprintf("bytes %d-%d/%d", 2*mib, total-1, total),
	}
	if len(ranges) != len(wantRanges) {
		t.Fatalf("ranges = %v", ranges)
	}
	for i, want := range wantRanges {
		if ranges[i] != want {
			t.Fatalf("range[%d] = %q, want %q", i, ranges[i], want)
		}
	}

	if len(fractions) == 0 || fractions[len(fractions)-1] != 1 {
		t.Fatalf("progress should end at 1: %v", fractions)
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Fatalf("progress must be monotonic: %v", fractions)
		}
	}
}

func TestUploadSessionRejected(t *testing.T) {
	artifact := writeArtifact(t, 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quotaExceeded"}`, http.StatusForbidden)
	}))
	defer server.Close()

	client, err := youtube.New(staticToken("tok-1"), 1, youtube.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Upload(context.Background(), artifact, youtube.Metadata{Title: "x"}, nil)
	if !errors.Is(err, services.ErrAuthUnavailable) {
		t.Fatalf("expected auth marker for 403, got %v", err)
	}
}

func TestUploadServerError(t *testing.T) {
	artifact := writeArtifact(t, 1024)
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", server.URL+"/session/x")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session/x", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	})

	client, err := youtube.New(staticToken("tok-1"), 1, youtube.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Upload(context.Background(), artifact, youtube.Metadata{Title: "x"}, nil)
	if !errors.Is(err, services.ErrUploadTransport) {
		t.Fatalf("expected transport marker for 503, got %v", err)
	}
}

func TestUploadMissingArtifact(t *testing.T) {
	client, err := youtube.New(staticToken("tok-1"), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.Upload(context.Background(), "/no/such/file.mp4", youtube.Metadata{Title: "x"}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

package faceembed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"bmp", []byte{0x42, 0x4D, 0, 0, 0, 0, 0, 0}, "image/bmp"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("plain text data"), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestClient_EmbedFaces(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotContentType = header.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(FaceResponse{
			FacesCount: 1,
			Faces: []FaceDetection{{
				FaceIndex: 0,
				Dim:       3,
				Embedding: []float32{0.1, 0.2, 0.3},
				BBox:      []float64{10, 20, 110, 140},
				DetScore:  0.93,
			}},
			Model: "buffalo_l",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3, 4}

	resp, err := client.EmbedFaces(context.Background(), img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/embed/face" {
		t.Errorf("expected path /embed/face, got %s", gotPath)
	}
	if gotContentType != "image/jpeg" {
		t.Errorf("expected part content type image/jpeg, got %s", gotContentType)
	}
	if string(gotBody) != string(img) {
		t.Error("expected image bytes to be uploaded unchanged")
	}
	if resp.FacesCount != 1 || len(resp.Faces) != 1 {
		t.Fatalf("expected 1 face, got %+v", resp)
	}
	if resp.Faces[0].DetScore != 0.93 || len(resp.Faces[0].Embedding) != 3 {
		t.Errorf("unexpected face: %+v", resp.Faces[0])
	}
	if resp.Model != "buffalo_l" {
		t.Errorf("expected model buffalo_l, got %s", resp.Model)
	}
}

func TestClient_DetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect/face" {
			t.Errorf("expected path /detect/face, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"faces_count":0,"faces":[],"model":"buffalo_l"}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, 0).DetectFaces(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.FacesCount != 0 {
		t.Errorf("expected no faces, got %d", resp.FacesCount)
	}
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).EmbedFaces(context.Background(), []byte("image"))
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestClient_Ping(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected path /health, got %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("expected healthy ping, got %v", err)
	}

	healthy = false
	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected ping error for unhealthy server")
	}
}

func TestNewClient_DefaultURL(t *testing.T) {
	if got := NewClient("", 0).BaseURL(); got != defaultEmbeddingURL {
		t.Errorf("expected default URL %s, got %s", defaultEmbeddingURL, got)
	}
}

package downloader

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestDownloadFreshFetch(t *testing.T) {
	body := []byte("artifact-contents-v1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "artifact.bin")

	got, err := Download(context.Background(), Options{
		URL:          srv.URL,
		DestPath:     dest,
		ExpectedHash: sha256Hex(body),
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got != dest {
		t.Errorf("Download returned %q, want %q", got, dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(body) {
		t.Errorf("downloaded content = %q, want %q", data, body)
	}
	if _, ok := readSidecar(dest); !ok {
		t.Errorf("expected sidecar hash file to be written")
	}
}

func TestDownloadSkipsWhenAlreadyValid(t *testing.T) {
	body := []byte("cached-contents")
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "artifact.bin")
	hash := sha256Hex(body)

	opts := Options{URL: srv.URL, DestPath: dest, ExpectedHash: hash}
	if _, err := Download(context.Background(), opts); err != nil {
		t.Fatalf("first Download: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected 1 server hit after first download, got %d", hits)
	}

	if _, err := Download(context.Background(), opts); err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if hits != 1 {
		t.Errorf("expected second Download to skip the network, got %d hits", hits)
	}
}

func TestDownloadRejectsHashMismatch(t *testing.T) {
	body := []byte("tampered-or-wrong-artifact")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "artifact.bin")

	_, err := Download(context.Background(), Options{
		URL:          srv.URL,
		DestPath:     dest,
		ExpectedHash: sha256Hex([]byte("some-other-content")),
		MaxRetries:   1,
	})
	if !IsIntegrityFailure(err) {
		t.Fatalf("expected integrity failure, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("expected mismatched artifact to be removed")
	}
}

func TestDownloadVerifiesSignature(t *testing.T) {
	body := []byte("signed-artifact-bytes")
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sig := ed25519.Sign(priv, body)
	sigB64 := base64.StdEncoding.EncodeToString(sig)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "artifact.bin")

	if _, err := Download(context.Background(), Options{
		URL: srv.URL, DestPath: dest, ExpectedHash: sha256Hex(body),
		Signature: sigB64, PublicKey: pub,
	}); err != nil {
		t.Fatalf("Download with valid signature: %v", err)
	}

	dest2 := filepath.Join(dir, "artifact2.bin")
	_, err = Download(context.Background(), Options{
		URL: srv.URL, DestPath: dest2, ExpectedHash: sha256Hex(body),
		Signature: "", PublicKey: pub, MaxRetries: 1,
	})
	if !IsIntegrityFailure(err) {
		t.Fatalf("expected missing-signature failure, got %v", err)
	}
}

func TestDownloadResumesPartialFile(t *testing.T) {
	body := []byte(strings.Repeat("0123456789", 100))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHdr := r.Header.Get("Range")
		if rangeHdr == "" {
			w.Write(body)
			return
		}
		trimmed := strings.TrimSuffix(strings.TrimPrefix(rangeHdr, "bytes="), "-")
		start, _ := strconv.Atoi(trimmed)
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[start:])
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "artifact.bin")
	partial := body[:500]
	if err := os.WriteFile(dest+".part", partial, 0644); err != nil {
		t.Fatalf("seed partial file: %v", err)
	}

	got, err := Download(context.Background(), Options{
		URL: srv.URL, DestPath: dest, ExpectedHash: sha256Hex(body),
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(body) {
		t.Errorf("resumed download produced %d bytes, want %d", len(data), len(body))
	}
}


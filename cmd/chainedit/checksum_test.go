package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bin")
	data := []byte("chainedit test data")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := sha256File(path)
	require.NoError(t, err)
	h := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(h[:]), got)

	_, err = sha256File("/nonexistent/file")
	assert.Error(t, err)
}

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("archive"), 0o644))
	h := sha256.Sum256([]byte("archive"))
	want := hex.EncodeToString(h[:])

	assert.NoError(t, verifyChecksum(path, want))
	assert.NoError(t, verifyChecksum(path, strings.ToUpper(want)))
	err := verifyChecksum(path, strings.Repeat("0", 64))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestParseChecksumFile(t *testing.T) {
	digest := "abc123def456abc123def456abc123def456abc123def456abc123def456abcd"
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "two-space format",
			input: digest + "  mermaid-ascii_Linux_x86_64.tar.gz\n",
			want:  map[string]string{"mermaid-ascii_Linux_x86_64.tar.gz": digest},
		},
		{
			name:  "binary marker",
			input: digest + " *file.tar.gz\n",
			want:  map[string]string{"file.tar.gz": digest},
		},
		{
			name:  "uppercase digest normalized",
			input: strings.ToUpper(digest) + " file.tar.gz\n",
			want:  map[string]string{"file.tar.gz": digest},
		},
		{name: "empty input", input: "", want: map[string]string{}},
		{name: "blank lines", input: "\n  \n\n", want: map[string]string{}},
		{name: "no filename", input: digest + "\n", want: map[string]string{}},
		{name: "short hash skipped", input: "abc123  file.tar.gz\n", want: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChecksumFile(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stubGetter struct {
	status int
	body   string
	err    error
}

func (s stubGetter) Get(string) (*http.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{StatusCode: s.status, Body: io.NopCloser(strings.NewReader(s.body))}, nil
}

func TestDownloadToTempFile(t *testing.T) {
	dir := t.TempDir()

	path, err := downloadToTempFile(stubGetter{status: http.StatusOK, body: "payload"}, "https://example.com/a", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = downloadToTempFile(stubGetter{status: http.StatusNotFound}, "https://example.com/b", dir)
	assert.Error(t, err)

	_, err = downloadToTempFile(stubGetter{err: errors.New("offline")}, "https://example.com/c", dir)
	assert.Error(t, err)
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := tarGz(t, map[string]string{"release/mermaid-ascii": "#!/bin/sh\n", "README.md": "docs"})

	require.NoError(t, extractTarGz(bytes.NewReader(archive), dir, "mermaid-ascii"))
	data, err := os.ReadFile(filepath.Join(dir, "mermaid-ascii"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))

	err = extractTarGz(bytes.NewReader(archive), dir, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in archive")
}

func TestMermaidASCIIAssetName(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
		wantErr      bool
	}{
		{"linux", "amd64", "mermaid-ascii_Linux_x86_64.tar.gz", false},
		{"darwin", "arm64", "mermaid-ascii_Darwin_arm64.tar.gz", false},
		{"windows", "amd64", "", true},
		{"linux", "riscv64", "", true},
	}
	for _, tt := range tests {
		got, err := mermaidASCIIAssetName(tt.goos, tt.goarch)
		if tt.wantErr {
			assert.Error(t, err, "%s/%s", tt.goos, tt.goarch)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Contains(t, mermaidASCIIChecksums, got)
	}
}

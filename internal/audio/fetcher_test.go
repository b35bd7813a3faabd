package audio

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T) (*Fetcher, *httpmock.MockTransport, string) {
	t.Helper()
	dir := t.TempDir()
	mt := httpmock.NewMockTransport()
	f, err := NewFetcher(Config{Dir: dir, HTTPClient: &http.Client{Transport: mt}})
	require.NoError(t, err)
	return f, mt, dir
}

func TestFetch(t *testing.T) {
	f, mt, dir := newTestFetcher(t)

	mt.RegisterResponder(http.MethodGet, "https://rec.example.com/a.mp3",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
			return httpmock.NewBytesResponse(http.StatusOK, []byte("ID3-audio")), nil
		})

	path, err := f.Fetch(context.Background(), "https://rec.example.com/a.mp3", "call-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "call-1.mp3"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(b))

	require.NoError(t, f.Remove(path))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, f.Remove(path))
}

func TestFetch_Errors(t *testing.T) {
	f, mt, dir := newTestFetcher(t)

	mt.RegisterResponder(http.MethodGet, "https://rec.example.com/missing.mp3",
		httpmock.NewStringResponder(http.StatusNotFound, "nope"))

	_, err := f.Fetch(context.Background(), "https://rec.example.com/missing.mp3", "x")
	assert.ErrorIs(t, err, ErrDownload)

	_, err = f.Fetch(context.Background(), "https://unregistered.example.com/a.mp3", "x")
	assert.ErrorIs(t, err, ErrDownload)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed downloads leave nothing behind")
}

func TestFetch_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	mt := httpmock.NewMockTransport()
	f, err := NewFetcher(Config{Dir: dir, MaxBytes: 8, HTTPClient: &http.Client{Transport: mt}})
	require.NoError(t, err)

	mt.RegisterResponder(http.MethodGet, "https://rec.example.com/ok.mp3",
		httpmock.NewBytesResponder(http.StatusOK, []byte("12345678")))
	mt.RegisterResponder(http.MethodGet, "https://rec.example.com/big.mp3",
		httpmock.NewBytesResponder(http.StatusOK, []byte("123456789")))
	// No Content-Length: the copy itself must stop at the limit.
	mt.RegisterResponder(http.MethodGet, "https://rec.example.com/stream.mp3",
		func(*http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusOK, "0123456789abcdef")
			resp.ContentLength = -1
			return resp, nil
		})

	path, err := f.Fetch(context.Background(), "https://rec.example.com/ok.mp3", "ok")
	require.NoError(t, err)
	require.NoError(t, f.Remove(path))

	_, err = f.Fetch(context.Background(), "https://rec.example.com/big.mp3", "big")
	assert.ErrorIs(t, err, ErrDownload)

	_, err = f.Fetch(context.Background(), "https://rec.example.com/stream.mp3", "stream")
	assert.ErrorIs(t, err, ErrDownload)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "abc-1.mp3", fileName("abc-1"))
	assert.Equal(t, ".._etc_passwd.mp3", fileName("../etc/passwd"))
	assert.Len(t, fileName(""), 36+len(".mp3"))
}

func TestNewFetcher_RequiresDir(t *testing.T) {
	_, err := NewFetcher(Config{})
	assert.Error(t, err)
}

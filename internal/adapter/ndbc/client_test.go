package ndbc

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/noaa-buoy-overlay/internal/domain"
	"github.com/couchcryptid/noaa-buoy-overlay/internal/observability"
)

const (
	testDirectory = "# STATION_ID | OWNER\n#  |\n13002|PR|Atlas Buoy||NE Extension||21.000 N 23.000 W|| |\n"
	testLatestObs = "#STN LAT LON\n#text deg deg\n13001 12.000 -23.000 2025 04 07 15 00 356 6.8\n"
	testRealtime  = "#YY MM DD hh mm\n#yr mo dy hr mn\n2025 04 07 15 00 210 8.0\n"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL, mirrorDir string) *Client {
	return NewClient(baseURL, 5*time.Second, mirrorDir, observability.NewMetricsForTesting(), testLogger())
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case directoryPath:
			_, _ = io.WriteString(w, testDirectory)
		case latestObsPath:
			_, _ = io.WriteString(w, testLatestObs)
		case "/data/realtime2/41001.txt":
			_, _ = io.WriteString(w, testRealtime)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Directory(t *testing.T) {
	c := testClient(feedServer(t).URL, "")
	body, err := c.Directory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testDirectory, body)
}

func TestClient_LatestObservations(t *testing.T) {
	c := testClient(feedServer(t).URL+"/", "")
	body, err := c.LatestObservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testLatestObs, body)
}

func TestClient_Realtime(t *testing.T) {
	c := testClient(feedServer(t).URL, "")

	t.Run("station with realtime feed", func(t *testing.T) {
		body, err := c.Realtime(context.Background(), "41001")
		require.NoError(t, err)
		assert.Equal(t, testRealtime, body)
	})

	t.Run("lowercase id is normalized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/data/realtime2/BURL1.txt", r.URL.Path)
			_, _ = io.WriteString(w, testRealtime)
		}))
		defer srv.Close()

		_, err := testClient(srv.URL, "").Realtime(context.Background(), "burl1")
		require.NoError(t, err)
	})

	t.Run("404 means no realtime capability", func(t *testing.T) {
		body, err := c.Realtime(context.Background(), "13002")
		require.NoError(t, err)
		assert.Empty(t, body)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := c.Realtime(context.Background(), " ")
		assert.Error(t, err)
	})
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, "").Directory(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_DirectoryNotFoundIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := testClient(srv.URL, "").Directory(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(url, "").LatestObservations(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
}

func TestClient_Mirror(t *testing.T) {
	dir := t.TempDir()
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, testLatestObs)
	}))
	defer srv.Close()

	c := testClient(srv.URL, dir)

	body, err := c.LatestObservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testLatestObs, body)

	saved, err := os.ReadFile(filepath.Join(dir, "latest_obs.txt"))
	require.NoError(t, err)
	assert.Equal(t, testLatestObs, string(saved), "mirror keeps the body verbatim")

	failing.Store(true)
	body, err = c.LatestObservations(context.Background())
	require.NoError(t, err, "mirror copy is served on failure")
	assert.Equal(t, testLatestObs, body)

	_, err = c.Directory(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransportFailure, "no mirror copy of the directory yet")
}

func TestClient_MirrorLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	c := testClient(feedServer(t).URL, dir)

	_, err := c.Directory(context.Background())
	require.NoError(t, err)
	_, err = c.LatestObservations(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"station_table.txt", "latest_obs.txt"}, names)
}

func TestClient_OversizedFeedIsTransportFailure(t *testing.T) {
	c := testClient(feedServer(t).URL, "")
	c.maxBody = int64(len(testLatestObs))

	body, err := c.LatestObservations(context.Background())
	require.NoError(t, err, "a body exactly at the limit is accepted")
	assert.Equal(t, testLatestObs, body)

	c.maxBody = int64(len(testLatestObs)) - 1
	_, err = c.LatestObservations(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestClient_OversizedFeedFallsBackToMirror(t *testing.T) {
	dir := t.TempDir()
	c := testClient(feedServer(t).URL, dir)

	_, err := c.Directory(context.Background())
	require.NoError(t, err)

	c.maxBody = 16
	body, err := c.Directory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testDirectory, body, "the last complete copy is served, never a truncated one")
}

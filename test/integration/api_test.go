//go:build integration

package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/api"
	"github.com/miku1hhhh/sina-dl/internal/app"
	"github.com/miku1hhhh/sina-dl/internal/domain"
	"github.com/miku1hhhh/sina-dl/pkg/logger"
)

var flvHeader = []byte{'F', 'L', 'V', 0x01, 0x05, 0x00, 0x00, 0x00, 0x09}

// fakeUpstream serves a lookup API where 201 and 203 exist. 201 is only
// available as flv and 203 only as mp4.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	payloads := map[string][]byte{
		"201.flv": append(append([]byte{}, flvHeader...), []byte("flv-body")...),
		"203.mp4": []byte("\x00\x00\x00\x18ftypmp42mp4-body"),
	}
	types := map[string]string{"201.flv": "video/x-flv", "203.mp4": "video/mp4"}

	mux := http.NewServeMux()
	mux.HandleFunc("/lookup", func(w http.ResponseWriter, r *http.Request) {
		vid := r.URL.Query().Get("vid")
		if vid != "201" && vid != "203" {
			w.Write([]byte(`{"code":0,"data":{}}`))
			return
		}
		fmt.Fprintf(w, `{"code":1,"data":{"url":"http://cdn/%s","title":"clip %s"}}`, vid, vid)
	})
	mux.HandleFunc("/content/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/content/")
		data, ok := payloads[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", types[name])
		if r.Method == http.MethodHead {
			return
		}
		w.Write(data)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupTestServer(t *testing.T) (*httptest.Server, *app.Runtime) {
	t.Helper()
	upstream := fakeUpstream(t)
	tmpDir := t.TempDir()

	config := domain.DefaultConfig()
	config.Upstream.APIBase = upstream.URL + "/lookup"
	config.Upstream.ContentBase = upstream.URL + "/content/"
	config.Scan.BatchDelay = 0
	config.Archive.OutputDir = filepath.Join(tmpDir, "archives")
	config.Archive.DatabasePath = filepath.Join(tmpDir, "archives.db")
	config.Logging.LogsDir = filepath.Join(tmpDir, "logs")

	multi, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "debug", LogsDir: config.Logging.LogsDir})
	require.NoError(t, err)
	t.Cleanup(func() { multi.Close() })
	logs := logger.NewLoggerAdapter(zap.NewNop(), multi)

	runtime, err := app.NewRuntime(context.Background(), config, logs)
	require.NoError(t, err)
	t.Cleanup(func() { runtime.Close() })

	server := httptest.NewServer(api.SetupRouter(runtime.Manager, runtime.Hub, logs))
	t.Cleanup(server.Close)
	return server, runtime
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPI_ScanDownloadPack(t *testing.T) {
	server, _ := setupTestServer(t)
	base := server.URL + "/api/v1"

	var session domain.SessionSnapshot
	require.Equal(t, http.StatusCreated, doJSON(t, "POST", base+"/sessions", nil, &session))
	require.NotEmpty(t, session.ID)
	sessionURL := base + "/sessions/" + session.ID

	var scanned domain.SessionSnapshot
	status := doJSON(t, "POST", sessionURL+"/scan",
		map[string]interface{}{"start": 200, "end": 205, "concurrency": 3, "wait": true}, &scanned)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, scanned.ValidCount)
	require.Len(t, scanned.Items, 2)
	assert.Equal(t, int64(201), scanned.Items[0].Identifier)
	assert.Equal(t, domain.FormatFLV, scanned.Items[0].Format)
	assert.Equal(t, "clip 201", scanned.Items[0].Title)
	assert.Equal(t, int64(203), scanned.Items[1].Identifier)
	assert.Equal(t, domain.FormatMP4, scanned.Items[1].Format)

	var downloaded domain.SessionSnapshot
	status = doJSON(t, "POST", sessionURL+"/download", map[string]interface{}{"wait": true}, &downloaded)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, downloaded.DownloadedCount)
	for _, item := range downloaded.Items {
		assert.Equal(t, domain.ItemCompleted, item.Status)
	}

	resp, err := http.Get(sessionURL + "/items/201/payload")
	require.NoError(t, err)
	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/x-flv", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(payload, flvHeader))

	var record domain.ArchiveRecord
	require.Equal(t, http.StatusCreated, doJSON(t, "POST", sessionURL+"/archive", nil, &record))
	assert.Equal(t, 2, record.EntryCount)
	assert.True(t, strings.HasPrefix(record.Name, "sina_videos_"))
	assert.True(t, strings.HasSuffix(record.Name, ".zip"))

	resp, err = http.Get(base + "/archives/" + record.ID + "/file")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"sina_videos/201.flv", "sina_videos/203.mp4"}, names)

	var stats domain.ArchiveStats
	require.Equal(t, http.StatusOK, doJSON(t, "GET", base+"/archives/stats", nil, &stats))
	assert.Equal(t, int64(1), stats.Archives)
	assert.Equal(t, int64(2), stats.Entries)

	var records []domain.ArchiveRecord
	require.Equal(t, http.StatusOK, doJSON(t, "GET", sessionURL+"/archives", nil, &records))
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
}

func TestAPI_FormatOverride(t *testing.T) {
	server, _ := setupTestServer(t)
	base := server.URL + "/api/v1"

	var session domain.SessionSnapshot
	doJSON(t, "POST", base+"/sessions", nil, &session)
	sessionURL := base + "/sessions/" + session.ID

	doJSON(t, "POST", sessionURL+"/scan", map[string]interface{}{"start": 201, "end": 203, "wait": true}, nil)

	var snap domain.SessionSnapshot
	status := doJSON(t, "POST", sessionURL+"/download", map[string]interface{}{"format": "mp4", "wait": true}, &snap)
	require.Equal(t, http.StatusOK, status)

	statuses := map[int64]domain.ItemStatus{}
	for _, item := range snap.Items {
		statuses[item.Identifier] = item.Status
	}
	// 201 only exists as flv
	assert.Equal(t, domain.ItemFailed, statuses[201])
	assert.Equal(t, domain.ItemCompleted, statuses[203])
	assert.Equal(t, 1, snap.DownloadedCount)
}

func TestAPI_Errors(t *testing.T) {
	server, _ := setupTestServer(t)
	base := server.URL + "/api/v1"

	assert.Equal(t, http.StatusNotFound, doJSON(t, "GET", base+"/sessions/missing", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, "GET", base+"/archives/missing", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, "GET", server.URL+"/nope", nil, nil))

	var session domain.SessionSnapshot
	doJSON(t, "POST", base+"/sessions", nil, &session)
	sessionURL := base + "/sessions/" + session.ID

	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, "POST", sessionURL+"/scan", map[string]interface{}{"start": 10, "end": 5, "wait": true}, nil))
	assert.Equal(t, http.StatusBadRequest,
		doJSON(t, "POST", sessionURL+"/scan", map[string]interface{}{"end": 5}, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, "POST", sessionURL+"/archive", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, "GET", sessionURL+"/items/201/payload", nil, nil))
}

func TestAPI_HealthAndLogs(t *testing.T) {
	server, runtime := setupTestServer(t)

	var health map[string]interface{}
	require.Equal(t, http.StatusOK, doJSON(t, "GET", server.URL+"/health", nil, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, http.StatusOK, doJSON(t, "GET", server.URL+"/ready", nil, nil))

	runtime.Manager.CreateSession()

	var categories struct {
		Categories []string `json:"categories"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, "GET", server.URL+"/api/v1/logs/categories", nil, &categories))
	assert.ElementsMatch(t, []string{"session", "download", "error"}, categories.Categories)

	var logs struct {
		Count   int               `json:"count"`
		Entries []logger.LogEntry `json:"entries"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, "GET", server.URL+"/api/v1/logs/session", nil, &logs))
	require.GreaterOrEqual(t, logs.Count, 1)
	assert.Equal(t, "session_created", logs.Entries[len(logs.Entries)-1].Message)
}

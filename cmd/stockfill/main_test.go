package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/stockfill/internal/domain"
)

type fakeServer struct {
	*httptest.Server
	downloads atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stock_count": 5300})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"filename": "20240101_data.csv",
			"file_info": map[string]any{
				"columns": []string{"股票代码", "最新价"},
				"rows":    1,
				"preview": []map[string]any{{"股票代码": "000001", "最新价": 10.5}},
			},
		})
	})
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		var req domain.ProcessRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.CodeColumn == nil || *req.CodeColumn != "股票代码" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "code column not auto-selected"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"result_file": "completed_data.xlsx",
			"statistics":  map[string]any{"total": 1, "success": 1, "success_rate": 100},
			"preview":     []map[string]any{{"原始代码": "000001", "股票名称": "平安银行", "匹配状态": "匹配成功"}},
		})
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		fs.downloads.Add(1)
		_, _ = w.Write([]byte("xlsx-bytes"))
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

// execute runs the CLI and releases the wired app afterwards
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	if current != nil {
		current.close()
		current = nil
	}
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STOCKFILL_OUTPUT_DIR", dir)
	t.Setenv("STOCKFILL_LOGGING_LEVEL", "error")
	t.Setenv("STOCKFILL_DOWNLOAD_SPOOL_RELEASE_DELAY", "10ms")
	return dir
}

func TestCLI_StatusJSON(t *testing.T) {
	setupEnv(t)
	srv := newFakeServer(t)

	out, err := execute(t, "--server", srv.URL, "-o", "json", "status")
	require.NoError(t, err)

	var got struct {
		Server    domain.ServiceStatus `json:"server"`
		OutputDir string               `json:"output_dir"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 5300, got.Server.StockCount)
	assert.NotEmpty(t, got.OutputDir)
}

func TestCLI_DownloadWithoutResult(t *testing.T) {
	setupEnv(t)
	srv := newFakeServer(t)

	out, err := execute(t, "--server", srv.URL, "-o", "table", "download")
	require.Error(t, err)
	assert.True(t, isReported(err))
	assert.True(t, errors.Is(err, domain.ErrNothingToDownload))
	assert.Contains(t, out, "没有可下载的结果文件")
	assert.Equal(t, int32(0), srv.downloads.Load())
}

func TestCLI_UploadRejected(t *testing.T) {
	dir := setupEnv(t)
	srv := newFakeServer(t)

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	out, err := execute(t, "--server", srv.URL, "-o", "table", "upload", path)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Contains(t, out, "请上传CSV或Excel文件")
}

func TestCLI_RunPipeline(t *testing.T) {
	dir := setupEnv(t)
	srv := newFakeServer(t)

	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("股票代码,最新价\n000001,10.5\n"), 0644))

	out, err := execute(t, "--server", srv.URL, "-o", "table", "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "文件上传成功！")
	assert.Contains(t, out, "处理完成！")
	assert.Contains(t, out, "文件下载完成: completed_data.xlsx")

	data, err := os.ReadFile(filepath.Join(dir, "completed_data.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "xlsx-bytes", string(data))
	assert.Equal(t, int32(1), srv.downloads.Load())

	// the session and attempt history survive the process
	out, err = execute(t, "--server", srv.URL, "-o", "json", "history")
	require.NoError(t, err)
	var attempts []domain.DownloadAttempt
	require.NoError(t, json.Unmarshal([]byte(out), &attempts))
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.StrategyBufferedFetch, attempts[0].Strategy)
	assert.Equal(t, domain.OutcomeSucceeded, attempts[0].Outcome)
}

func TestReportedError(t *testing.T) {
	assert.Nil(t, reported(nil))

	err := reported(domain.ErrNoUpload)
	assert.True(t, isReported(err))
	assert.ErrorIs(t, err, domain.ErrNoUpload)
	assert.False(t, isReported(domain.ErrNoUpload))
}

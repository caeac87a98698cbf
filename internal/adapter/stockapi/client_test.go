package stockapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vertextoedge/stockfill/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/", nil, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil, nil)
	assert.Error(t, err)

	_, err = NewClient("://bad", nil, nil)
	assert.Error(t, err)
}

func TestClient_Upload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, pathUpload, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "data.csv", hdr.Filename)
		assert.Equal(t, "text/csv", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "股票代码,价格\n000001,10\n", string(data))

		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"filename": "20240101_120000_data.csv",
			"file_info": map[string]any{
				"columns": []string{"股票代码", "价格"},
				"rows":    1,
				"preview": []map[string]any{{"股票代码": "000001", "价格": 10}},
			},
		})
	}))

	res, err := c.Upload(context.Background(),
		domain.UploadFile{Name: "data.csv", MIMEType: "text/csv"},
		strings.NewReader("股票代码,价格\n000001,10\n"))
	require.NoError(t, err)
	assert.Equal(t, "20240101_120000_data.csv", res.Filename)
	assert.Equal(t, []string{"股票代码", "价格"}, res.FileInfo.Columns)
	assert.Equal(t, 1, res.FileInfo.Rows)
	assert.Len(t, res.FileInfo.Preview, 1)
}

func TestClient_Upload_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "不支持的文件格式"})
	}))

	_, err := c.Upload(context.Background(), domain.UploadFile{Name: "a.csv"}, strings.NewReader("x"))
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "不支持的文件格式", apiErr.ServerMessage())
}

func TestClient_Process(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, pathProcess, r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		assert.Equal(t, "up.csv", body["filename"])
		assert.Nil(t, body["code_column"])
		assert.Equal(t, "价格", body["price_column"])
		assert.Equal(t, "sina", body["api_source"])
		assert.Equal(t, true, body["enable_cross_validation"])

		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"result_file": "stock_completion_1.csv",
			"statistics":  map[string]any{"total": 4, "success": 3, "invalid": 1, "not_found": 0, "success_rate": 75.0},
			"preview":     []map[string]any{{"原始代码": "1", "匹配状态": "匹配成功"}},
		})
	}))

	price := "价格"
	res, err := c.Process(context.Background(), &domain.ProcessRequest{
		Filename:              "up.csv",
		PriceColumn:           &price,
		APISource:             "sina",
		EnableCrossValidation: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFileName("stock_completion_1.csv"), res.ResultFile)
	assert.Equal(t, 4, res.Statistics.Total)
	assert.Equal(t, 75.0, res.Statistics.SuccessRate)
	assert.Equal(t, "匹配成功", res.Preview[0].Get(domain.ColMatchStatus))
}

func TestClient_Process_FailureFlagOn200(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "处理失败: 连接超时"})
	}))

	_, err := c.Process(context.Background(), &domain.ProcessRequest{Filename: "x"})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "处理失败: 连接超时", apiErr.ServerMessage())
}

func TestClient_FetchResult(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/download/ok.csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("a,b\n1,2\n"))
		case "/download/missing.csv":
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "文件不存在"})
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}
	}))

	body, _, err := c.FetchResult(context.Background(), "ok.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	_, _, err = c.FetchResult(context.Background(), "missing.csv")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "文件不存在", apiErr.ServerMessage())

	_, _, err = c.FetchResult(context.Background(), "other.csv")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestClient_Process_NonJSONErrorPage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
	}))

	_, err := c.Process(context.Background(), &domain.ProcessRequest{Filename: "up.csv", APISource: "sina"})
	require.Error(t, err)

	_, ok := AsAPIError(err)
	assert.False(t, ok, "a proxy page is not a server answer")

	var sm interface{ ServerMessage() string }
	assert.False(t, errors.As(err, &sm))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, pathProcess, statusErr.Endpoint)
}

func TestClient_DownloadURL(t *testing.T) {
	c, err := NewClient("http://localhost:5000/", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/download/stock_completion_1.csv", c.DownloadURL("stock_completion_1.csv"))
	assert.Equal(t, "http://localhost:5000/download/a%20b.csv", c.DownloadURL("a b.csv"))
}

func TestClient_StatusEndpoints(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathStatus:
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stock_count": 5300})
		case pathStockDataStatus:
			writeJSON(w, http.StatusOK, map[string]any{
				"status":          "ok",
				"current_data":    map[string]any{"total_stocks": 5300, "data_source": "txt"},
				"files":           map[string]any{"data_files": 2, "backup_files": 1, "watch_files": 0},
				"watch_directory": "/srv/watch",
			})
		case pathAutoUpdateStockData:
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "没有发现新文件", "new_files": []string{}})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.OK())
	assert.Equal(t, 5300, st.StockCount)

	ds, err := c.StockDataStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5300, ds.CurrentData.TotalStocks)
	assert.Equal(t, 2, ds.Files.DataFiles)
	assert.Equal(t, "/srv/watch", ds.WatchDirectory)

	au, err := c.AutoUpdateStockData(ctx)
	require.NoError(t, err, "no new files is not an error")
	assert.False(t, au.Updated)
}

func TestClient_StatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "error": "no stock list"})
	}))

	_, err := c.Status(context.Background())
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "no stock list", apiErr.ServerMessage())
}

func TestClient_DataSourceEndpoints(t *testing.T) {
	var recorded map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == pathRecordFailure+"sina":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&recorded))
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"suggestion": map[string]any{
					"should_suggest":    true,
					"failure_count":     3,
					"failure_threshold": 3,
					"suggestion_reason": "连续失败3次，建议配置API密钥",
				},
			})
		case r.URL.Path == pathSuggestion+"tencent":
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "source": "tencent", "suggestion": map[string]any{"should_suggest": false}})
		case r.URL.Path == pathSourceStats:
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stats": map[string]any{
				"local": map[string]any{"success_rate": 100.0, "total_requests": 10},
				"sina":  map[string]any{"success_rate": 40.0, "failure_count": 6, "should_suggest_api": true},
			}})
		case r.URL.Path == pathAPIKeys && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "api_keys": map[string]any{
				"tushare": map[string]any{"configured": true, "length": 32},
			}})
		case r.URL.Path == pathAPIKeys && r.Method == http.MethodPost:
			var body struct {
				APIKeys map[string]string `json:"api_keys"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusOK, map[string]any{"success": len(body.APIKeys) > 0, "message": "成功设置 1 个API密钥", "errors": []string{}})
		case r.URL.Path == pathTestConnection+"akshare":
			writeJSON(w, http.StatusOK, map[string]any{"source": "akshare", "status": "error", "message": "模块未安装"})
		case r.URL.Path == pathDataSourcesConfig && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "config": map[string]any{"failure_threshold": 3.0}})
		case r.URL.Path == pathDataSourcesConfig && r.Method == http.MethodPost:
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "数据源配置更新失败"})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	s, err := c.RecordFailure(ctx, "sina", domain.FailureTimeout)
	require.NoError(t, err)
	assert.Equal(t, "timeout", recorded["error_type"])
	assert.True(t, s.ShouldSuggest)
	assert.Equal(t, 3, s.FailureCount)

	s, err = c.Suggestion(ctx, "tencent")
	require.NoError(t, err)
	assert.False(t, s.ShouldSuggest)

	stats, err := c.SourceStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BadgeDanger, stats["sina"].Health())
	assert.Equal(t, 10, stats["local"].TotalRequests)

	keys, err := c.APIKeys(ctx)
	require.NoError(t, err)
	assert.True(t, keys["tushare"].Configured)

	set, err := c.SetAPIKeys(ctx, map[string]string{"tushare": "abc"})
	require.NoError(t, err)
	assert.True(t, set.Success)

	conn, err := c.TestConnection(ctx, "akshare")
	require.NoError(t, err, "a failed connection test is a result")
	assert.False(t, conn.OK())
	assert.Equal(t, "模块未安装", conn.Message)

	cfg, err := c.DataSourceConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg["failure_threshold"])

	err = c.SetDataSourceConfig(ctx, map[string]any{"failure_threshold": 5})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "数据源配置更新失败", apiErr.ServerMessage())
}

func TestClient_UploadStockData(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, pathUploadStockData, r.URL.Path)
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"message":         "股票数据文件上传成功",
			"filename":        hdr.Filename,
			"file_info":       map[string]any{"total_rows": 5000},
			"processed_files": []string{hdr.Filename},
		})
	}))

	res, err := c.UploadStockData(context.Background(), "stocks.csv", strings.NewReader("代码,名称\n"))
	require.NoError(t, err)
	assert.Equal(t, "stocks.csv", res.Filename)
	assert.Equal(t, []string{"stocks.csv"}, res.ProcessedFiles)
}

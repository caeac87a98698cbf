package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/stockfill/internal/adapter/stockapi"
	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/domain/event"
	"github.com/vertextoedge/stockfill/internal/port"
)

// serverError mimics the API client's error type
type serverError struct {
	msg string
}

func (e *serverError) Error() string         { return "server: " + e.msg }
func (e *serverError) ServerMessage() string { return e.msg }

type fakeAPI struct {
	uploadBody   string
	uploadResult *domain.UploadResult
	uploadErr    error
	uploads      int

	processReq    *domain.ProcessRequest
	processResult *domain.ProcessResult
	processErr    error

	failures   []domain.FailureKind
	suggestion *domain.Suggestion
	recordErr  error
}

func (f *fakeAPI) Upload(ctx context.Context, file domain.UploadFile, body io.Reader) (*domain.UploadResult, error) {
	f.uploads++
	data, _ := io.ReadAll(body)
	f.uploadBody = string(data)
	return f.uploadResult, f.uploadErr
}

func (f *fakeAPI) Process(ctx context.Context, req *domain.ProcessRequest) (*domain.ProcessResult, error) {
	f.processReq = req
	return f.processResult, f.processErr
}

func (f *fakeAPI) RecordFailure(ctx context.Context, source string, kind domain.FailureKind) (*domain.Suggestion, error) {
	f.failures = append(f.failures, kind)
	return f.suggestion, f.recordErr
}

type memorySessions struct {
	state   port.SessionState
	saves   int
	cleared bool
	saveErr error
}

func (m *memorySessions) LoadSession() (*port.SessionState, error) {
	s := m.state
	return &s, nil
}

func (m *memorySessions) SaveSession(state *port.SessionState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.state = *state
	return nil
}

func (m *memorySessions) ClearSession() error {
	m.cleared = true
	m.state = port.SessionState{}
	return nil
}

type fakeDownloader struct {
	names []domain.ResultFileName
}

func (f *fakeDownloader) Run(ctx context.Context, name domain.ResultFileName) *domain.DownloadReport {
	f.names = append(f.names, name)
	return &domain.DownloadReport{ResultFile: name, Outcome: domain.OutcomeSucceeded}
}

type alert struct {
	level port.Level
	text  string
}

type fakePresenter struct {
	alerts      []alert
	progress    []string
	fileInfo    *domain.FileInfo
	columns     *domain.ColumnSelection
	results     *domain.ProcessResult
	crossValid  bool
	suggestions map[string]*domain.Suggestion
}

func (p *fakePresenter) Alert(level port.Level, msg string) { p.alerts = append(p.alerts, alert{level, msg}) }
func (p *fakePresenter) Status(port.Level, string)          {}
func (p *fakePresenter) Progress(msg string)                { p.progress = append(p.progress, msg) }
func (p *fakePresenter) Done()                              {}
func (p *fakePresenter) ShowFileInfo(info *domain.FileInfo) { p.fileInfo = info }
func (p *fakePresenter) ShowColumns(sel *domain.ColumnSelection) {
	p.columns = sel
}
func (p *fakePresenter) ShowResults(result *domain.ProcessResult, crossValidation bool) {
	p.results = result
	p.crossValid = crossValidation
}
func (p *fakePresenter) ShowSuggestion(source string, s *domain.Suggestion) {
	if p.suggestions == nil {
		p.suggestions = make(map[string]*domain.Suggestion)
	}
	p.suggestions[source] = s
}

func (p *fakePresenter) lastAlert() alert {
	return p.alerts[len(p.alerts)-1]
}

type harness struct {
	api        *fakeAPI
	sessions   *memorySessions
	downloader *fakeDownloader
	presenter  *fakePresenter
	events     *eventLog
	ctrl       *Controller
}

type eventLog struct {
	events []event.DomainEvent
}

func (l *eventLog) Handle(e event.DomainEvent) error {
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) HandledEvents() []string { return []string{event.AllEvents} }

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		api:        &fakeAPI{},
		sessions:   &memorySessions{},
		downloader: &fakeDownloader{},
		presenter:  &fakePresenter{},
		events:     &eventLog{},
	}
	dispatcher := event.NewInMemoryDispatcher(nil)
	dispatcher.Subscribe(h.events)

	ctrl, err := NewController(h.api, h.sessions, h.downloader, h.presenter, dispatcher, nil)
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func writeCSV(t *testing.T, name, content string) domain.UploadFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	f, err := DescribeFile(path, "")
	require.NoError(t, err)
	return f
}

func tenColumns() []string {
	return []string{"序号", "股票代码", "股票名称", "最新价", "涨跌幅", "成交量", "成交额", "市盈率", "市净率", "备注"}
}

func TestController_SelectFile(t *testing.T) {
	h := newHarness(t)
	h.api.uploadResult = &domain.UploadResult{
		Filename: "20240101_120000_data.csv",
		FileInfo: domain.FileInfo{Columns: tenColumns(), Rows: 50},
	}

	file := writeCSV(t, "data.csv", "股票代码\n000001\n")
	res, err := h.ctrl.SelectFile(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, "20240101_120000_data.csv", res.Filename)
	assert.Equal(t, "股票代码\n000001\n", h.api.uploadBody)
	assert.Equal(t, "20240101_120000_data.csv", h.ctrl.State().CurrentFile)
	assert.Equal(t, "20240101_120000_data.csv", h.sessions.state.CurrentFile, "state is persisted")

	require.NotNil(t, h.presenter.columns)
	assert.Len(t, h.presenter.columns.CodeOptions, 11)
	assert.Equal(t, "股票代码", h.presenter.columns.CodeColumn)
	assert.Equal(t, 50, h.presenter.fileInfo.Rows)
	assert.Equal(t, alert{port.LevelSuccess, msgUploaded}, h.presenter.lastAlert())
	assert.Equal(t, []string{msgUploading}, h.presenter.progress)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, event.NameFileUploaded, h.events.events[0].EventName())
}

func TestController_SelectFile_Rejected(t *testing.T) {
	h := newHarness(t)

	file := writeCSV(t, "notes.txt", "hello")
	_, err := h.ctrl.SelectFile(context.Background(), file)

	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, 0, h.api.uploads, "no network call")
	assert.Equal(t, alert{port.LevelDanger, msgUnsupportedType}, h.presenter.lastAlert())
	assert.Equal(t, event.NameFileRejected, h.events.events[0].EventName())
}

func TestController_SelectFile_UploadErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &serverError{msg: "不支持的文件格式"}, "不支持的文件格式"},
		{"server without message", &serverError{}, msgUploadFailed},
		{"network", errors.New("connection refused"), msgUploadRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.api.uploadErr = tt.err

			_, err := h.ctrl.SelectFile(context.Background(), writeCSV(t, "a.csv", "x"))
			require.Error(t, err)
			assert.Equal(t, alert{port.LevelDanger, tt.want}, h.presenter.lastAlert())
			assert.Empty(t, h.ctrl.State().CurrentFile)
		})
	}
}

func TestController_Process_RequiresUpload(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctrl.Process(context.Background(), ProcessOptions{APISource: "sina"})

	assert.ErrorIs(t, err, domain.ErrNoUpload)
	assert.Nil(t, h.api.processReq)
	assert.Equal(t, alert{port.LevelWarning, msgUploadFirst}, h.presenter.lastAlert())
}

func TestController_Process(t *testing.T) {
	h := newHarness(t)
	h.sessions.state = port.SessionState{SessionID: "s1", CurrentFile: "up.csv", Columns: tenColumns()}
	ctrl, err := NewController(h.api, h.sessions, h.downloader, h.presenter, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "s1", ctrl.State().SessionID)

	h.api.processResult = &domain.ProcessResult{
		ResultFile: "stock_completion_1.csv",
		Statistics: domain.Statistics{Total: 50, Success: 48},
	}

	empty := ""
	res, err := ctrl.Process(context.Background(), ProcessOptions{
		PriceColumn:     &empty,
		APISource:       "local",
		CrossValidation: true,
		Optimization:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFileName("stock_completion_1.csv"), res.ResultFile)

	req := h.api.processReq
	require.NotNil(t, req)
	assert.Equal(t, "up.csv", req.Filename)
	require.NotNil(t, req.CodeColumn)
	assert.Equal(t, "股票代码", *req.CodeColumn, "auto-selected column is used")
	assert.Nil(t, req.PriceColumn, "explicit auto-detect is sent as null")
	assert.True(t, req.EnableCrossValidation)
	assert.True(t, req.UseOptimization)

	assert.Equal(t, []string{msgProcessing + msgOptimizationMode + msgCrossValidation + "..."}, h.presenter.progress)
	assert.True(t, h.presenter.crossValid)
	assert.Equal(t, domain.ResultFileName("stock_completion_1.csv"), h.sessions.state.ResultFile)

	report := ctrl.Download(context.Background())
	assert.True(t, report.Succeeded())
	assert.Equal(t, []domain.ResultFileName{"stock_completion_1.csv"}, h.downloader.names)
}

func TestController_Process_FailureClassification(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		err         error
		wantKinds   []domain.FailureKind
		wantSuggest bool
	}{
		{"timeout", "sina", &serverError{msg: "处理失败: 连接超时"}, []domain.FailureKind{domain.FailureTimeout}, true},
		{"api error", "tencent", &serverError{msg: "API密钥无效"}, []domain.FailureKind{domain.FailureAPIError}, true},
		{"unknown", "eastmoney", &serverError{msg: "未知错误"}, []domain.FailureKind{domain.FailureUnknown}, true},
		{"local source is not reported", "local", &serverError{msg: "timeout"}, nil, false},
		{"network error is not reported", "sina", errors.New("dial tcp: refused"), nil, false},
		{"proxy error page is not reported", "sina", &stockapi.StatusError{StatusCode: 502, Endpoint: "/process"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.sessions.state = port.SessionState{CurrentFile: "up.csv"}
			ctrl, err := NewController(h.api, h.sessions, h.downloader, h.presenter, nil, nil)
			require.NoError(t, err)

			h.api.processErr = tt.err
			h.api.suggestion = &domain.Suggestion{ShouldSuggest: true, FailureCount: 3, FailureThreshold: 3}

			_, err = ctrl.Process(context.Background(), ProcessOptions{APISource: tt.source})
			require.Error(t, err)

			assert.Equal(t, tt.wantKinds, h.api.failures)
			_, shown := h.presenter.suggestions[tt.source]
			assert.Equal(t, tt.wantSuggest, shown)
			assert.Equal(t, port.LevelDanger, h.presenter.alerts[0].level)
			assert.Empty(t, ctrl.State().ResultFile)
		})
	}
}

func TestController_Process_SuggestionNotShownBelowThreshold(t *testing.T) {
	h := newHarness(t)
	h.sessions.state = port.SessionState{CurrentFile: "up.csv"}
	ctrl, err := NewController(h.api, h.sessions, h.downloader, h.presenter, nil, nil)
	require.NoError(t, err)

	h.api.processErr = &serverError{msg: "网络错误"}
	h.api.suggestion = &domain.Suggestion{ShouldSuggest: false, FailureCount: 1}

	_, err = ctrl.Process(context.Background(), ProcessOptions{APISource: "sina"})
	require.Error(t, err)
	assert.Empty(t, h.presenter.suggestions)
}

func TestController_Reset(t *testing.T) {
	h := newHarness(t)
	h.sessions.state = port.SessionState{SessionID: "old", CurrentFile: "up.csv", ResultFile: "r.csv"}
	ctrl, err := NewController(h.api, h.sessions, h.downloader, h.presenter, nil, nil)
	require.NoError(t, err)

	require.NoError(t, ctrl.Reset())

	state := ctrl.State()
	assert.True(t, h.sessions.cleared)
	assert.Empty(t, state.CurrentFile)
	assert.Empty(t, state.ResultFile)
	assert.NotEqual(t, "old", state.SessionID)

	ctrl.Download(context.Background())
	assert.Equal(t, []domain.ResultFileName{""}, h.downloader.names)
}

func TestController_SaveFailureIsShown(t *testing.T) {
	diskFull := errors.New("database or disk is full")

	t.Run("upload", func(t *testing.T) {
		h := newHarness(t)
		h.sessions.saveErr = diskFull
		h.api.uploadResult = &domain.UploadResult{
			Filename: "up.csv",
			FileInfo: domain.FileInfo{Columns: []string{"股票代码"}, Rows: 1},
		}

		_, err := h.ctrl.SelectFile(context.Background(), writeCSV(t, "data.csv", "股票代码\n000001\n"))
		require.ErrorIs(t, err, diskFull)

		require.NotEmpty(t, h.presenter.alerts)
		last := h.presenter.lastAlert()
		assert.Equal(t, port.LevelDanger, last.level)
		assert.Contains(t, last.text, msgSaveFailed)
		assert.Contains(t, last.text, "disk is full")
	})

	t.Run("process", func(t *testing.T) {
		h := newHarness(t)
		h.sessions.state = port.SessionState{CurrentFile: "up.csv"}
		h.sessions.saveErr = diskFull
		ctrl, err := NewController(h.api, h.sessions, h.downloader, h.presenter, nil, nil)
		require.NoError(t, err)
		h.api.processResult = &domain.ProcessResult{ResultFile: "stock_completion_1.csv"}

		_, err = ctrl.Process(context.Background(), ProcessOptions{APISource: "akshare"})
		require.ErrorIs(t, err, diskFull)

		require.NotEmpty(t, h.presenter.alerts)
		last := h.presenter.lastAlert()
		assert.Equal(t, port.LevelDanger, last.level)
		assert.Contains(t, last.text, msgSaveFailed)
		assert.Nil(t, h.presenter.results)
	})
}

func TestController_Process_ProxyErrorPageShowsRetry(t *testing.T) {
	h := newHarness(t)
	h.sessions.state = port.SessionState{CurrentFile: "up.csv"}
	ctrl, err := NewController(h.api, h.sessions, h.downloader, h.presenter, nil, nil)
	require.NoError(t, err)

	h.api.processErr = &stockapi.StatusError{StatusCode: 502, Endpoint: "/process"}

	_, err = ctrl.Process(context.Background(), ProcessOptions{APISource: "sina"})
	require.Error(t, err)

	assert.Equal(t, alert{port.LevelDanger, msgProcessRetry}, h.presenter.lastAlert())
	assert.Empty(t, h.api.failures)
}

// Package session holds the state of one workbench session and runs the
// upload, process and download steps against the completion server.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/domain/event"
	"github.com/vertextoedge/stockfill/internal/port"
)

// User facing messages
const (
	msgUploading        = "正在上传文件..."
	msgUploaded         = "文件上传成功！"
	msgUploadFailed     = "文件上传失败"
	msgUploadRetry      = "文件上传失败，请重试"
	msgUploadFirst      = "请先上传文件"
	msgProcessed        = "处理完成！"
	msgProcessFailed    = "处理失败"
	msgProcessRetry     = "处理失败，请重试"
	msgProcessing       = "正在处理股票代码名称补全"
	msgOptimizationMode = "（🚀 性能优化模式）"
	msgCrossValidation  = "并进行多数据源验证"
	msgSaveFailed       = "保存会话失败"
)

// Downloader delivers a result file
type Downloader interface {
	Run(ctx context.Context, name domain.ResultFileName) *domain.DownloadReport
}

// API is the part of the server the controller talks to
type API interface {
	port.Uploader
	port.Processor
	RecordFailure(ctx context.Context, source string, kind domain.FailureKind) (*domain.Suggestion, error)
}

// ProcessOptions are the user's processing choices.
// A nil column means "keep the auto-selected column"; an empty one asks the server to detect it.
type ProcessOptions struct {
	CodeColumn      *string
	PriceColumn     *string
	APISource       string
	CrossValidation bool
	Optimization    bool
}

// Controller is the single owner of the session state
type Controller struct {
	api        API
	sessions   port.SessionRepository
	downloader Downloader
	presenter  port.Presenter
	dispatcher event.EventDispatcher
	logger     *zap.Logger

	mu    sync.Mutex
	state port.SessionState
}

// NewController creates a controller and loads the stored session
func NewController(
	api API,
	sessions port.SessionRepository,
	downloader Downloader,
	presenter port.Presenter,
	dispatcher event.EventDispatcher,
	logger *zap.Logger,
) (*Controller, error) {
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		api:        api,
		sessions:   sessions,
		downloader: downloader,
		presenter:  presenter,
		dispatcher: dispatcher,
		logger:     logger,
	}

	state, err := sessions.LoadSession()
	if err != nil {
		return nil, err
	}
	c.state = *state
	if c.state.SessionID == "" {
		c.state.SessionID = uuid.NewString()
	}

	return c, nil
}

// State returns a copy of the current session state
func (c *Controller) State() port.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Columns = append([]string(nil), c.state.Columns...)
	return s
}

// SelectFile validates and uploads a spreadsheet
func (c *Controller) SelectFile(ctx context.Context, file domain.UploadFile) (*domain.UploadResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ValidateUpload(file); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			c.presenter.Alert(port.LevelDanger, ve.Message)
		}
		c.dispatcher.Dispatch(event.NewFileRejected(file.Name, err.Error()))
		return nil, err
	}

	f, err := os.Open(file.Path)
	if err != nil {
		c.presenter.Alert(port.LevelDanger, msgUploadRetry)
		return nil, fmt.Errorf("failed to open %s: %w", file.Path, err)
	}
	defer f.Close()

	c.presenter.Progress(msgUploading)
	res, err := c.api.Upload(ctx, file, f)
	c.presenter.Done()
	if err != nil {
		c.presenter.Alert(port.LevelDanger, alertText(err, msgUploadFailed, msgUploadRetry))
		c.logger.Warn("upload failed", zap.String("file", file.Name), zap.Error(err))
		return nil, err
	}

	c.state.CurrentFile = res.Filename
	c.state.Columns = res.FileInfo.Columns
	if err := c.save(); err != nil {
		return nil, err
	}

	c.presenter.ShowFileInfo(&res.FileInfo)
	c.presenter.ShowColumns(BuildColumnSelection(res.FileInfo.Columns))
	c.presenter.Alert(port.LevelSuccess, msgUploaded)
	c.dispatcher.Dispatch(event.NewFileUploaded(res.Filename, len(res.FileInfo.Columns), res.FileInfo.Rows))

	return res, nil
}

// Columns returns the column selection for the current upload
func (c *Controller) Columns() *domain.ColumnSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BuildColumnSelection(c.state.Columns)
}

// Process runs the completion for the current upload
func (c *Controller) Process(ctx context.Context, opts ProcessOptions) (*domain.ProcessResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.CurrentFile == "" {
		c.presenter.Alert(port.LevelWarning, msgUploadFirst)
		return nil, domain.ErrNoUpload
	}

	auto := BuildColumnSelection(c.state.Columns)
	req := &domain.ProcessRequest{
		Filename:              c.state.CurrentFile,
		CodeColumn:            columnValue(opts.CodeColumn, auto.CodeColumn),
		PriceColumn:           columnValue(opts.PriceColumn, auto.PriceColumn),
		APISource:             opts.APISource,
		EnableCrossValidation: opts.CrossValidation,
		UseOptimization:       opts.Optimization,
	}

	c.presenter.Progress(progressMessage(opts))
	res, err := c.api.Process(ctx, req)
	c.presenter.Done()
	if err != nil {
		c.presenter.Alert(port.LevelDanger, alertText(err, msgProcessFailed, msgProcessRetry))
		c.reportFailure(ctx, opts.APISource, err)
		return nil, err
	}

	c.state.ResultFile = res.ResultFile
	if err := c.save(); err != nil {
		return nil, err
	}

	c.presenter.ShowResults(res, opts.CrossValidation)
	c.presenter.Alert(port.LevelSuccess, msgProcessed)
	c.dispatcher.Dispatch(event.NewProcessingCompleted(res, opts.APISource))

	return res, nil
}

// reportFailure feeds a server-side processing error back to the data-source
// statistics and shows the returned suggestion
func (c *Controller) reportFailure(ctx context.Context, source string, err error) {
	msg, fromServer := serverMessage(err)
	if !fromServer {
		c.dispatcher.Dispatch(event.NewProcessingFailed(source, "", err.Error()))
		return
	}

	if source == "" || source == domain.SourceLocal {
		c.dispatcher.Dispatch(event.NewProcessingFailed(source, "", msg))
		return
	}

	kind := domain.ClassifyFailure(msg)
	c.dispatcher.Dispatch(event.NewProcessingFailed(source, kind, msg))

	suggestion, rerr := c.api.RecordFailure(ctx, source, kind)
	if rerr != nil {
		c.logger.Warn("failed to record data source failure",
			zap.String("source", source),
			zap.String("kind", string(kind)),
			zap.Error(rerr))
		return
	}
	if suggestion != nil && suggestion.ShouldSuggest {
		c.presenter.ShowSuggestion(source, suggestion)
	}
}

// Download delivers the current result file
func (c *Controller) Download(ctx context.Context) *domain.DownloadReport {
	c.mu.Lock()
	name := c.state.ResultFile
	c.mu.Unlock()

	return c.downloader.Run(ctx, name)
}

// Reset forgets the current upload and result
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sessions.ClearSession(); err != nil {
		return err
	}
	c.state = port.SessionState{SessionID: uuid.NewString()}
	return nil
}

// save persists the state; a failure is shown to the user before it is returned
func (c *Controller) save() error {
	if err := c.sessions.SaveSession(&c.state); err != nil {
		c.presenter.Alert(port.LevelDanger, msgSaveFailed+": "+err.Error())
		c.logger.Error("failed to save session", zap.Error(err))
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// columnValue resolves a column option; empty means auto-detect (null)
func columnValue(chosen *string, auto string) *string {
	v := auto
	if chosen != nil {
		v = *chosen
	}
	if v == "" {
		return nil
	}
	return &v
}

func progressMessage(opts ProcessOptions) string {
	var b strings.Builder
	b.WriteString(msgProcessing)
	if opts.Optimization {
		b.WriteString(msgOptimizationMode)
	}
	if opts.CrossValidation {
		b.WriteString(msgCrossValidation)
	}
	b.WriteString("...")
	return b.String()
}

// serverMessage extracts the text the server sent with an error response
func serverMessage(err error) (string, bool) {
	var sm interface{ ServerMessage() string }
	if errors.As(err, &sm) {
		return sm.ServerMessage(), true
	}
	return "", false
}

// alertText prefers the server's own error text. Errors the server never
// answered get the retry hint.
func alertText(err error, fallback, retry string) string {
	msg, ok := serverMessage(err)
	if !ok {
		return retry
	}
	if msg == "" {
		return fallback
	}
	return msg
}

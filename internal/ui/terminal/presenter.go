// Package terminal renders workbench output: alert banners, the download
// status line, and result tables.
package terminal

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	humanize "github.com/dustin/go-humanize"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
)

// Presenter writes human readable output
type Presenter struct {
	out    io.Writer
	styles Styles

	mu       sync.Mutex
	progress string
}

var _ port.Presenter = (*Presenter)(nil)

// New creates a Presenter writing to out
func New(out io.Writer) *Presenter {
	return &Presenter{
		out:    out,
		styles: NewStyles(lipgloss.NewRenderer(out)),
	}
}

func (p *Presenter) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// Alert shows a banner line
func (p *Presenter) Alert(level port.Level, message string) {
	st := p.styles.level(level)
	p.println(st.Render(levelIcons[level] + " " + message))
}

// Status updates the download status line
func (p *Presenter) Status(level port.Level, message string) {
	st := p.styles.level(level)
	p.println(p.styles.Muted.Render("下载状态:") + " " + st.Render(message))
}

// Progress shows a working message until Done
func (p *Presenter) Progress(message string) {
	p.mu.Lock()
	p.progress = message
	p.mu.Unlock()
	p.println(p.styles.level(port.LevelProgress).Render("⏳ " + message))
}

// Done ends the current progress message
func (p *Presenter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = ""
}

// InProgress returns the active progress message, if any
func (p *Presenter) InProgress() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Presenter) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.styles.Border).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.Header
			}
			return p.styles.Cell
		})
}

// ShowFileInfo renders the uploaded file summary and preview
func (p *Presenter) ShowFileInfo(info *domain.FileInfo) {
	if info == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d  %s %d\n",
		p.styles.Label.Render("列数:"), len(info.Columns),
		p.styles.Label.Render("行数:"), info.Rows)
	fmt.Fprintf(&b, "%s %s\n", p.styles.Label.Render("列名:"), strings.Join(info.Columns, ", "))
	if info.FileFormat != "" {
		fmt.Fprintf(&b, "%s\n", p.styles.Muted.Render(
			fmt.Sprintf("格式: %s  编码: %s", info.FileFormat, info.Encoding)))
	}

	if len(info.Preview) > 0 && len(info.Columns) > 0 {
		t := p.newTable(info.Columns...)
		for _, row := range info.Preview {
			r := domain.PreviewRow(row)
			cells := make([]string, len(info.Columns))
			for i, col := range info.Columns {
				cells[i] = r.Get(col)
			}
			t.Row(cells...)
		}
		b.WriteString(p.styles.Label.Render("数据预览:"))
		b.WriteString("\n")
		b.WriteString(t.String())
	}

	p.println(strings.TrimRight(b.String(), "\n"))
}

// ShowColumns renders the column selectors with the chosen values marked
func (p *Presenter) ShowColumns(sel *domain.ColumnSelection) {
	if sel == nil {
		return
	}
	p.println(p.renderSelector("代码列", sel.CodeOptions, sel.CodeColumn) + "\n" +
		p.renderSelector("价格列", sel.PriceOptions, sel.PriceColumn))
}

func (p *Presenter) renderSelector(label string, options []domain.ColumnOption, chosen string) string {
	parts := make([]string, 0, len(options))
	for _, o := range options {
		if o.Value == chosen {
			parts = append(parts, p.styles.Selected.Render("["+o.Label+"]"))
		} else {
			parts = append(parts, o.Label)
		}
	}
	return p.styles.Label.Render(label+":") + " " + strings.Join(parts, " ")
}

// ShowResults renders processing statistics and the result preview.
// Validation columns are only shown when cross-validation was requested.
func (p *Presenter) ShowResults(result *domain.ProcessResult, crossValidation bool) {
	if result == nil {
		return
	}
	stats := result.Statistics

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d  %s %d  %s %s%%\n",
		p.styles.Label.Render("总数:"), stats.Total,
		p.styles.Label.Render("成功:"), stats.Success,
		p.styles.Label.Render("成功率:"), strconv.FormatFloat(stats.SuccessRate, 'f', -1, 64))
	if stats.Invalid > 0 || stats.NotFound > 0 {
		fmt.Fprintf(&b, "%s\n", p.styles.Muted.Render(
			fmt.Sprintf("代码格式无效: %d  未找到匹配: %d", stats.Invalid, stats.NotFound)))
	}

	columns := slices.Clone(domain.BaseResultColumns)
	if crossValidation {
		columns = append(columns, domain.ValidationResultColumns...)
	}
	statusCol := slices.Index(columns, domain.ColMatchStatus)

	badges := make([]string, len(result.Preview))
	t := p.newTable(columns...)
	for i, row := range result.Preview {
		cells := make([]string, len(columns))
		for j, col := range columns {
			cells[j] = row.Get(col)
		}
		badges[i] = domain.MatchStatus(row.Get(domain.ColMatchStatus)).Badge()
		t.Row(cells...)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return p.styles.Header
		}
		if col == statusCol && row >= 0 && row < len(badges) {
			return p.styles.badge(badges[row]).Padding(0, 1)
		}
		return p.styles.Cell
	})

	if len(result.Preview) > 0 {
		b.WriteString(t.String())
	}
	if result.ResultFile != "" {
		fmt.Fprintf(&b, "\n%s %s", p.styles.Muted.Render("结果文件:"), result.ResultFile)
	}

	p.println(strings.TrimRight(b.String(), "\n"))
}

// ShowSuggestion renders the data source suggestion callout
func (p *Presenter) ShowSuggestion(source string, s *domain.Suggestion) {
	if s == nil || !s.ShouldSuggest {
		return
	}
	msg := source + " " + s.SuggestionReason
	detail := fmt.Sprintf("失败 %d/%d 次", s.FailureCount, s.FailureThreshold)
	p.println(p.styles.Callout.Render("💡 " + msg + "\n" + p.styles.Muted.Render(detail)))
}

// ShowServiceStatus renders the /api/status answer
func (p *Presenter) ShowServiceStatus(s *domain.ServiceStatus) {
	if s.OK() {
		p.Alert(port.LevelSuccess, fmt.Sprintf("服务正常，已加载 %s 只股票", humanize.Comma(int64(s.StockCount))))
		return
	}
	p.Alert(port.LevelDanger, "服务异常: "+s.Error)
}

// ShowStockDataStatus renders the reference dataset status
func (p *Presenter) ShowStockDataStatus(s *domain.StockDataStatus) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s 只股票  %s\n",
		p.styles.Label.Render("当前股票数据:"),
		humanize.Comma(int64(s.CurrentData.TotalStocks)),
		p.styles.Muted.Render("数据源: "+s.CurrentData.DataSource))
	if s.CurrentData.LastUpdated != "" {
		fmt.Fprintf(&b, "%s\n", p.styles.Muted.Render("更新时间: "+s.CurrentData.LastUpdated))
	}
	fmt.Fprintf(&b, "%s 数据文件: %d 个  备份文件: %d 个  待处理: %d 个\n",
		p.styles.Label.Render("文件统计:"),
		s.Files.DataFiles, s.Files.BackupFiles, s.Files.WatchFiles)
	fmt.Fprintf(&b, "%s %s", p.styles.Muted.Render("监控目录:"), s.WatchDirectory)
	p.println(b.String())
}

// ShowAPIKeys renders which sources have a key configured
func (p *Presenter) ShowAPIKeys(keys map[string]domain.APIKeyStatus) {
	t := p.newTable("数据源", "状态")
	for _, source := range slices.Sorted(maps.Keys(keys)) {
		k := keys[source]
		if k.Configured {
			t.Row(source, fmt.Sprintf("已配置 (%d 字符)", k.Length))
		} else {
			t.Row(source, "未配置")
		}
	}
	p.println(t.String())
}

// ShowConnections renders connection test results in the given order
func (p *Presenter) ShowConnections(results []domain.ConnectionResult) {
	for _, r := range results {
		level := port.LevelWarning
		switch r.Status {
		case "success":
			level = port.LevelSuccess
		case "error":
			level = port.LevelDanger
		}
		st := p.styles.level(level)
		p.println(st.Render(levelIcons[level]+" "+r.Source) + "  " + st.Render(r.Message))
	}
}

// ShowSourceStats renders per-source health, worst first
func (p *Presenter) ShowSourceStats(stats map[string]domain.SourceStats) {
	sources := slices.Sorted(maps.Keys(stats))
	slices.SortStableFunc(sources, func(a, b string) int {
		switch {
		case stats[a].SuccessRate < stats[b].SuccessRate:
			return -1
		case stats[a].SuccessRate > stats[b].SuccessRate:
			return 1
		}
		return 0
	})

	health := make([]string, len(sources))
	t := p.newTable("数据源", "成功率", "失败", "请求", "建议")
	for i, source := range sources {
		s := stats[source]
		health[i] = s.Health()
		hint := ""
		if s.ShouldSuggestAPI {
			hint = "建议配置API"
		}
		t.Row(source,
			strconv.FormatFloat(s.SuccessRate, 'f', -1, 64)+"%",
			strconv.Itoa(s.FailureCount),
			strconv.Itoa(s.TotalRequests),
			hint)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return p.styles.Header
		}
		if col == 1 && row >= 0 && row < len(health) {
			return p.styles.badge(health[row]).Padding(0, 1)
		}
		return p.styles.Cell
	})
	p.println(t.String())
}

// ShowDownloadReport summarises a fallback chain run
func (p *Presenter) ShowDownloadReport(r *domain.DownloadReport) {
	if r == nil || len(r.Attempts) == 0 {
		return
	}
	p.println(p.attemptTable(r.Attempts).String())
	if r.SavedPath != "" {
		p.println(p.styles.Muted.Render("保存位置:") + " " + r.SavedPath)
	}
}

// ShowAttempts renders stored download history
func (p *Presenter) ShowAttempts(attempts []*domain.DownloadAttempt) {
	if len(attempts) == 0 {
		p.Alert(port.LevelInfo, "暂无下载记录")
		return
	}
	list := make([]domain.DownloadAttempt, len(attempts))
	for i, a := range attempts {
		list[i] = *a
	}
	t := p.attemptTable(list)
	p.println(t.String())
}

func (p *Presenter) attemptTable(attempts []domain.DownloadAttempt) *table.Table {
	outcomes := make([]string, len(attempts))
	t := p.newTable("时间", "文件", "方式", "结果", "大小", "耗时", "错误")
	for i, a := range attempts {
		outcomes[i] = outcomeBadge(a.Outcome)
		size := ""
		if a.Bytes > 0 {
			size = humanize.IBytes(uint64(a.Bytes))
		}
		when := ""
		if !a.CreatedAt.IsZero() {
			when = humanize.Time(a.CreatedAt)
		}
		t.Row(when, a.ResultFile.String(), a.Strategy, string(a.Outcome), size,
			a.Duration.Round(time.Millisecond).String(), a.Error)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return p.styles.Header
		}
		if col == 3 && row >= 0 && row < len(outcomes) {
			return p.styles.badge(outcomes[row]).Padding(0, 1)
		}
		return p.styles.Cell
	})
	return t
}

func outcomeBadge(o domain.DownloadOutcome) string {
	switch o {
	case domain.OutcomeSucceeded:
		return domain.BadgeSuccess
	case domain.OutcomeIndeterminate:
		return domain.BadgeWarning
	case domain.OutcomeFailed:
		return domain.BadgeDanger
	default:
		return domain.BadgeSecondary
	}
}

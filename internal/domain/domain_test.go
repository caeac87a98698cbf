package domain

import (
	"errors"
	"testing"
)

func TestResultFileName_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      ResultFileName
		wantErr error
	}{
		{name: "plain", in: "stock_completion_20240101_120000.csv"},
		{name: "unicode", in: "结果.csv"},
		{name: "empty", in: "", wantErr: ErrNothingToDownload},
		{name: "parent dir", in: "../etc/passwd", wantErr: ErrInvalidResultName},
		{name: "slash", in: "a/b.csv", wantErr: ErrInvalidResultName},
		{name: "backslash", in: `a\b.csv`, wantErr: ErrInvalidResultName},
		{name: "double dot inside", in: "a..csv", wantErr: ErrInvalidResultName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDownloadOutcome_IsPositive(t *testing.T) {
	if !OutcomeSucceeded.IsPositive() {
		t.Error("succeeded should be positive")
	}
	if !OutcomeIndeterminate.IsPositive() {
		t.Error("indeterminate is assumed successful")
	}
	if OutcomeFailed.IsPositive() {
		t.Error("failed should not be positive")
	}
}

func TestDownloadReport_Attempted(t *testing.T) {
	r := &DownloadReport{
		Attempts: []DownloadAttempt{
			{Strategy: StrategyBufferedFetch, Outcome: OutcomeFailed},
			{Strategy: StrategyDirectLink, Outcome: OutcomeIndeterminate},
		},
		Outcome: OutcomeIndeterminate,
	}

	if !r.Attempted(StrategyDirectLink) {
		t.Error("link should be attempted")
	}
	if r.Attempted(StrategyNewWindow) {
		t.Error("window should not be attempted")
	}
	if !r.Succeeded() {
		t.Error("indeterminate report should count as success")
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		msg  string
		want FailureKind
	}{
		{"处理失败: 请求超时", FailureTimeout},
		{"read timeout after 30s", FailureTimeout},
		{"连接被拒绝", FailureTimeout},
		{"网络不可达", FailureTimeout},
		{"API limit reached", FailureAPIError},
		{"密钥无效", FailureAPIError},
		{"api lower case is not an API error", FailureAPIError},
		{"api lowercase only", FailureUnknown},
		{"Timeout with capital T", FailureUnknown},
		{"", FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := ClassifyFailure(tt.msg); got != tt.want {
				t.Errorf("ClassifyFailure(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestMatchStatus_Badge(t *testing.T) {
	tests := map[MatchStatus]string{
		MatchSuccess:     BadgeSuccess,
		MatchInvalidCode: BadgeWarning,
		MatchNotFound:    BadgeDanger,
		"匹配成功(低置信度)":    BadgeSecondary,
		"":               BadgeSecondary,
	}
	for status, want := range tests {
		if got := status.Badge(); got != want {
			t.Errorf("Badge(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestPreviewRow_Get(t *testing.T) {
	row := PreviewRow{
		ColOriginalCode: "000001",
		ColCurrentPrice: 12.5,
		ColStockName:    nil,
		"count":         float64(3),
	}

	if got := row.Get(ColOriginalCode); got != "000001" {
		t.Errorf("Get(code) = %q", got)
	}
	if got := row.Get(ColCurrentPrice); got != "12.5" {
		t.Errorf("Get(price) = %q", got)
	}
	if got := row.Get("count"); got != "3" {
		t.Errorf("Get(count) = %q", got)
	}
	if got := row.Get(ColStockName); got != "" {
		t.Errorf("Get(null) = %q, want empty", got)
	}
	if got := row.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}
}

func TestSourceStats_Health(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{100, BadgeSuccess},
		{80, BadgeSuccess},
		{79.9, BadgeWarning},
		{50, BadgeWarning},
		{49.9, BadgeDanger},
		{0, BadgeDanger},
	}
	for _, tt := range tests {
		if got := (SourceStats{SuccessRate: tt.rate}).Health(); got != tt.want {
			t.Errorf("Health(%v) = %v, want %v", tt.rate, got, tt.want)
		}
	}
}

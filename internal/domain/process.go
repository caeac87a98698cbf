package domain

import (
	"fmt"
	"strconv"
)

// ProcessRequest is the body sent to /process.
// Empty column names are sent as null so the server auto-detects them.
type ProcessRequest struct {
	Filename              string  `json:"filename"`
	CodeColumn            *string `json:"code_column"`
	PriceColumn           *string `json:"price_column"`
	APISource             string  `json:"api_source"`
	EnableCrossValidation bool    `json:"enable_cross_validation"`
	UseOptimization       bool    `json:"use_optimization"`
}

// Statistics summarises a processing run
type Statistics struct {
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	Invalid     int     `json:"invalid"`
	NotFound    int     `json:"not_found"`
	SuccessRate float64 `json:"success_rate"`
}

// PreviewRow is one row of the result preview keyed by column name
type PreviewRow map[string]any

// Result preview column names as produced by the server
const (
	ColOriginalCode    = "原始代码"
	ColNormalizedCode  = "标准化代码"
	ColStockName       = "股票名称"
	ColCurrentPrice    = "当前价格"
	ColReferencePrice  = "参考价格"
	ColPriceDifference = "价格差异"
	ColMatchStatus     = "匹配状态"
	ColValidationScore = "验证置信度"
	ColNameConsistency = "名称一致性"
)

// BaseResultColumns are always rendered
var BaseResultColumns = []string{
	ColOriginalCode, ColNormalizedCode, ColStockName,
	ColCurrentPrice, ColReferencePrice, ColPriceDifference, ColMatchStatus,
}

// ValidationResultColumns are rendered only with cross-validation
var ValidationResultColumns = []string{ColValidationScore, ColNameConsistency}

// Get returns the cell as display text, empty for missing or null values
func (r PreviewRow) Get(column string) string {
	v, ok := r[column]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// ProcessResult is returned by a successful /process call
type ProcessResult struct {
	ResultFile ResultFileName `json:"result_file"`
	Statistics Statistics     `json:"statistics"`
	Preview    []PreviewRow   `json:"preview"`
}

// MatchStatus is the value of the 匹配状态 column
type MatchStatus string

const (
	MatchSuccess     MatchStatus = "匹配成功"
	MatchInvalidCode MatchStatus = "代码格式无效"
	MatchNotFound    MatchStatus = "未找到匹配"
)

// Badge levels used to colour a match status
const (
	BadgeSuccess   = "success"
	BadgeWarning   = "warning"
	BadgeDanger    = "danger"
	BadgeSecondary = "secondary"
)

// Badge returns the badge level for the status
func (s MatchStatus) Badge() string {
	switch s {
	case MatchSuccess:
		return BadgeSuccess
	case MatchInvalidCode:
		return BadgeWarning
	case MatchNotFound:
		return BadgeDanger
	default:
		return BadgeSecondary
	}
}

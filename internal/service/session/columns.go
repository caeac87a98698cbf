package session

import (
	"strings"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// AutoDetectLabel is the label of the empty option that lets the server pick
const AutoDetectLabel = "自动检测"

var (
	codeKeywords  = []string{"代码", "股票代码", "证券代码", "code", "symbol"}
	priceKeywords = []string{"价格", "股价", "现价", "最新价", "收盘价", "price", "close"}
)

// BuildColumnSelection populates both selectors with an auto-detect option
// followed by every column, and pre-selects likely code and price columns.
func BuildColumnSelection(columns []string) *domain.ColumnSelection {
	options := make([]domain.ColumnOption, 0, len(columns)+1)
	options = append(options, domain.ColumnOption{Value: "", Label: AutoDetectLabel})
	for _, col := range columns {
		options = append(options, domain.ColumnOption{Value: col, Label: col})
	}

	return &domain.ColumnSelection{
		CodeOptions:  options,
		PriceOptions: append([]domain.ColumnOption(nil), options...),
		CodeColumn:   firstMatching(columns, codeKeywords),
		PriceColumn:  firstMatching(columns, priceKeywords),
	}
}

// firstMatching returns the first column whose lower-cased name contains a keyword
func firstMatching(columns, keywords []string) string {
	for _, col := range columns {
		lower := strings.ToLower(col)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return col
			}
		}
	}
	return ""
}

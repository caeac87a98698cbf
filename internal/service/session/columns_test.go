package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildColumnSelection_TenColumns(t *testing.T) {
	columns := []string{"序号", "股票代码", "股票名称", "最新价", "涨跌幅", "成交量", "成交额", "市盈率", "市净率", "备注"}

	sel := BuildColumnSelection(columns)

	require.Len(t, sel.CodeOptions, 11)
	require.Len(t, sel.PriceOptions, 11)
	assert.Equal(t, "", sel.CodeOptions[0].Value)
	assert.Equal(t, AutoDetectLabel, sel.CodeOptions[0].Label)
	for i, col := range columns {
		assert.Equal(t, col, sel.CodeOptions[i+1].Value)
		assert.Equal(t, col, sel.PriceOptions[i+1].Label)
	}
	assert.Equal(t, "股票代码", sel.CodeColumn)
	assert.Equal(t, "最新价", sel.PriceColumn)
}

func TestBuildColumnSelection_AutoSelect(t *testing.T) {
	tests := []struct {
		name      string
		columns   []string
		wantCode  string
		wantPrice string
	}{
		{"english case insensitive", []string{"Name", "Symbol", "Close"}, "Symbol", "Close"},
		{"first match wins", []string{"证券代码", "代码"}, "证券代码", ""},
		{"substring", []string{"stock_code", "last_price"}, "stock_code", "last_price"},
		{"no match", []string{"a", "b"}, "", ""},
		{"empty", nil, "", ""},
		{"收盘价", []string{"日期", "收盘价"}, "", "收盘价"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := BuildColumnSelection(tt.columns)
			assert.Equal(t, tt.wantCode, sel.CodeColumn)
			assert.Equal(t, tt.wantPrice, sel.PriceColumn)
			assert.Len(t, sel.CodeOptions, len(tt.columns)+1)
		})
	}
}

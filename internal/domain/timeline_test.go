package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeline(t *testing.T) {
	tests := []struct {
		name string
		text string
		want MilestoneDates
	}{
		{
			name: "Board and shareholder stages",
			text: "2024-01-10 董事会预案\n2024-03-01 股东大会通过",
			want: MilestoneDates{
				BoardDt:       strPtr("2024-01-10"),
				ShareholderDt: strPtr("2024-03-01"),
			},
		},
		{
			name: "All five stages",
			text: "2024-01-10 董事会预案\n2024-03-01 股东大会通过\n2024-04-15 交易所受理\n2024-07-20 上市委通过\n2024-09-05 证监会同意注册",
			want: MilestoneDates{
				BoardDt:       strPtr("2024-01-10"),
				ShareholderDt: strPtr("2024-03-01"),
				AcceptDt:      strPtr("2024-04-15"),
				CommitteeDt:   strPtr("2024-07-20"),
				RegisterDt:    strPtr("2024-09-05"),
			},
		},
		{
			name: "Duplicate stage keeps the last entry",
			text: "2024-01-10 董事会预案\n2024-02-02 董事会预案(修订)",
			want: MilestoneDates{BoardDt: strPtr("2024-02-02")},
		},
		{
			name: "Malformed and unmatched lines are skipped",
			text: "无日期的行\n2024-13 坏日期 股东大会通过\n2024-05-01 发审委通过\n2024-01-10 董事会预案",
			want: MilestoneDates{BoardDt: strPtr("2024-01-10")},
		},
		{
			name: "Empty text",
			text: "",
			want: MilestoneDates{},
		},
		{
			name: "Whitespace and blank lines tolerated",
			text: "\n  2024-01-10 董事会预案  \n\n",
			want: MilestoneDates{BoardDt: strPtr("2024-01-10")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTimeline(tt.text))
		})
	}
}

func TestParseTimeline_Deterministic(t *testing.T) {
	text := "2024-01-10 董事会预案\n2024-03-01 股东大会通过\n2024-04-15 交易所受理"
	first := ParseTimeline(text)
	second := ParseTimeline(text)
	assert.Equal(t, first, second)
}

func TestSanitizeHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Empty", "", ""},
		{"Plain text untouched", "已受理", "已受理"},
		{"Br becomes space", "已受理<br>待上会", "已受理 待上会"},
		{"Self closing br", "已受理<br/>待上会", "已受理 待上会"},
		{"Br with spacing", "已受理<br />待上会", "已受理 待上会"},
		{"Tags stripped", `<span class="red">已受理</span>`, "已受理"},
		{"Result trimmed", "<b> 已受理 </b>", "已受理"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeHTML(tt.in))
		})
	}
}

func strPtr(s string) *string { return &s }

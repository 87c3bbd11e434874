package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachment(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{
			name:     "ascii",
			filename: "outubro.csv",
			want:     `attachment; filename="outubro.csv"; filename*=UTF-8''outubro.csv`,
		},
		{
			name:     "accented unit",
			filename: "historico-Teresópolis.csv",
			want:     `attachment; filename="historico-Teresopolis.csv"; filename*=UTF-8''historico-Teres%C3%B3polis.csv`,
		},
		{
			name:     "quotes and spaces",
			filename: `relatório "final".xlsx`,
			want:     `attachment; filename="relatorio _final_.xlsx"; filename*=UTF-8''relat%C3%B3rio%20%22final%22.xlsx`,
		},
		{
			name:     "no latin equivalent",
			filename: "報告.csv",
			want:     `attachment; filename="__.csv"; filename*=UTF-8''%E5%A0%B1%E5%91%8A.csv`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attachment(tt.filename))
		})
	}
}

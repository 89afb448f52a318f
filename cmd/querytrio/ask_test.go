package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querytrio/querytrio/strategy"
	"github.com/querytrio/querytrio/workflow"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    workflow.Decision
		wantErr bool
	}{
		{"execute basic", "1", workflow.Execute(strategy.OriginBasic), false},
		{"execute optimized", "2", workflow.Execute(strategy.OriginOptimized), false},
		{"execute advanced", "3", workflow.Execute(strategy.OriginAdvanced), false},
		{"cancel", "c", workflow.Cancel(), false},
		{"regenerate all", "r use a join instead", workflow.Regenerate("use a join instead", ""), false},
		{"regenerate targeted", "r:advanced use the users table", workflow.Regenerate("use the users table", strategy.OriginAdvanced), false},
		{"targeted without feedback", "r:basic", workflow.Decision{}, true},
		{"targeted unknown origin", "r:fancy do it better", workflow.Decision{}, true},
		{"garbage", "execute the good one", workflow.Decision{}, true},
		{"empty", "", workflow.Decision{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDecision(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package coverage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/vmi/pkg/application/services/coverage"
	"github.com/vsinha/vmi/pkg/domain/entities"
	testhelpers "github.com/vsinha/vmi/pkg/infrastructure/testing"
)

func TestEngine_LabelScenario(t *testing.T) {
	s := testhelpers.BuildLabelScenario()
	engine := coverage.NewEngine(coverage.Sources{
		FG:          s.FG,
		WIP:         s.WIP,
		SecondaryFG: s.SecondaryFG,
		Jobs:        s.Jobs,
		Items:       s.Items,
	})

	forecast, ok := s.Forecasts.ForPartSite("L-61370448-14", "45FL")
	require.True(t, ok)
	november := forecast.MonthlyQuantity(time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		part     entities.PartNumber
		forecast entities.Quantity
		action   entities.Action
		source   entities.Source
		job      string
		item     string
	}{
		{"L-61370444-14", 0, entities.ActionMovement, entities.SourceFG, "FG-1", "6137044"},
		{"L-61370445-14", 0, entities.ActionStockJob, entities.SourceNew, "", ""},
		{"L-61370446-14", 0, entities.ActionMovement, entities.SourceSecondaryFG, "S-3", "6137044"},
		{"L-61370447-14", 0, entities.ActionMovement, entities.SourceJob, "J-9", "6137047"},
		{"L-61370448-14", november, entities.ActionStockJob, entities.SourceNew, "", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.part), func(t *testing.T) {
			d := engine.Decide(context.Background(), tt.part, "45FL", 1000, tt.forecast)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.source, d.Source)
			assert.Equal(t, tt.job, d.JobNumber)
			if tt.item != "" {
				assert.Equal(t, tt.item, d.ItemCode)
			}
		})
	}

	d := engine.Decide(context.Background(), "L-61370448-14", "45FL", 1200, november)
	assert.Equal(t, entities.ActionRushJob, d.Action, "order above the monthly forecast")
}

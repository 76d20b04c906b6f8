package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelChain_DedupesPreservingOrder(t *testing.T) {
	chain := ModelChain("sonnet", "opus", "haiku", []string{"opus", "extra-model", "sonnet"})
	assert.Equal(t, []string{"sonnet", "opus", "haiku", "extra-model"}, chain)
}

func TestModelChain_SkipsBlankEntries(t *testing.T) {
	chain := ModelChain("sonnet", "", "", nil)
	assert.Equal(t, []string{"sonnet"}, chain)
}

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }

func TestGate_RejectsDayOutOfRange(t *testing.T) {
	effective, quality := Gate([]DayReading{
		{DayOfMonth: 32, TotalHours: f64p(8), Confidence: 0.9, RowState: RowStateWorked},
	}, DefaultGateConfig)
	assert.Empty(t, effective)
	assert.Empty(t, quality.RowQualityByDay)
}

func TestGate_AcceptsTotalOnlyRow(t *testing.T) {
	effective, quality := Gate([]DayReading{
		{DayOfMonth: 10, TotalHours: f64p(7.5), Confidence: 0.9, RowState: RowStateWorked},
	}, DefaultGateConfig)
	require := assert.New(t)
	require.Len(effective, 1)
	require.Empty(quality.ReviewRequiredDays)
}

func TestGate_AcceptsConsistentRangeAndTotal(t *testing.T) {
	effective, quality := Gate([]DayReading{
		{
			DayOfMonth: 10,
			FromTime:   strp("08:00"),
			ToTime:     strp("16:00"),
			TotalHours: f64p(8),
			Confidence: 0.95,
			RowState:   RowStateWorked,
		},
	}, DefaultGateConfig)
	assert.Len(t, effective, 1)
	assert.Empty(t, quality.ReviewRequiredDays)
}

func TestGate_RetainsInconsistentRangeAndTotalAsReviewRequired(t *testing.T) {
	effective, quality := Gate([]DayReading{
		{
			DayOfMonth: 10,
			FromTime:   strp("08:00"),
			ToTime:     strp("16:00"),
			TotalHours: f64p(4),
			Confidence: 0.95,
			RowState:   RowStateWorked,
		},
	}, DefaultGateConfig)
	assert.Len(t, effective, 1)
	assert.Equal(t, 4.0, *effective[0].TotalHours)
	assert.Contains(t, quality.ReviewRequiredDays, 10)
	assert.Contains(t, quality.RowQualityByDay[10].Reasons, ReasonTimeTotalConflict)
}

func TestGate_HandlesOvernightShift(t *testing.T) {
	effective, quality := Gate([]DayReading{
		{
			DayOfMonth: 10,
			FromTime:   strp("22:00"),
			ToTime:     strp("06:00"),
			TotalHours: f64p(8),
			Confidence: 0.95,
			RowState:   RowStateWorked,
		},
	}, DefaultGateConfig)
	assert.Len(t, effective, 1)
	assert.Empty(t, quality.ReviewRequiredDays)
}

func TestGate_RetainsLowConfidenceTotalOnlyAsReviewRequired(t *testing.T) {
	effective, quality := Gate([]DayReading{
		{DayOfMonth: 11, TotalHours: f64p(8.5), Confidence: 0.6, RowState: RowStateWorked},
	}, DefaultGateConfig)
	assert.Len(t, effective, 1)
	assert.Contains(t, quality.ReviewRequiredDays, 11)
	assert.Contains(t, quality.RowQualityByDay[11].Reasons, ReasonLowConfTotalOnly)
}

func TestGate_ForcesOffMarkRowTotalToNil(t *testing.T) {
	effective, quality := Gate([]DayReading{
		{DayOfMonth: 7, TotalHours: f64p(10), Confidence: 0.92, RowState: RowStateOffMark, MarkType: "SINGLE_LINE"},
	}, DefaultGateConfig)
	require := assert.New(t)
	require.Len(effective, 1)
	require.Nil(effective[0].TotalHours)
	require.Equal(RowStateOffMark, effective[0].RowState)
	require.Contains(quality.OffMarkDays, 7)
}

func TestGate_KeepsEmptyRowWithoutFlags(t *testing.T) {
	effective, quality := Gate([]DayReading{
		{DayOfMonth: 10, Confidence: 0.95, RowState: RowStateEmpty},
	}, DefaultGateConfig)
	assert.Len(t, effective, 1)
	assert.Empty(t, quality.ReviewRequiredDays)
	assert.Empty(t, quality.OffMarkDays)
}

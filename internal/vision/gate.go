package vision

// RowState is the extractor's classification of one day row before gating.
type RowState string

const (
	RowStateWorked  RowState = "WORKED"
	RowStateOffMark RowState = "OFF_MARK"
	RowStateEmpty   RowState = "EMPTY"
)

// DayReading is one extracted day row before it is trusted enough to
// become a WorkCardDayEntry.
type DayReading struct {
	DayOfMonth int
	FromTime   *string
	ToTime     *string
	TotalHours *float64
	Confidence float64
	RowState   RowState
	MarkType   string
	Evidence   []string
}

// GateConfig tunes the thresholds the semantic gate enforces.
type GateConfig struct {
	MinConfidence  float64
	MaxHoursDeltaH float64
}

// DefaultGateConfig matches the thresholds observed in the source pipeline.
var DefaultGateConfig = GateConfig{MinConfidence: 0.8, MaxHoursDeltaH: 0.25}

const (
	ReasonLowConfTotalOnly  = "low_conf_total_only"
	ReasonTimeTotalConflict = "time_total_conflict"
)

// DayQuality is the gate's per-day diagnostic, keyed by day-of-month.
type DayQuality struct {
	Reasons []string
}

// QualityMap is the gate's output alongside the effective entries: which
// days need human review, and which were off-mark (e.g. a leave day marked
// with a single line through the row instead of a time range).
type QualityMap struct {
	RowQualityByDay   map[int]DayQuality
	ReviewRequiredDays []int
	OffMarkDays        []int
}

func newQualityMap() QualityMap {
	return QualityMap{RowQualityByDay: make(map[int]DayQuality)}
}

func (q *QualityMap) addReason(day int, reason string) {
	dq := q.RowQualityByDay[day]
	dq.Reasons = append(dq.Reasons, reason)
	q.RowQualityByDay[day] = dq
}

func (q *QualityMap) markReviewRequired(day int) {
	q.ReviewRequiredDays = append(q.ReviewRequiredDays, day)
}

func (q *QualityMap) markOffMark(day int) {
	q.OffMarkDays = append(q.OffMarkDays, day)
}

// Gate is the pure SemanticGate transform: it drops a row outright only
// when its day is out of range (day ∉ [1,31]); every other row is
// retained and annotated so a human reviewer
// can see what the extractor was unsure about. Rules applied, in order:
//   - day_of_month out of [1, 31]: row rejected entirely.
//   - OFF_MARK with no complete (from, to) pair: total_hours forced to
//     null, row kept as OFF_MARK, day recorded in OffMarkDays.
//   - total present, both times absent, confidence below MinConfidence:
//     row kept, "low_conf_total_only" reason + review-required.
//   - both times present and the computed duration differs from the
//     stated total by more than MaxHoursDeltaH: row kept,
//     "time_total_conflict" reason + review-required.
func Gate(days []DayReading, cfg GateConfig) ([]DayReading, QualityMap) {
	quality := newQualityMap()
	effective := make([]DayReading, 0, len(days))

	for _, r := range days {
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			continue
		}

		hasRange := r.FromTime != nil && r.ToTime != nil
		hasTotal := r.TotalHours != nil

		if r.RowState == RowStateOffMark && !hasRange {
			r.TotalHours = nil
			quality.markOffMark(r.DayOfMonth)
			effective = append(effective, r)
			continue
		}

		if hasTotal && !hasRange && r.Confidence < cfg.MinConfidence {
			quality.addReason(r.DayOfMonth, ReasonLowConfTotalOnly)
			quality.markReviewRequired(r.DayOfMonth)
		}

		if hasRange && hasTotal {
			if computed, ok := hoursBetween(*r.FromTime, *r.ToTime); ok {
				delta := computed - *r.TotalHours
				if delta < 0 {
					delta = -delta
				}
				if delta > cfg.MaxHoursDeltaH {
					quality.addReason(r.DayOfMonth, ReasonTimeTotalConflict)
					quality.markReviewRequired(r.DayOfMonth)
				}
			}
		}

		effective = append(effective, r)
	}

	return effective, quality
}

func hoursBetween(from, to string) (float64, bool) {
	fh, fm, ok1 := splitHHMM(from)
	th, tm, ok2 := splitHHMM(to)
	if !ok1 || !ok2 {
		return 0, false
	}
	start := fh*60 + fm
	end := th*60 + tm
	if end < start {
		// overnight shift wraps past midnight
		end += 24 * 60
	}
	return float64(end-start) / 60.0, true
}

func splitHHMM(v string) (int, int, bool) {
	if len(v) != 5 || v[2] != ':' {
		return 0, 0, false
	}
	h := int(v[0]-'0')*10 + int(v[1]-'0')
	m := int(v[3]-'0')*10 + int(v[4]-'0')
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"workcard-backend/internal/models"
)

func strp(s string) *string { return &s }

func TestResolve_ExactPassportMatch(t *testing.T) {
	candidates := []Candidate{
		{EmployeeID: "e1", FullName: "John Doe", PassportID: strp("A1234567")},
		{EmployeeID: "e2", FullName: "Jane Roe", PassportID: strp("B7654321")},
	}

	res := Resolve(Extracted{PassportID: "a-123-4567"}, candidates, 5, 12, false, nil)

	assert.True(t, res.Matched)
	assert.Equal(t, "e1", res.EmployeeID)
	assert.Equal(t, models.MatchMethodPassportExact, res.Method)
}

func TestResolve_AmbiguousExactMatchYieldsNoMatch(t *testing.T) {
	candidates := []Candidate{
		{EmployeeID: "e1", FullName: "John Doe", PassportID: strp("A1234567")},
		{EmployeeID: "e2", FullName: "John Impostor", PassportID: strp("A1234567")},
	}

	res := Resolve(Extracted{PassportID: "A1234567"}, candidates, 5, 12, false, nil)

	assert.False(t, res.Matched)
	assert.Equal(t, models.MatchMethodNone, res.Method)
}

func TestResolve_FallsBackToCandidateReading(t *testing.T) {
	candidates := []Candidate{
		{EmployeeID: "e1", FullName: "John Doe", PassportID: strp("A1234567")},
	}

	res := Resolve(Extracted{
		PassportID:         "garbage!!",
		PassportCandidates: []string{"a 123 4567"},
	}, candidates, 5, 12, false, nil)

	assert.True(t, res.Matched)
	assert.Equal(t, "e1", res.EmployeeID)
	assert.Equal(t, models.MatchMethodPassportCandidate, res.Method)
}

func TestResolve_NameSiteFallbackRequiresOptIn(t *testing.T) {
	candidates := []Candidate{
		{EmployeeID: "e1", FullName: "John Doe", SiteID: strp("site-1")},
	}
	site := "site-1"

	res := Resolve(Extracted{Name: "John Doe"}, candidates, 5, 12, false, &site)
	assert.False(t, res.Matched)

	res = Resolve(Extracted{Name: "John Doe"}, candidates, 5, 12, true, &site)
	assert.True(t, res.Matched)
	assert.Equal(t, models.MatchMethodNameSiteFallback, res.Method)
}

func TestResolve_NoMatchWhenNothingIdentifiesTheCard(t *testing.T) {
	candidates := []Candidate{{EmployeeID: "e1", FullName: "John Doe"}}
	res := Resolve(Extracted{}, candidates, 5, 12, true, nil)
	assert.False(t, res.Matched)
	assert.Equal(t, models.MatchMethodNone, res.Method)
}

func TestDiagnoseIdentityMismatch(t *testing.T) {
	cases := []struct {
		name       string
		extracted  string
		assigned   *string
		wantReason string
		wantMis    bool
	}{
		{"no extracted id", "", strp("A1234567"), ReasonNoExtractedID, false},
		{"no assigned id", "A1234567", nil, ReasonNoAssignedID, false},
		{"exact raw match", "A1234567", strp("A1234567"), "", false},
		{"format only diff", "a 123 4567", strp("A1234567"), ReasonFormatOnlyDiff, false},
		{"value diff", "A1234567", strp("B7654321"), ReasonValueDiff, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, mismatched := DiagnoseIdentityMismatch(tc.extracted, tc.assigned, 5, 12)
			assert.Equal(t, tc.wantReason, reason)
			assert.Equal(t, tc.wantMis, mismatched)
		})
	}
}

// Package resolver matches an extracted work-card identity (a name and/or
// passport ID read off a photograph) against the employees of a business,
// following an ordered policy that never guesses: ambiguity resolves to "no
// match" rather than a best-effort pick.
package resolver

import (
	"strings"

	"workcard-backend/internal/models"
	"workcard-backend/internal/passport"
)

// Candidate is an employee eligible for matching, scoped to the card's
// business (and, when known, its site).
type Candidate struct {
	EmployeeID string
	FullName   string
	PassportID *string // as stored (raw); normalized before comparison
	SiteID     *string
}

// Extracted is what the vision pipeline read off the card image.
type Extracted struct {
	Name               string
	PassportID         string   // primary reading, possibly empty
	PassportCandidates []string // alternate OCR readings of the same field
}

// Result is the outcome of a resolution attempt.
type Result struct {
	EmployeeID string
	Method     string // one of the models.MatchMethod* constants
	Matched    bool
	Confidence float64
	IsExact    bool
}

// Confidence values per match method, as named in the source matcher.
const (
	ConfidencePassportExact     = 1.0
	ConfidencePassportCandidate = 0.95
	ConfidenceNameSiteFallback  = 0.85
)

// Resolve applies the ordered matching policy from the original matcher:
//  1. exact match on the normalized primary passport reading
//  2. exact match on any normalized alternate passport candidate
//  3. optional name+site fallback, only when exactly one candidate matches
//     and the caller has enabled it
//
// A step that finds more than one matching employee yields no match from
// that step and the next step is tried; ambiguity is never resolved by
// guessing.
func Resolve(extracted Extracted, candidates []Candidate, minLen, maxLen int, allowNameSiteFallback bool, siteID *string) Result {
	if norm, ok := passport.Normalize(extracted.PassportID, minLen, maxLen); ok {
		if res, found := matchByPassport(norm, candidates, minLen, maxLen, models.MatchMethodPassportExact); found {
			return res
		}
	}

	for _, cand := range passport.NormalizeCandidates(extracted.PassportCandidates, minLen, maxLen) {
		if res, found := matchByPassport(cand, candidates, minLen, maxLen, models.MatchMethodPassportCandidate); found {
			return res
		}
	}

	if allowNameSiteFallback && extracted.Name != "" && siteID != nil {
		if res, found := matchByNameAndSite(extracted.Name, *siteID, candidates); found {
			return res
		}
	}

	return Result{Method: models.MatchMethodNone, Matched: false}
}

func matchByPassport(normalized string, candidates []Candidate, minLen, maxLen int, method string) (Result, bool) {
	var matches []Candidate
	for _, c := range candidates {
		if c.PassportID == nil {
			continue
		}
		if stored, ok := passport.Normalize(*c.PassportID, minLen, maxLen); ok && stored == normalized {
			matches = append(matches, c)
		}
	}
	if len(matches) != 1 {
		return Result{}, false
	}
	confidence := ConfidencePassportCandidate
	if method == models.MatchMethodPassportExact {
		confidence = ConfidencePassportExact
	}
	return Result{
		EmployeeID: matches[0].EmployeeID,
		Method:     method,
		Matched:    true,
		Confidence: confidence,
		IsExact:    true,
	}, true
}

func matchByNameAndSite(name, siteID string, candidates []Candidate) (Result, bool) {
	normName := normalizeName(name)
	var matches []Candidate
	for _, c := range candidates {
		if c.SiteID != nil && *c.SiteID == siteID && normalizeName(c.FullName) == normName {
			matches = append(matches, c)
		}
	}
	if len(matches) != 1 {
		return Result{}, false
	}
	return Result{
		EmployeeID: matches[0].EmployeeID,
		Method:     models.MatchMethodNameSiteFallback,
		Matched:    true,
		Confidence: ConfidenceNameSiteFallback,
		IsExact:    false,
	}, true
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Identity mismatch reasons, matching diagnose_identity_mismatch in the
// original matcher.
const (
	ReasonNoExtractedID  = "NO_EXTRACTED_ID"
	ReasonNoAssignedID   = "NO_ASSIGNED_ID"
	ReasonFormatOnlyDiff = "FORMAT_ONLY_DIFF"
	ReasonValueDiff      = "VALUE_DIFF"
)

// DiagnoseIdentityMismatch compares the passport ID extracted off a new
// card against the passport ID already on file for the employee the card
// is assigned to, reporting why they differ (if they do) without making an
// assignment decision itself — that stays the caller's call, per the design
// note that a VALUE_DIFF mismatch warns rather than blocks approval.
func DiagnoseIdentityMismatch(extractedRaw string, assignedPassport *string, minLen, maxLen int) (reason string, mismatched bool) {
	extractedNorm, extractedOK := passport.Normalize(extractedRaw, minLen, maxLen)
	if !extractedOK {
		return ReasonNoExtractedID, false
	}
	if assignedPassport == nil || *assignedPassport == "" {
		return ReasonNoAssignedID, false
	}

	assignedNorm, assignedOK := passport.Normalize(*assignedPassport, minLen, maxLen)
	if !assignedOK {
		return ReasonValueDiff, true
	}
	if extractedNorm == assignedNorm {
		if extractedRaw == *assignedPassport {
			return "", false
		}
		// Same passport, different formatting — not a real mismatch.
		return ReasonFormatOnlyDiff, false
	}

	return ReasonValueDiff, true
}

package models

// Employee status values, matching the original source's enum.
const (
	EmployeeStatusActive           = "ACTIVE"
	EmployeeStatusReportedInSpark  = "REPORTED_IN_SPARK"
	EmployeeStatusReportedReturned = "REPORTED_RETURNED_FROM_ESCAPE"
)

// Employee belongs to a Business and, optionally, a Site.
// PassportID is the raw (un-normalized) value as entered by staff; it may be
// nil for employees not yet identified by document. Uniqueness of
// (business_id, passport_id) is enforced where passport_id is not null.
type Employee struct {
	ID                 string  `json:"id"`
	BusinessID         string  `json:"businessId"`
	SiteID             *string `json:"siteId,omitempty"`
	FullName           string  `json:"fullName"`
	PassportID         *string `json:"passportId,omitempty"`
	PhoneNumber        *string `json:"phoneNumber,omitempty"`
	Status             string  `json:"status"`
	ExternalEmployeeID *string `json:"externalEmployeeId,omitempty"`
	IsActive           bool    `json:"isActive"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

// CreateEmployeeRequest is the payload accepted for employee creation.
type CreateEmployeeRequest struct {
	SiteID      *string `json:"siteId,omitempty"`
	FullName    string  `json:"fullName"`
	PassportID  *string `json:"passportId,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// Validate checks the required fields for creating an employee.
func (r *CreateEmployeeRequest) Validate() map[string]string {
	errs := map[string]string{}
	if r.FullName == "" {
		errs["fullName"] = "Full name is required"
	}
	if r.Status == "" {
		r.Status = EmployeeStatusActive
	}
	valid := map[string]bool{
		EmployeeStatusActive:           true,
		EmployeeStatusReportedInSpark:  true,
		EmployeeStatusReportedReturned: true,
	}
	if !valid[r.Status] {
		errs["status"] = "Invalid employee status"
	}
	return errs
}

// UpdateEmployeeRequest holds the fields that can be updated on an employee.
type UpdateEmployeeRequest struct {
	SiteID      *string `json:"siteId,omitempty"`
	FullName    *string `json:"fullName,omitempty"`
	PassportID  *string `json:"passportId,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Status      *string `json:"status,omitempty"`
}

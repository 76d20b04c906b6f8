package models

// Business is the top-level tenant. Every other entity is scoped to one.
type Business struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// CreateBusinessRequest is the payload accepted for business creation.
type CreateBusinessRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Validate checks the required fields for creating a business.
func (r *CreateBusinessRequest) Validate() map[string]string {
	errs := map[string]string{}
	if r.Name == "" {
		errs["name"] = "Business name is required"
	}
	return errs
}

// Site is a physical work location belonging to a Business. It may name a
// responsible employee — the employee, in turn, may belong to the site,
// which is the cyclic Site<->Employee reference described in the design
// notes: site_id on employees is nullable, and responsible_employee_id on
// sites is nullable, so either can be created first.
type Site struct {
	ID                    string  `json:"id"`
	BusinessID            string  `json:"businessId"`
	Name                  string  `json:"name"`
	Code                  string  `json:"code"`
	ResponsibleEmployeeID *string `json:"responsibleEmployeeId,omitempty"`
	IsActive              bool    `json:"isActive"`
	CreatedAt             string  `json:"createdAt"`
	UpdatedAt             string  `json:"updatedAt"`
}

// CreateSiteRequest is the payload accepted for site creation.
type CreateSiteRequest struct {
	Name                  string  `json:"name"`
	Code                  string  `json:"code"`
	ResponsibleEmployeeID *string `json:"responsibleEmployeeId,omitempty"`
}

// Validate checks the required fields for creating a site.
func (r *CreateSiteRequest) Validate() map[string]string {
	errs := map[string]string{}
	if r.Name == "" {
		errs["name"] = "Site name is required"
	}
	return errs
}

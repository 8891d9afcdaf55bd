package apimodels

type QueryRequest struct {
	// Query is the natural language question to route
	Query string `json:"query"`

	// PropertyID selects the GA4 property, overriding the configured default
	PropertyID string `json:"propertyId,omitempty"`

	// Checks optionally restricts the audit to these check names
	Checks []string `json:"checks,omitempty"`
}

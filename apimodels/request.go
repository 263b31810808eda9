package apimodels

type LensRequest struct {
	// Lens describes the perspective the résumé should be summarized through
	Lens string `json:"lens"`

	// Model optionally selects one of the allowed model identifiers
	Model string `json:"model,omitempty"`
}

package models

// StatusCatalogConfig is one delivery of the live status-catalog
// subscription: the ordered label set plus per-label hex colors.
type StatusCatalogConfig struct {
	Labels []string          `json:"labels"`
	Colors map[string]string `json:"colors"`
}

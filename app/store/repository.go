package store

// Repository is a local repository record. Rows are created either by the configuration
// API or by the org discovery worker when it materializes upstream repositories locally.
// The registry itself owns the image data, this record carries ownership and visibility
// so the control plane can provision mirrors against it.
type Repository struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`         // full name, organization/repo
	Organization string `json:"organization"` // owning organization, empty for top-level repos
	Visibility   string `json:"visibility"`   // public|private
	Description  string `json:"description,omitempty"`
	CreationDate int64  `json:"creation_date"`
}

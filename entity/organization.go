package entity

const (
	MaxOrganizationNameLen        = 50
	MaxOrganizationDescriptionLen = 200
)

// OrganizationInfo is the registry directory entry created on registration.
// The owner identity is immutable once registered.
type OrganizationInfo struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Owner       string `json:"owner" db:"owner"`
	Description string `json:"description" db:"description"`
	KycVerified bool   `json:"kyc_verified" db:"kyc_verified"`
}

// Organization is the per-owner store record holding the event catalog.
type Organization struct {
	Owner       string `json:"owner" db:"owner"`
	Name        string `json:"name" db:"name"`
	MetadataURI string `json:"metadata_uri" db:"metadata_uri"`
	EventCount  int64  `json:"event_count" db:"event_count"`
}

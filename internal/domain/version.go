package domain

import "time"

// Push statuses of an access list version.
const (
	PushStatusPending = "pending"
	PushStatusSuccess = "success"
	PushStatusFailed  = "failed"
)

// AccessListVersion is a snapshot of an access list pushed to a hub.
// Used for audit trail and rollback.
type AccessListVersion struct {
	ID            string     `json:"id" db:"id"`
	HubName       string     `json:"hubName" db:"hub_name"`
	VersionNumber int        `json:"versionNumber" db:"version_number"`
	RenderedRules string     `json:"renderedRules" db:"rendered_rules"` // JSON array of AccessRule
	RuleCount     int        `json:"ruleCount" db:"rule_count"`
	PushStatus    string     `json:"pushStatus" db:"push_status"`
	PushError     string     `json:"pushError,omitempty" db:"push_error"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	PushedAt      *time.Time `json:"pushedAt,omitempty" db:"pushed_at"`
}

// AccessListPreview compares the generated access list with what the hub runs.
type AccessListPreview struct {
	HubName   string       `json:"hubName"`
	Generated []AccessRule `json:"generated"`
	Live      []AccessRule `json:"live"`
	Diff      string       `json:"diff,omitempty"`
	InSync    bool         `json:"inSync"`
}

// SyncResponse is returned after a sync operation.
type SyncResponse struct {
	HubName       string `json:"hubName"`
	VersionID     string `json:"versionId"`
	VersionNumber int    `json:"versionNumber"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

package store

// mirror implements the persistent entries which describe source-to-destination replication
// relationships: a repo mirror keeps one local repository in lockstep with an external one,
// an org mirror keeps a whole local organization in lockstep with an external namespace.
// All scheduling state (status, expiration, retries, transaction id) lives on these rows and
// is mutated only through the claim service with compare-and-swap on the transaction id.

import (
	"fmt"
	"strings"
)

// SyncStatus describes the scheduling state of a mirror row. The same set applies to repo
// mirrors, the discovery phase of org mirrors and per-repository discovered records.
type SyncStatus int

const (
	SyncStatusFail     SyncStatus = -1
	SyncStatusNeverRun SyncStatus = 0
	SyncStatusSuccess  SyncStatus = 1
	SyncStatusSyncing  SyncStatus = 2
	SyncStatusSyncNow  SyncStatus = 3
	SyncStatusCancel   SyncStatus = 4

	// SyncStatusSkipped applies to discovered records only: the local repository existed
	// before discovery, nothing to create or sync.
	SyncStatusSkipped SyncStatus = 5
)

func (s SyncStatus) String() string {
	switch s {
	case SyncStatusFail:
		return "FAIL"
	case SyncStatusNeverRun:
		return "NEVER_RUN"
	case SyncStatusSuccess:
		return "SUCCESS"
	case SyncStatusSyncing:
		return "SYNCING"
	case SyncStatusSyncNow:
		return "SYNC_NOW"
	case SyncStatusCancel:
		return "CANCEL"
	case SyncStatusSkipped:
		return "SKIPPED"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// ParseSyncStatus converts the textual form used in the REST API back to a SyncStatus.
func ParseSyncStatus(value string) (SyncStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "FAIL":
		return SyncStatusFail, nil
	case "NEVER_RUN":
		return SyncStatusNeverRun, nil
	case "SUCCESS":
		return SyncStatusSuccess, nil
	case "SYNCING":
		return SyncStatusSyncing, nil
	case "SYNC_NOW":
		return SyncStatusSyncNow, nil
	case "CANCEL":
		return SyncStatusCancel, nil
	case "SKIPPED":
		return SyncStatusSkipped, nil
	}
	return SyncStatusNeverRun, fmt.Errorf("unknown sync status %q", value)
}

// RegistryType selects the catalog adapter used for org mirror discovery.
type RegistryType string

const (
	RegistryTypeHarbor RegistryType = "harbor"
	RegistryTypeQuay   RegistryType = "quay"
	RegistryTypeV2     RegistryType = "v2" // plain docker registry HTTP API V2 catalog
)

// ProxyConfig carries optional proxy settings passed through to the image copy tool
// and the discovery HTTP clients.
type ProxyConfig struct {
	HTTPProxy  string `json:"http_proxy,omitempty"`
	HTTPSProxy string `json:"https_proxy,omitempty"`
	NoProxy    string `json:"no_proxy,omitempty"`
}

// ExtraConfig is the free-form external registry configuration stored with a mirror.
type ExtraConfig struct {
	VerifyTLS bool        `json:"verify_tls"`
	Proxy     ProxyConfig `json:"proxy,omitempty"`
}

// RepoMirror is a mirror configuration for a single local repository.
type RepoMirror struct {
	ID             int64  `json:"id"`
	RepositoryName string `json:"repository_name"` // local repository the mirror writes to
	IsEnabled      bool   `json:"is_enabled"`

	ExternalReference string        `json:"external_reference"` // registry host + repo path, e.g. quay.io/coreos/etcd
	Username          EncryptedBlob `json:"-"`                  // external registry credentials, opaque until use-time
	Password          EncryptedBlob `json:"-"`
	Config            ExtraConfig   `json:"external_registry_config"`
	RobotLogin        string        `json:"robot_login"` // internal robot identity used to push into the local registry

	Rule *Rule `json:"root_rule"` // tag-selection rule tree, owned by this mirror

	SyncInterval         int64      `json:"sync_interval"`             // seconds between syncs
	SyncStartDate        int64      `json:"sync_start_date"`           // unix, next eligible start
	SyncExpirationDate   int64      `json:"sync_expiration_date"`      // unix, 0 when not claimed
	SyncRetriesRemaining int        `json:"sync_retries_remaining"`    //
	SyncStatus           SyncStatus `json:"sync_status"`               //
	SyncTransactionID    string     `json:"-"`                         // opaque CAS token
	LastSyncDate         int64      `json:"last_sync_date,omitempty"`  // unix, 0 when never released
	SkopeoTimeout        int64      `json:"skopeo_timeout"`            // seconds, per copy operation
	CreationDate         int64      `json:"creation_date,omitempty"`   //
	OrgMirrorID          int64      `json:"org_mirror_id,omitempty"`   // non-zero when auto-provisioned by an org mirror
}

// OrgMirror is a mirror configuration for a whole local organization. Discovery enumerates
// the external namespace and creates local repositories; tag-level sync is then handled by
// repo mirror rows auto-provisioned for each created repository.
type OrgMirror struct {
	ID           int64  `json:"id"`
	Organization string `json:"organization"` // local organization name
	IsEnabled    bool   `json:"is_enabled"`

	ExternalRegistryType RegistryType  `json:"external_registry_type"`
	ExternalRegistryURL  string        `json:"external_registry_url"` // base URL, e.g. https://harbor.example.com
	ExternalNamespace    string        `json:"external_namespace"`    // project or organization on the upstream side
	Username             EncryptedBlob `json:"-"`
	Password             EncryptedBlob `json:"-"`
	Config               ExtraConfig   `json:"external_registry_config"`
	RobotLogin           string        `json:"robot_login"`

	Rule              *Rule    `json:"root_rule,omitempty"`  // repo-name filter tree
	RepositoryFilters []string `json:"repository_filters"`   // legacy glob list, intersected with the rule tree
	Visibility        string   `json:"visibility"`           // visibility of created repositories: public|private
	DeleteStaleRepos  bool     `json:"delete_stale_repos"`   // recorded and reported, deletion is operator-driven

	SyncInterval         int64      `json:"sync_interval"`
	SyncStartDate        int64      `json:"sync_start_date"`
	SyncExpirationDate   int64      `json:"sync_expiration_date"`
	SyncRetriesRemaining int        `json:"sync_retries_remaining"`
	SyncStatus           SyncStatus `json:"sync_status"`
	SyncTransactionID    string     `json:"-"`
	LastSyncDate         int64      `json:"last_sync_date,omitempty"`
	SkopeoTimeout        int64      `json:"skopeo_timeout"`
	CreationDate         int64      `json:"creation_date,omitempty"`
}

// ExternalReference returns the upstream reference of the namespace, host/namespace form.
func (m *OrgMirror) ExternalReference() string {
	host := m.ExternalRegistryURL
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimRight(host, "/") + "/" + m.ExternalNamespace
}

// DiscoveredRepo tracks one (org mirror, external repo name) pair: whether a local
// repository exists for it and how its own sync is doing.
type DiscoveredRepo struct {
	ID             int64  `json:"id"`
	OrgMirrorID    int64  `json:"org_mirror_id"`
	RepositoryName string `json:"repository_name"` // name of the local repository to create
	ExternalName   string `json:"external_name"`   // full upstream reference, host/namespace/name
	RepositoryID   int64  `json:"repository_id"`   // local repository pointer, 0 until created

	SyncStatus           SyncStatus `json:"sync_status"`
	SyncStartDate        int64      `json:"sync_start_date"`
	SyncExpirationDate   int64      `json:"sync_expiration_date"`
	SyncRetriesRemaining int        `json:"sync_retries_remaining"`
	SyncTransactionID    string     `json:"-"`
	StatusMessage        string     `json:"status_message,omitempty"` // human-readable last error or skip reason
	CreationDate         int64      `json:"creation_date"`
	LastSyncDate         int64      `json:"last_sync_date,omitempty"`
}

// SkippedMessage is recorded on discovered records whose local repository existed already.
const SkippedMessage = "repository already exists"

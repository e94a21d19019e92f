package connection

import (
	"fmt"
	"time"

	"github.com/conmonhq/conmon/engine/core"
)

// Type identifies the target system class of a connection. The
// numeric wire values are persisted and must stay stable.
type Type int

const (
	TypeGithub           Type = 1
	TypeAWS              Type = 2
	TypeKubernetes       Type = 3
	TypeAzure            Type = 4
	TypeVMware           Type = 5
	TypeGitlab           Type = 6
	TypeTerraform        Type = 7
	TypeMicrosoft365     Type = 8
	TypeSlack            Type = 9
	TypeGoogle           Type = 10
	TypeSplunk           Type = 11
	TypeCisco            Type = 12
	TypeDatabase         Type = 13
	TypeFiles            Type = 14
	TypeIdentityServices Type = 15
	TypeFile             Type = 16
)

var typeNames = map[Type]string{
	TypeGithub:           "github",
	TypeAWS:              "aws",
	TypeKubernetes:       "kubernetes",
	TypeAzure:            "azure",
	TypeVMware:           "vmware",
	TypeGitlab:           "gitlab",
	TypeTerraform:        "terraform",
	TypeMicrosoft365:     "microsoft_365",
	TypeSlack:            "slack",
	TypeGoogle:           "google",
	TypeSplunk:           "splunk",
	TypeCisco:            "cisco",
	TypeDatabase:         "database",
	TypeFiles:            "files",
	TypeIdentityServices: "identity_services",
	TypeFile:             "file",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// ParseType resolves a provider name back to its enum value.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown connection type %q", name)
}

// Connection identifies a credentialed target system. The kernel
// reads connections and updates metadata.info after each fetch; it
// never creates or deletes them.
type Connection struct {
	ID            int          `json:"id"`
	CustomerID    string       `json:"customer_id"`
	Type          Type         `json:"type"`
	Credentials   core.JSONMap `json:"credentials"`
	Metadata      core.JSONMap `json:"metadata"`
	SyncStatus    string       `json:"sync_status"`
	SyncError     string       `json:"sync_error"`
	SyncFrequency string       `json:"sync_frequency"`
	SyncedAt      time.Time    `json:"synced_at"`
	Alias         string       `json:"alias"`
	CreatedBy     string       `json:"created_by"`
	UpdatedBy     string       `json:"updated_by"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	IsDeleted     bool         `json:"is_deleted"`
}

// CredentialMap flattens opaque credentials to the string map the
// connector interface consumes.
func (c *Connection) CredentialMap() map[string]string {
	out := make(map[string]string, len(c.Credentials))
	for k, v := range c.Credentials {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// MergeInfo folds provider-side metadata returned by a fetch into
// metadata.info, preserving unrelated metadata keys.
func (c *Connection) MergeInfo(info core.JSONMap) {
	if c.Metadata == nil {
		c.Metadata = core.JSONMap{}
	}
	c.Metadata["info"] = map[string]any(info)
}

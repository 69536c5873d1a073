// Package config defines the pump's configuration surface: connection
// details, checkpoint location, and the accepted-table filter, in the
// jsonschema-tagged struct shape used throughout the teacher repository's
// connectors.
package config

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// Config is the top-level configuration loaded from a JSON file or stdin.
type Config struct {
	Login    LoginConfig    `json:"login" jsonschema:"title=Login,description=Upstream connection credentials"`
	Advanced AdvancedConfig `json:"advanced,omitempty" jsonschema:"title=Advanced Options"`
}

// LoginConfig describes how to reach the upstream source database.
type LoginConfig struct {
	Host     string `json:"host" jsonschema:"title=Host,description=Host name or IP address of the upstream database"`
	Port     uint16 `json:"port" jsonschema:"title=Port,description=Port on which the upstream database is listening,default=3306"`
	User     string `json:"user" jsonschema:"title=User,description=Replication user name"`
	Password string `json:"password" jsonschema:"title=Password,description=Replication user password"`
}

// AdvancedConfig holds options most deployments can leave at their
// defaults.
type AdvancedConfig struct {
	CheckpointPath string   `json:"checkpoint_path,omitempty" jsonschema:"title=Checkpoint Path,description=Path to the persisted checkpoint file,default=./current_gtid.txt"`
	ServerID       uint32   `json:"server_id,omitempty" jsonschema:"title=Replica Server ID,description=Server id to register as; a random id is derived if omitted"`
	AcceptedTables []string `json:"accepted_tables,omitempty" jsonschema:"title=Accepted Tables,description=database.table names to replicate; empty means all tables"`
	StartTID       string   `json:"start_tid,omitempty" jsonschema:"title=Start Transaction ID,description=d-s-n transaction id to resume from when no checkpoint exists"`
}

// SetDefaults fills in zero-valued fields with their documented defaults.
func (c *Config) SetDefaults() {
	if c.Login.Port == 0 {
		c.Login.Port = 3306
	}
	if c.Advanced.CheckpointPath == "" {
		c.Advanced.CheckpointPath = "./current_gtid.txt"
	}
}

// Validate checks that required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.Login.Host == "" {
		return fmt.Errorf("login.host is required")
	}
	if c.Login.User == "" {
		return fmt.Errorf("login.user is required")
	}
	return nil
}

// JSONSchema returns the schema document for Config, used by the --spec
// flag of cmd/cdc-pump.
func JSONSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	return reflector.Reflect(&Config{})
}

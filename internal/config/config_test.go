package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	var c Config
	c.Login.Host = "db.internal"
	c.SetDefaults()

	require.Equal(t, uint16(3306), c.Login.Port)
	require.Equal(t, "./current_gtid.txt", c.Advanced.CheckpointPath)
}

func TestValidateRequiresHostAndUser(t *testing.T) {
	var c Config
	require.Error(t, c.Validate())

	c.Login.Host = "db.internal"
	require.Error(t, c.Validate())

	c.Login.User = "replicator"
	require.NoError(t, c.Validate())
}

func TestJSONSchemaIncludesLoginFields(t *testing.T) {
	schema := JSONSchema()
	require.NotNil(t, schema)
	_, ok := schema.Properties.Get("login")
	require.True(t, ok, "schema should expose the login property")
}

// Package cli wires the ntdsdump demonstration binary's cobra commands
// and viper configuration around the ntds core library. None of this
// package is imported by ntds or ese; the core library takes no
// dependency on cobra or viper.
package cli

// Conf holds the demo subcommand's settings. Each field is bound
// directly to the cobra flag of the same name (see demo.go). The flags
// are also registered with viper, which reads the config file and
// NTDSDUMP_* environment variables, but those viper values are not
// copied into Conf.
type Conf struct {
	// Fixture is the path to a JSON ese.MemoryDatabase fixture (see
	// ese.LoadMemoryDatabaseFixtureFile). There is no production ESE
	// B-tree reader in this module, so the demo subcommand only ever
	// runs against this in-memory adapter.
	Fixture string `mapstructure:"fixture"`

	// SysKey is the 16-byte SYSKEY, hex-encoded (32 hex characters).
	SysKey string `mapstructure:"syskey"`

	// SkipDeleted omits records whose is_deleted column is truthy.
	SkipDeleted bool `mapstructure:"skip-deleted"`

	// DecryptSecrets controls whether encrypted attributes are run
	// through the PEK decryption pipeline during serialization.
	DecryptSecrets bool `mapstructure:"decrypt-secrets"`

	// Format selects the output rendering: "json" or "text".
	Format string `mapstructure:"format"`
}

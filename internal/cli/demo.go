package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sprocket-security/ntdsdump/ese"
	"github.com/sprocket-security/ntdsdump/ntds"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the extraction pipeline against a JSON fixture",
	Long: "demo loads a JSON ese.MemoryDatabase fixture in place of a real\n" +
		"ntds.dit, decrypts its PEK list with the given SYSKEY, and dumps\n" +
		"every serialized record. This is what the test suite exercises;\n" +
		"there is no production ESE B-tree reader in this module.",
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().StringVar(&c.Fixture, "fixture", "", "path to a JSON ese.MemoryDatabase fixture (required)")
	demoCmd.Flags().StringVar(&c.SysKey, "syskey", "", "16-byte SYSKEY, hex-encoded (required)")
	demoCmd.Flags().BoolVar(&c.SkipDeleted, "skip-deleted", true, "omit records whose is_deleted column is truthy")
	demoCmd.Flags().BoolVar(&c.DecryptSecrets, "decrypt-secrets", true, "decrypt encrypted attributes during serialization")
	demoCmd.Flags().StringVar(&c.Format, "format", "json", "output format: json or text")

	_ = demoCmd.MarkFlagRequired("fixture")
	_ = demoCmd.MarkFlagRequired("syskey")

	viper.BindPFlags(demoCmd.Flags())
}

func runDemo(cmd *cobra.Command, args []string) error {
	bootKey, err := hex.DecodeString(c.SysKey)
	if err != nil {
		return fmt.Errorf("decoding --syskey: %w", err)
	}

	db, err := ese.LoadMemoryDatabaseFixtureFile(c.Fixture)
	if err != nil {
		return fmt.Errorf("loading fixture: %w", err)
	}
	defer db.Close()

	datatable, ok := db.Table(ese.TableDatatable)
	if !ok {
		return fmt.Errorf("fixture has no %s table", ese.TableDatatable)
	}
	linktable, _ := db.Table(ese.TableLinkTable)
	sdtable, _ := db.Table(ese.TableSDTable)

	core, err := ntds.NewNtdsCore(datatable, linktable, sdtable, bootKey, log.Logger)
	if err != nil {
		return fmt.Errorf("initializing core: %w", err)
	}
	core.DecryptSecrets = c.DecryptSecrets

	enc := json.NewEncoder(os.Stdout)
	for rec := range core.Dump(c.SkipDeleted) {
		if err := renderRecord(enc, rec); err != nil {
			log.Warn().Err(err).Msg("failed to render record, skipped")
		}
	}
	return nil
}

func renderRecord(enc *json.Encoder, rec ntds.SerializedRecord) error {
	if c.Format == "text" {
		for name, val := range rec {
			fmt.Printf("%s (%s) = %v [%s]\n", name.CommonName, name.LdapName, val.Value, val.Kind)
		}
		fmt.Println()
		return nil
	}

	flat := make(map[string]any, len(rec))
	for name, val := range rec {
		flat[name.LdapName] = val.Value
	}
	return enc.Encode(flat)
}

// Command patchlock is the CLI front-end for the approval and policy
// authorization core: key management, approval signing and verification, and
// gate checks. It constructs requests and calls the gate; the decision logic
// all lives under pkg/.
package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/Patchlock-Labs/patchlock/core/pkg/config"
	"github.com/Patchlock-Labs/patchlock/core/pkg/keyreg"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "keygen":
		return runKeygenCmd(args[2:], stdout, stderr)
	case "revoke":
		return runRevokeCmd(args[2:], stdout, stderr)
	case "sign":
		return runSignCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "check":
		return runCheckCmd(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `usage: patchlock <command> [flags]

commands:
  keygen   generate a signing key pair and register its public key
  revoke   revoke a registered signing key
  sign     sign an approval record
  verify   verify a signed approval against the key registry
  check    run an operation request through the capability gate`)
}

// openRegistry builds the key registry selected by configuration.
func openRegistry(cfg *config.Config) (keyreg.Registry, func() error, error) {
	switch cfg.KeyRegistryBackend {
	case "memory":
		return keyreg.NewMemoryRegistry(), func() error { return nil }, nil
	case "sqlite":
		reg, err := keyreg.OpenSQLiteRegistry(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return reg, reg.Close, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return keyreg.NewPostgresRegistry(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown key registry backend %q", cfg.KeyRegistryBackend)
	}
}

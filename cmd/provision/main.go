package main

import (
	"fmt"
	"os"

	"github.com/nucleus/provision-core/cmd/provision/cli"
	// Register every connector
	_ "github.com/nucleus/provision-core/internal/connector/gateway"
	_ "github.com/nucleus/provision-core/internal/connector/hosted"
	_ "github.com/nucleus/provision-core/internal/connector/jdbc"
	_ "github.com/nucleus/provision-core/internal/connector/minio"
)

var (
	version = "0.1.0-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{Version: version, Commit: commit})

	root.AddCommand(cli.NewServeCommand())
	root.AddCommand(cli.NewTestCommand())
	root.AddCommand(cli.NewSchemaCommand())
	root.AddCommand(cli.NewMigrateCommand())
	root.AddCommand(cli.NewValidateCommand())
	root.AddCommand(cli.NewSecretCommand())
	root.AddCommand(cli.NewStateCommand())
	root.AddCommand(cli.NewConfigCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

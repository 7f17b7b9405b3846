//
//  Copyright © Manetu Inc. All rights reserved.
//

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/manetu/ocpihub/cmd/ocpihub/subcommands/parties"
	"github.com/manetu/ocpihub/cmd/ocpihub/subcommands/serve"
	"github.com/manetu/ocpihub/cmd/ocpihub/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "ocpihub",
		Usage:   "An OCPI 2.2.1 hub for charge point operators and e-mobility service providers",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serves the OCPI modules over HTTP",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "The TCP port to serve on.  Overrides server.port from the configuration.",
					},
					&cli.StringFlag{
						Name:    "store",
						Aliases: []string{"s"},
						Usage:   "Persist state to the snapshot `FILE`.  Overrides store.path from the configuration.",
					},
					&cli.StringFlag{
						Name:  "seed",
						Usage: "Register the parties of the YAML `FILE` at startup.  Overrides registry.seed from the configuration.",
					},
				},
				Action: serve.Execute,
			},
			{
				Name:  "parties",
				Usage: "Works with party registry seed files",
				Commands: []*cli.Command{
					{
						Name:  "validate",
						Usage: "Validates registry seed files and prints the key and hash of every party",
						Flags: []cli.Flag{
							&cli.StringSliceFlag{
								Name:     "file",
								Aliases:  []string{"f"},
								Usage:    "Registry seed YAML `FILE` to validate.  Can be specified multiple times.",
								Required: true,
							},
						},
						Action: parties.Validate,
					},
				},
			},
			{
				Name:  "version",
				Usage: "Prints the ocpihub version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Println(version.GetVersion())
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

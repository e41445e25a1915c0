// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

func actorFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "actor",
		Usage: "Operator ID recorded on the run",
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the default config.toml",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Print the effective configuration instead of writing a file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// serveCommand runs the operator API with the scheduler and dispatcher.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the operator HTTP API and the periodic sync",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.host and server.port)",
			},
		},
		Action: r.Serve,
	}
}

// syncCommand handles sync runs and the run ledger.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run syncs and inspect the run ledger",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run a sync in the foreground and print the result",
				Flags:  append([]cli.Flag{configFlag(), actorFlag()}, jsonFlags()...),
				Action: r.SyncRun,
			},
			{
				Name:  "trigger",
				Usage: "Ask a running server to start a sync in the background",
				Flags: []cli.Flag{
					configFlag(),
					actorFlag(),
					&cli.StringFlag{
						Name:  "server",
						Usage: "Server base URL (default: http://server.host:server.port)",
					},
				},
				Action: r.SyncTrigger,
			},
			{
				Name:   "status",
				Usage:  "Show whether a sync is configured or running and the last result",
				Flags:  append([]cli.Flag{configFlag()}, jsonFlags()...),
				Action: r.SyncStatus,
			},
			{
				Name:  "history",
				Usage: "List past runs, newest first",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "per-page",
						Usage: "Runs per page",
						Value: 20,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: table, csv, markdown or json",
						Value:   "table",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the export to a file instead of stdout",
					},
				},
				Action: r.SyncHistory,
			},
			{
				Name:  "show",
				Usage: "Show one run",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  append([]cli.Flag{configFlag()}, jsonFlags()...),
				Action: r.SyncShow,
			},
			{
				Name:   "reclaim",
				Usage:  "Mark running runs older than the staleness window as failed",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SyncReclaim,
			},
		},
	}
}

// requestCommand manages wanted items.
func requestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "request",
		Aliases: []string{"req"},
		Usage:   "Manage audiobook requests",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a pending request",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "author",
						Aliases: []string{"a"},
						Usage:   "Requested author",
					},
				},
				Action: r.RequestAdd,
			},
			{
				Name:  "list",
				Usage: "List requests",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "status",
						Aliases: []string{"s"},
						Usage:   "Only show requests with this status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of requests to return",
					},
				}, jsonFlags()...),
				Action: r.RequestList,
			},
			{
				Name:  "set-status",
				Usage: "Change a request's status",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "status"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.RequestSetStatus,
			},
			{
				Name:   "stats",
				Usage:  "Count requests per status",
				Flags:  append([]cli.Flag{configFlag()}, jsonFlags()...),
				Action: r.RequestStats,
			},
		},
	}
}

// catalogCommand inspects the Audiobookshelf catalog.
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"abs"},
		Usage:   "Audiobookshelf catalog operations",
		Commands: []*cli.Command{
			{
				Name:   "ping",
				Usage:  "Check that the catalog is reachable and the token is accepted",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CatalogPing,
			},
			{
				Name:  "list",
				Usage: "List catalog items",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of items to print",
					},
				}, jsonFlags()...),
				Action: r.CatalogList,
			},
		},
	}
}

// monitorCommand returns the top-level TUI command.
func monitorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "monitor",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive sync monitor",
		Flags: []cli.Flag{
			configFlag(),
			actorFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the monitor owns the terminal",
				Value: "./tmp/shelfreq-monitor.log",
			},
		},
		Action: r.Monitor,
	}
}

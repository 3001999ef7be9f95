package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply pending migrations before serving",
				Value: true,
			},
		},
		Action: r.Serve,
	}
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply pending migrations (indexes on MongoDB)",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Migrate,
	}
}

func rollbackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "rollback",
		Usage:  "Roll back the most recent migration (postgres and sqlite only)",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Rollback,
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file helpers",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example config file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Where to write the file",
						Value:   "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
		},
	}
}

// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

const defaultQuiet = 5 * time.Second

// searchCommand runs one federated search and prints the aggregated results
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Search every configured backend and print the merged results",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (text, markdown, csv, json)",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON (same as --format json)",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
			&cli.DurationFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Stop after the results have been quiet for this long",
				Value:   defaultQuiet,
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Print a summary line each time the results change",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the results to a file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "export-dir",
				Usage: "Write a Markdown export with the header image to this directory",
			},
		},
		Action: r.Search,
	}
}

// tuiCommand returns the top-level TUI command for interactive search.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive search TUI",
		Action:  r.TUI,
	}
}

// serveCommand starts the HTTP server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve search results as Server-Sent Events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from the config)",
			},
			&cli.DurationFlag{
				Name:  "quiet",
				Usage: "Default quiet period before a stream ends",
				Value: 3 * time.Second,
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database and the config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize the library database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Where to write the file (default: the XDG config dir)",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// libraryCommand handles the local track library
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Manage the local track library",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Scan a directory of audio files and store their tags",
				ArgsUsage: "<dir>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent tag readers",
						Value: 4,
					},
					&cli.StringSliceFlag{
						Name:  "ext",
						Usage: "Audio file extensions to import (default: .mp3 .flac .m4a .ogg)",
					},
				},
				Action: r.LibraryImport,
			},
			{
				Name:  "list",
				Usage: "List library tracks",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of tracks to return",
						Value: 50,
					},
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Only tracks by this artist",
					},
					&cli.StringFlag{
						Name:  "album",
						Usage: "Only tracks from this album",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibraryList,
			},
			{
				Name:      "search",
				Usage:     "Fuzzy search the library",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of candidates to consider",
						Value: 200,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibrarySearch,
			},
		},
	}
}

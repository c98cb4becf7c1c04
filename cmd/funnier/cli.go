package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/mcp"
	"github.com/hpungsan/funnier/internal/ops"
	"github.com/hpungsan/funnier/internal/web"
)

// envOpener opens the shared environment. watch keeps the connectivity
// prober running for long-lived commands.
type envOpener func(watch bool) (*ops.Env, error)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(open envOpener) *cli.App {
	app := &cli.App{
		Name:    "funnier",
		Usage:   "Offline-first photoset cache",
		Version: Version,
		Commands: []*cli.Command{
			syncCmd(open),
			warmCmd(open),
			photosCmd(open),
			statusCmd(open),
			lastViewedCmd(open),
			historyCmd(open),
			pruneCmd(open),
			exportCmd(open),
			serveCmd(open),
			toolsCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

var networkFlag = &cli.StringFlag{
	Name:  "network",
	Usage: "Act as if on this network: offline|metered|unmetered (default: detected)",
}

// withEnv opens the environment, runs fn and closes it again.
func withEnv(open envOpener, watch bool, fn func(env *ops.Env) error) error {
	env, err := open(watch)
	if err != nil {
		return outputError(err)
	}
	defer env.Close()
	return fn(env)
}

// syncCmd creates the sync command.
func syncCmd(open envOpener) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Refresh the photoset and download missing images",
		Flags: []cli.Flag{networkFlag},
		Action: func(c *cli.Context) error {
			return withEnv(open, false, func(env *ops.Env) error {
				output, err := ops.Sync(c.Context, env, ops.SyncInput{Network: c.String("network")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			})
		},
	}
}

// warmCmd creates the warm command.
func warmCmd(open envOpener) *cli.Command {
	return &cli.Command{
		Name:  "warm",
		Usage: "Download missing images without refreshing metadata",
		Flags: []cli.Flag{networkFlag},
		Action: func(c *cli.Context) error {
			return withEnv(open, false, func(env *ops.Env) error {
				output, err := ops.Warm(c.Context, env, ops.WarmInput{Network: c.String("network")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			})
		},
	}
}

// photosCmd creates the photos command.
func photosCmd(open envOpener) *cli.Command {
	return &cli.Command{
		Name:  "photos",
		Usage: "List cached photos in photoset order",
		Flags: []cli.Flag{
			networkFlag,
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include photos whose image is not cached"},
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Only photos with this tag"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultPhotosLimit, Usage: "Max items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			return withEnv(open, false, func(env *ops.Env) error {
				output, err := ops.Photos(env, ops.PhotosInput{
					All:     c.Bool("all"),
					Network: c.String("network"),
					Tag:     c.String("tag"),
					Limit:   c.Int("limit"),
					Offset:  c.Int("offset"),
				})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			})
		},
	}
}

// statusCmd creates the status command.
func statusCmd(open envOpener) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show cache size, staleness and the last sync",
		Action: func(c *cli.Context) error {
			return withEnv(open, false, func(env *ops.Env) error {
				output, err := ops.Status(c.Context, env)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			})
		},
	}
}

// lastViewedCmd creates the last-viewed command.
func lastViewedCmd(open envOpener) *cli.Command {
	return &cli.Command{
		Name:      "last-viewed",
		Usage:     "Get or set the last viewed position",
		ArgsUsage: "[index]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Set the position to this photo"},
		},
		Action: func(c *cli.Context) error {
			input := ops.LastViewedInput{ID: c.String("id")}
			if c.NArg() > 0 {
				i, err := strconv.Atoi(c.Args().First())
				if err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("index must be an integer: %s", c.Args().First())))
				}
				input.Index = &i
			}

			return withEnv(open, false, func(env *ops.Env) error {
				output, err := ops.LastViewed(c.Context, env, input)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			})
		},
	}
}

// historyCmd creates the history command.
func historyCmd(open envOpener) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded sync attempts, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Max items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			return withEnv(open, false, func(env *ops.Env) error {
				output, err := ops.History(c.Context, env, ops.HistoryInput{
					Limit:  c.Int("limit"),
					Offset: c.Int("offset"),
				})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			})
		},
	}
}

// pruneCmd creates the prune command.
func pruneCmd(open envOpener) *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete cached images no longer referenced by the photoset",
		Action: func(c *cli.Context) error {
			return withEnv(open, false, func(env *ops.Env) error {
				output, err := ops.Prune(env)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(open envOpener) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the photo list to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output .jsonl file inside the exports directory"},
		},
		Action: func(c *cli.Context) error {
			return withEnv(open, false, func(env *ops.Env) error {
				output, err := ops.Export(c.Context, env, ops.ExportInput{Path: c.String("path")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(open envOpener) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			return withEnv(open, true, func(env *ops.Env) error {
				srv := web.NewServer(env, Version, c.String("bind"), c.Int("port"))
				if err := web.Run(srv, env.Logger); err != nil {
					return outputError(err)
				}
				return nil
			})
		},
	}
}

// toolsCmd creates the tools command.
func toolsCmd() *cli.Command {
	return &cli.Command{
		Name:  "tools",
		Usage: "List MCP tool names (for disabled_tools)",
		Action: func(c *cli.Context) error {
			return outputJSON(mcp.AllToolNames())
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if fErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", fErr.Code, fErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

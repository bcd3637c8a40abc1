package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/serendip/internal"
	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/settings"
	pkgconfig "github.com/starford/serendip/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func options(cmd *cli.Command, plain bool) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithConsole(os.Stdout, plain),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd, true)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func pick(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd, cmd.Bool("plain"))
	if err != nil {
		return err
	}
	// Logs would interleave with the console output.
	opts = append(opts, internal.WithLogOutput(os.Stderr))
	if _, err := internal.Pick(ctx, opts...); err != nil {
		if errors.Is(err, apperr.ErrEmptyResult) {
			return cli.Exit("no notes matched the current settings", 2)
		}
		return err
	}
	return nil
}

func mode(ctx context.Context, cmd *cli.Command) error {
	kind := cmd.Args().First()
	if kind == "" {
		return cli.Exit("mode is required: one of "+strings.Join(settings.Modes, ", "), 1)
	}
	opts, err := options(cmd, cmd.Bool("plain"))
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithLogOutput(os.Stderr))

	s, _, err := internal.SetMode(ctx, kind, cmd.Bool("go"), opts...)
	switch {
	case errors.Is(err, apperr.ErrInvalidMode):
		return cli.Exit(err.Error(), 1)
	case errors.Is(err, apperr.ErrEmptyResult):
		fmt.Printf("random mode: %s\n", s.RandomMode)
		return cli.Exit("no notes matched the current settings", 2)
	case err != nil:
		return err
	}
	fmt.Printf("random mode: %s\n", s.RandomMode)
	return nil
}

func resolve(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return cli.Exit("block uuid is required", 1)
	}
	opts, err := options(cmd, true)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithLogOutput(os.Stderr))

	content, err := internal.Resolve(ctx, id, opts...)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return cli.Exit("block not found: "+id, 1)
		}
		return err
	}
	fmt.Println(content)
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg))
}

func plainFlag() cli.Flag {
	return &cli.BoolFlag{Name: "plain", Usage: "Disable colored output"}
}

func main() {
	cmd := &cli.Command{
		Name:   "serendip",
		Usage:  "Open a random page or block from a Logseq graph, once or on a timer",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP daemon with the repeating trigger",
				Action: serve,
			},
			{
				Name:   "pick",
				Usage:  "Open one random note using the stored settings",
				Flags:  []cli.Flag{plainFlag()},
				Action: pick,
			},
			{
				Name:      "mode",
				Usage:     "Set the random mode (" + strings.Join(settings.Modes, ", ") + ")",
				ArgsUsage: "<mode>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "go", Usage: "Open a random note with the new mode right away"},
					plainFlag(),
				},
				Action: mode,
			},
			{
				Name:      "resolve",
				Usage:     "Print a block with its embedded references expanded",
				ArgsUsage: "<uuid>",
				Action:    resolve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

package main

import (
	"flag"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newTestContext(t *testing.T, level string) *cli.Context {
	t.Helper()

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("log-level", level, "")
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestSetupLogger(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	t.Run("accepts known levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			require.NoError(t, setupLogger(newTestContext(t, level)), level)
		}
	})

	t.Run("normalizes case", func(t *testing.T) {
		assert.NoError(t, setupLogger(newTestContext(t, "DEBUG")))
	})

	t.Run("rejects unknown levels", func(t *testing.T) {
		err := setupLogger(newTestContext(t, "verbose"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "verbose")
	})
}

func TestStoreFlagsRequired(t *testing.T) {
	app := &cli.App{
		Name: "hearsay",
		Commands: []*cli.Command{
			{
				Name:  "jobs",
				Flags: append([]cli.Flag{&cli.StringFlag{Name: "tenant", Required: true}}, storeFlags...),
				Action: func(c *cli.Context) error {
					t.Fatal("action must not run without required flags")
					return nil
				},
			},
		},
		Writer:    os.NewFile(0, os.DevNull),
		ErrWriter: os.NewFile(0, os.DevNull),
	}

	err := app.Run([]string{"hearsay", "jobs", "--tenant", "acme"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data-dir")
}

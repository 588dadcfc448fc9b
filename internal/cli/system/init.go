package system

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/storage/sqlite"
)

type InitCmd struct {
	Force bool `help:"Delete an existing SQLite database before initializing."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if err := resetSQLite(ctx); err != nil {
			return err
		}
	}

	if err := ctx.Store.Init(context.Background()); err != nil {
		return err
	}
	ctx.Printf("Initialized podcheck storage at: %s\n", ctx.Store.Describe())
	return nil
}

func resetSQLite(ctx *cli.Context) error {
	store, ok := ctx.Store.(*sqlite.Store)
	if !ok {
		return fmt.Errorf("--force is only supported for SQLite storage")
	}

	if err := store.Close(); err != nil {
		return fmt.Errorf("failed to close existing database: %w", err)
	}

	removed := false
	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Remove(store.Path() + suffix)
		switch {
		case err == nil:
			removed = removed || suffix == ""
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("failed to delete existing database: %w", err)
		}
	}
	if removed {
		ctx.Printf("Deleted existing database at: %s\n", store.Path())
	}
	return nil
}

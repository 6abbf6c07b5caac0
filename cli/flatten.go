package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/xctools/xctools/dirtree"
)

func (a *App) flatten(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one directory")
	}
	return dirtree.Flatten(ctx.Args().First())
}

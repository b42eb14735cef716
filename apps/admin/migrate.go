package main

import (
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/picha/fs"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) migrate(cmd string, args []string) error {
	return gooseRunFunc(cmd, cli.db, appfs.FS, "migrations", args...)
}

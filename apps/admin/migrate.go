package main

import (
	"fmt"

	"github.com/mkabeya/darasa/core"
	"github.com/mkabeya/darasa/storage/database"
)

func (cli *commandLine) migrate() error {
	db, err := database.Open(core.Conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err = database.Migrate(db); err != nil {
		return err
	}
	fmt.Println("migrations applied")
	return nil
}

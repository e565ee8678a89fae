/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package main provides the CLI commands for managing database migrations of the srp schema.
*/

package main

import (
	"fmt"
	"log"

	"github.com/jerry-enebeli/srp"
	"github.com/jerry-enebeli/srp/config"
	"github.com/jerry-enebeli/srp/database"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

func migrationSource() migrate.EmbedFileSystemMigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: srp.SQLFiles,
		Root:       "sql",
	}
}

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(_ *srpInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "start srp migration",
	}

	cmd.AddCommand(migrateCommand("up", migrate.Up))
	cmd.AddCommand(migrateCommand("down", migrate.Down))

	return cmd
}

func migrateCommand(use string, direction migrate.MigrationDirection) *cobra.Command {
	cmd := &cobra.Command{
		Use: use,
		Run: func(cmd *cobra.Command, args []string) {
			cnf, err := config.Fetch()
			if err != nil {
				log.Printf("Error fetching config: %v", err)
				return
			}

			db, err := database.ConnectDB(cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer db.Close()

			migrate.SetSchema("srp")

			n, err := migrate.Exec(db, "postgres", migrationSource(), direction)
			if err != nil {
				log.Printf("Error migrating %s: %v", use, err)
				return
			}
			fmt.Printf("Applied %d %s migrations!\n", n, use)
		},
	}

	return cmd
}

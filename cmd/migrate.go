package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"pleia/config"
	"pleia/db"
	"pleia/model"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Connect to MySQL and auto-migrate the Pleia schema, then exit.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Migrating %s@%s:%s/%s\n", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)

		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.CloseDB()

		if err := db.AutoMigrateModels(
			&model.User{},
			&model.UsageEvent{},
			&model.NewsletterSubscriber{},
			&model.NewsletterWorkflow{},
		); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		fmt.Println("Migration complete.")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"pleia/config"
	"pleia/db"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Test the Redis connection",
	Long:  `Connect to Redis, run a basic set/get/del round trip and report the result.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Redis target: %s:%s, DB %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := db.ConnectRedis(cfg); err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer db.CloseRedis()

		if err := db.TestRedis(); err != nil {
			log.Fatalf("redis round trip failed: %v", err)
		}
		fmt.Println("Redis round trip OK.")
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}

// Command token mints an access token for a Discord user, for local use and scripting.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/drakleaf/rpc-hub/internal/config"
	"github.com/drakleaf/rpc-hub/internal/repository/postgres"
	"github.com/drakleaf/rpc-hub/internal/service"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

func main() {
	config.InitLogging("warn")

	flags := pflag.NewFlagSet("token", pflag.ExitOnError)
	userID := flags.Int64("user-id", 0, "Discord user id")
	username := flags.String("username", "", "Discord username")
	configFile := flags.String("config", "", "Config file location")
	flags.Parse(os.Args[1:])

	var args []string
	if *configFile != "" {
		args = []string{"--config", *configFile}
	}
	cfg, err := config.Load(args)
	if err != nil {
		zap.S().Fatalw("failed to load config", "error", err)
	}

	db, err := postgres.NewConnection(cfg.DatabaseURL, logger.Silent)
	if err != nil {
		zap.S().Fatalw("failed to connect to database", "error", err)
	}

	auth := service.NewAuthService(postgres.NewUserRepository(db), cfg)
	token, err := auth.IssueToken(context.Background(), service.IssueTokenInput{
		UserID:   *userID,
		Username: *username,
	})
	if err != nil {
		zap.S().Fatalw("failed to issue token", "error", err)
	}

	fmt.Println(token)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/jwt-device-auth/pkg/config"
	"github.com/tendant/jwt-device-auth/pkg/login"
)

type Config struct {
	DbConfig config.DatabaseConfig
}

func main() {
	username := flag.String("username", "", "Username for the new login (required)")
	password := flag.String("password", "", "Password for the new login (required)")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Println("Error: username and password are required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	dbConfig := cfg.DbConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}
	defer pool.Close()

	loginService := login.NewLoginService(login.NewPostgresLoginRepository(pool))

	created, err := loginService.RegisterLogin(context.Background(), *username, *password)
	if err != nil {
		slog.Error("Failed creating login", "err", err, "username", *username)
		os.Exit(-1)
	}

	slog.Info("Login created", "id", created.ID, "username", created.Username)
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/jwt-device-auth/pkg/config"
	"github.com/tendant/jwt-device-auth/pkg/device"
	"github.com/tendant/jwt-device-auth/pkg/deviceauth"
	"github.com/tendant/jwt-device-auth/pkg/deviceauth/api"
	"github.com/tendant/jwt-device-auth/pkg/login"
	"github.com/tendant/jwt-device-auth/pkg/tokencodec"
)

type Config struct {
	DbConfig     config.DatabaseConfig
	AppConfig    app.AppConfig
	JwtConfig    config.JWTConfig
	DeviceConfig config.DeviceConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	var pool *pgxpool.Pool
	if cfg.DeviceConfig.PersistenceType == "postgres" || cfg.DeviceConfig.PersistenceType == "postgresql" {
		dbConfig := cfg.DbConfig.ToDbConfig()
		p, err := dbutils.NewDbPool(context.Background(), dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(-1)
		}
		pool = p
	}

	deviceRepo, err := device.NewDeviceRepository(cfg.DeviceConfig.PersistenceType, device.RepositoryConfig{DB: pool})
	if err != nil {
		slog.Error("Failed creating device repository", "err", err)
		os.Exit(-1)
	}

	loginRepo, err := login.NewLoginRepository(cfg.DeviceConfig.PersistenceType, login.RepositoryConfig{DB: pool})
	if err != nil {
		slog.Error("Failed creating login repository", "err", err)
		os.Exit(-1)
	}
	loginService := login.NewLoginService(loginRepo)

	accessTokenExpiry, err := cfg.JwtConfig.ParseAccessTokenExpiry()
	if err != nil {
		slog.Error("Invalid access token expiry", "err", err, "value", cfg.JwtConfig.AccessTokenExpiry)
		os.Exit(-1)
	}
	codec := tokencodec.NewJwtTokenCodec(cfg.JwtConfig.Issuer, cfg.JwtConfig.Audience, accessTokenExpiry)

	expirationDelta, err := cfg.DeviceConfig.ParseExpirationDelta()
	if err != nil {
		slog.Error("Invalid device expiration delta", "err", err, "value", cfg.DeviceConfig.ExpirationDelta)
		os.Exit(-1)
	}
	accuracyDelta, err := cfg.DeviceConfig.ParseAccuracyDelta()
	if err != nil {
		slog.Error("Invalid device accuracy delta", "err", err, "value", cfg.DeviceConfig.AccuracyDelta)
		os.Exit(-1)
	}

	deviceAuthService := deviceauth.NewDeviceAuthService(
		loginService,
		deviceRepo,
		codec,
		deviceauth.WithDeviceBound(cfg.DeviceConfig.DeviceBound),
		deviceauth.WithExpirationDelta(expirationDelta),
		deviceauth.WithAccuracyDelta(accuracyDelta),
		deviceauth.WithLegacySecret([]byte(cfg.JwtConfig.Secret)),
	)

	handle := api.NewHandle(deviceAuthService)
	server.R.Mount("/", api.Handler(handle))

	server.Run()
}

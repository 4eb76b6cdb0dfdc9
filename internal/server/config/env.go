package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/vaultkeeper/internal/flagx"
)

// EnvPrefix prefixes every environment variable read by the server.
const EnvPrefix = "VAULTKEEPER_"

// parseEnv loads a dotenv file into the process environment and overlays
// the VAULTKEEPER_* variables onto config. An explicit -env-file must
// exist; the implicit ./.env is optional. Variables already set in the
// environment win over the file.
func parseEnv(config *Config, args []string) error {
	if path := flagx.EnvFile(args); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	} else {
		_ = godotenv.Load()
	}

	strVar(&config.EndpointAddrGRPC, "GRPC_ADDR")
	strVar(&config.EndpointAddrHTTP, "HTTP_ADDR")
	strVar(&config.DatabaseDSN, "DATABASE_DSN")
	strVar(&config.SecretKey, "SECRET_KEY")
	strVar(&config.S3RootUser, "S3_ROOT_USER")
	strVar(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	strVar(&config.S3Bucket, "S3_BUCKET")
	strVar(&config.S3Region, "S3_REGION")
	strVar(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	strVar(&config.LogLevel, "LOG_LEVEL")
	strVar(&config.LogFormat, "LOG_FORMAT")
	strVar(&config.TimeZone, "TIME_ZONE")

	if v, ok := os.LookupEnv(EnvPrefix + "ACCESS_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sACCESS_TOKEN_TTL: %w", EnvPrefix, err)
		}
		config.AccessTokenValidityDuration = d
	}
	return nil
}

func strVar(dst *string, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		*dst = v
	}
}

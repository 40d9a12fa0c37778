package config

import (
	"fmt"
	"os"
	"strconv"
)

// parseEnv overlays configuration from environment variables. The DB_* group
// mirrors what the bot's hosting environment has always provided; when
// DB_HOST is present the DSN is assembled from the group (SSL required, as
// the hosted database demands).
func parseEnv(config *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		config.DatabaseDSN = fmt.Sprintf(
			"postgres://%s:%s@%s/%s?sslmode=require",
			os.Getenv("DB_USER"), os.Getenv("DB_PASS"), host, os.Getenv("DB_NAME"))
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.DatabaseDSN = dsn
	}

	setIfPresent := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setIfPresent(&config.HTTPAddr, "HTTP_ADDR")
	setIfPresent(&config.SecretKey, "SECRET_KEY")
	setIfPresent(&config.SessionKey, "SESSION_KEY")
	setIfPresent(&config.SlackToken, "SLACK_TOKEN")
	setIfPresent(&config.SlackSigningSecret, "SIGNING_SECRET")
	setIfPresent(&config.ChannelNotebook, "CHANNEL_NOTEBOOK")
	setIfPresent(&config.ChannelMechanical, "CHANNEL_MECH")
	setIfPresent(&config.ChannelProgramming, "CHANNEL_PROG")
	setIfPresent(&config.ChannelErrors, "CHANNEL_ERRORS")
	setIfPresent(&config.SheetsToken, "SHEETS_TOKEN")
	setIfPresent(&config.SpreadsheetID, "SPREADSHEET_ID")
	setIfPresent(&config.S3RootUser, "S3_ROOT_USER")
	setIfPresent(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	setIfPresent(&config.S3Bucket, "S3_BUCKET")
	setIfPresent(&config.S3Region, "S3_REGION")
	setIfPresent(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")

	if v := os.Getenv("SCOUT_SEASON"); v != "" {
		if season, err := strconv.Atoi(v); err == nil {
			config.ScoutSeason = season
		}
	}
}

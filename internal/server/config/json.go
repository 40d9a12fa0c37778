package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/thepicklr/notebook/internal/flagx"
	"github.com/thepicklr/notebook/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON
// configuration files. It uses timex.Duration for interval fields, which
// allows parsing both string values such as "10s" and integer nanoseconds.
// After unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	HTTPAddr           string         `json:"http_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	SessionKey         string         `json:"session_key"`
	SlackToken         string         `json:"slack_token"`
	SlackSigningSecret string         `json:"slack_signing_secret"`
	ChannelNotebook    string         `json:"channel_notebook"`
	ChannelMechanical  string         `json:"channel_mechanical"`
	ChannelProgramming string         `json:"channel_programming"`
	ChannelErrors      string         `json:"channel_errors"`
	SheetsToken        string         `json:"sheets_token"`
	SpreadsheetID      string         `json:"spreadsheet_id"`
	ScoutSeason        int            `json:"scout_season"`
	ClientTimeout      timex.Duration `json:"client_timeout"`
	S3RootUser         string         `json:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; when
// neither is set, no JSON file is loaded. Read or parse failures panic:
// a present-but-broken config file is a deployment error.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.HTTPAddr = c.HTTPAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SessionKey = c.SessionKey
	config.SlackToken = c.SlackToken
	config.SlackSigningSecret = c.SlackSigningSecret
	config.ChannelNotebook = c.ChannelNotebook
	config.ChannelMechanical = c.ChannelMechanical
	config.ChannelProgramming = c.ChannelProgramming
	config.ChannelErrors = c.ChannelErrors
	config.SheetsToken = c.SheetsToken
	config.SpreadsheetID = c.SpreadsheetID
	config.ScoutSeason = c.ScoutSeason
	config.ClientTimeout = time.Duration(c.ClientTimeout.Duration)
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/vaultkeeper/internal/flagx"
	"github.com/dmitrijs2005/vaultkeeper/internal/timex"
)

type jsonPolicy struct {
	AutoApproveThreshold    float64        `json:"auto_approve_threshold"`
	ImpossibleTravelKm      float64        `json:"impossible_travel_km"`
	ImpossibleTravelWindow  timex.Duration `json:"impossible_travel_window"`
	NightStartHour          int            `json:"night_start_hour"`
	NightEndHour            int            `json:"night_end_hour"`
	RapidAccessCount        int            `json:"rapid_access_count"`
	RapidAccessWindow       timex.Duration `json:"rapid_access_window"`
	DeletionRatio           float64        `json:"deletion_ratio"`
	TransferDenyScore       float64        `json:"transfer_deny_score"`
	TransferReviewScore     float64        `json:"transfer_review_score"`
	TransferWindow          timex.Duration `json:"transfer_window"`
	TransferMaxRecent       int            `json:"transfer_max_recent"`
	TransferNightEndHour    int            `json:"transfer_night_end_hour"`
	PassCodeValidity        timex.Duration `json:"pass_code_validity"`
	HighThreatTransferIndex float64        `json:"high_threat_transfer_index"`
}

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "90s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	LogLevel                    string         `json:"log_level"`
	LogFormat                   string         `json:"log_format"`
	TimeZone                    string         `json:"time_zone"`
	Policy                      jsonPolicy     `json:"policy"`
}

func toJSON(c *Config) *JsonConfig {
	p := c.Policy
	return &JsonConfig{
		EndpointAddrGRPC:            c.EndpointAddrGRPC,
		EndpointAddrHTTP:            c.EndpointAddrHTTP,
		DatabaseDSN:                 c.DatabaseDSN,
		SecretKey:                   c.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: c.AccessTokenValidityDuration},
		S3RootUser:                  c.S3RootUser,
		S3RootPassword:              c.S3RootPassword,
		S3Bucket:                    c.S3Bucket,
		S3Region:                    c.S3Region,
		S3BaseEndpoint:              c.S3BaseEndpoint,
		LogLevel:                    c.LogLevel,
		LogFormat:                   c.LogFormat,
		TimeZone:                    c.TimeZone,
		Policy: jsonPolicy{
			AutoApproveThreshold:    p.AutoApproveThreshold,
			ImpossibleTravelKm:      p.ImpossibleTravelKm,
			ImpossibleTravelWindow:  timex.Duration{Duration: p.ImpossibleTravelWindow},
			NightStartHour:          p.NightStartHour,
			NightEndHour:            p.NightEndHour,
			RapidAccessCount:        p.RapidAccessCount,
			RapidAccessWindow:       timex.Duration{Duration: p.RapidAccessWindow},
			DeletionRatio:           p.DeletionRatio,
			TransferDenyScore:       p.TransferDenyScore,
			TransferReviewScore:     p.TransferReviewScore,
			TransferWindow:          timex.Duration{Duration: p.TransferWindow},
			TransferMaxRecent:       p.TransferMaxRecent,
			TransferNightEndHour:    p.TransferNightEndHour,
			PassCodeValidity:        timex.Duration{Duration: p.PassCodeValidity},
			HighThreatTransferIndex: p.HighThreatTransferIndex,
		},
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
	c.TimeZone = j.TimeZone

	p := j.Policy
	c.Policy = Policy{
		AutoApproveThreshold:    p.AutoApproveThreshold,
		ImpossibleTravelKm:      p.ImpossibleTravelKm,
		ImpossibleTravelWindow:  p.ImpossibleTravelWindow.Duration,
		NightStartHour:          p.NightStartHour,
		NightEndHour:            p.NightEndHour,
		RapidAccessCount:        p.RapidAccessCount,
		RapidAccessWindow:       p.RapidAccessWindow.Duration,
		DeletionRatio:           p.DeletionRatio,
		TransferDenyScore:       p.TransferDenyScore,
		TransferReviewScore:     p.TransferReviewScore,
		TransferWindow:          p.TransferWindow.Duration,
		TransferMaxRecent:       p.TransferMaxRecent,
		TransferNightEndHour:    p.TransferNightEndHour,
		PassCodeValidity:        p.PassCodeValidity.Duration,
		HighThreatTransferIndex: p.HighThreatTransferIndex,
	}
}

// parseJSON overlays the file named by -c/-config onto config. The file is
// decoded on top of the current values, so keys it omits keep their
// previous setting. No flag means no file.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	j := toJSON(config)
	if err := json.Unmarshal(data, j); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	j.apply(config)
	return nil
}

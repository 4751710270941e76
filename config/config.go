package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT        = "5002"
	DefaultCoolingDays  = 14
	DefaultWebhookQueue = "webhook_queue"
	DefaultIndexQueue   = "index_queue"
	DefaultSettleQueue  = "settlement_queue"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"MOBO_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"MOBO_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"MOBO_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"MOBO_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"MOBO_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"MOBO_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"MOBO_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"MOBO_REDIS_DNS"`
}

type TypeSenseConfig struct {
	Dns string `json:"dns" envconfig:"MOBO_TYPESENSE_DNS"`
	Key string `json:"key" envconfig:"MOBO_TYPESENSE_KEY"`
}

// SettlementConfig tunes the order settlement core. CoolingPeriodDays is the
// mandatory wait between approval and settlement eligibility.
type SettlementConfig struct {
	CoolingPeriodDays int    `json:"cooling_period_days" envconfig:"MOBO_SETTLEMENT_COOLING_DAYS"`
	Currency          string `json:"currency" envconfig:"MOBO_SETTLEMENT_CURRENCY"`
}

type QueueConfig struct {
	WebhookQueue    string `json:"webhook_queue" envconfig:"MOBO_QUEUE_WEBHOOK"`
	IndexQueue      string `json:"index_queue" envconfig:"MOBO_QUEUE_INDEX"`
	SettlementQueue string `json:"settlement_queue" envconfig:"MOBO_QUEUE_SETTLEMENT"`
	MonitoringPort  string `json:"monitoring_port" envconfig:"MOBO_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"MOBO_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"MOBO_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"MOBO_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type BackupConfig struct {
	Dir                string `json:"dir" envconfig:"MOBO_BACKUP_DIR"`
	S3Endpoint         string `json:"s3_endpoint"`
	S3BucketName       string `json:"s3_bucket_name"`
	S3Region           string `json:"s3_region"`
	AwsAccessKeyId     string `json:"aws_access_key_id"`
	AwsSecretAccessKey string `json:"aws_secret_access_key"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"MOBO_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"MOBO_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	TypeSense       TypeSenseConfig  `json:"typesense"`
	Settlement      SettlementConfig `json:"settlement"`
	Queue           QueueConfig      `json:"queue"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Backup          BackupConfig     `json:"backup"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("mobo", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called mobo.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "MOBO Settlement Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.TypeSense.Dns == "" {
		cnf.TypeSense.Dns = "http://typesense:8108"
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Settlement.CoolingPeriodDays <= 0 {
		cnf.Settlement.CoolingPeriodDays = DefaultCoolingDays
	}
	if cnf.Settlement.Currency == "" {
		cnf.Settlement.Currency = "INR"
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = DefaultWebhookQueue
	}
	if cnf.Queue.IndexQueue == "" {
		cnf.Queue.IndexQueue = DefaultIndexQueue
	}
	if cnf.Queue.SettlementQueue == "" {
		cnf.Queue.SettlementQueue = DefaultSettleQueue
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes. Only the
// non-failing defaults are applied so tests can pass a minimal struct.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.Settlement.CoolingPeriodDays <= 0 {
		mockConfig.Settlement.CoolingPeriodDays = DefaultCoolingDays
	}
	if mockConfig.Settlement.Currency == "" {
		mockConfig.Settlement.Currency = "INR"
	}
	if mockConfig.Queue.WebhookQueue == "" {
		mockConfig.Queue.WebhookQueue = DefaultWebhookQueue
	}
	if mockConfig.Queue.IndexQueue == "" {
		mockConfig.Queue.IndexQueue = DefaultIndexQueue
	}
	if mockConfig.Queue.SettlementQueue == "" {
		mockConfig.Queue.SettlementQueue = DefaultSettleQueue
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}

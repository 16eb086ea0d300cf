package config

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Tracing
	TracingEnabled bool   `env:"TRACING_ENABLED" env-default:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol   string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure   bool   `env:"OTLP_INSECURE" env-default:"true"`

	// PostgreSQL (master registry)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Kafka Consumer (provider records from source bridges)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"provider-records"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"fern-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer (resolution events for downstream analysis)
	KafkaOutputTopic  string `env:"KAFKA_OUTPUT_TOPIC" env-default:"resolution-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Matching. Weights and thresholds seed the MatchConfig handed to every
	// resolve call; they are never read from a global at scoring time.
	MatchNameWeight        float64 `env:"MATCH_NAME_WEIGHT" env-default:"0.35"`
	MatchAddressWeight     float64 `env:"MATCH_ADDRESS_WEIGHT" env-default:"0.30"`
	MatchCityWeight        float64 `env:"MATCH_CITY_WEIGHT" env-default:"0.15"`
	MatchZipWeight         float64 `env:"MATCH_ZIP_WEIGHT" env-default:"0.15"`
	MatchPhoneWeight       float64 `env:"MATCH_PHONE_WEIGHT" env-default:"0.05"`
	MatchAutoThreshold     float64 `env:"MATCH_AUTO_THRESHOLD" env-default:"0.85"`
	MatchReviewThreshold   float64 `env:"MATCH_REVIEW_THRESHOLD" env-default:"0.60"`
	MatchRejectThreshold   float64 `env:"MATCH_REJECT_THRESHOLD" env-default:"0.40"`
	MatchPrefixLength      int     `env:"MATCH_PREFIX_LENGTH" env-default:"10"`
	MatchMaxCandidates     int     `env:"MATCH_MAX_CANDIDATES" env-default:"100"`
	CreateUnmatchedMasters bool    `env:"CREATE_UNMATCHED_MASTERS" env-default:"true"`
}

// MatchConfig builds the per-call match configuration from the environment
// defaults.
func (c Config) MatchConfig() models.MatchConfig {
	return models.MatchConfig{
		NameWeight:         c.MatchNameWeight,
		AddressWeight:      c.MatchAddressWeight,
		CityWeight:         c.MatchCityWeight,
		ZipWeight:          c.MatchZipWeight,
		PhoneWeight:        c.MatchPhoneWeight,
		AutoMatchThreshold: c.MatchAutoThreshold,
		ReviewThreshold:    c.MatchReviewThreshold,
		RejectThreshold:    c.MatchRejectThreshold,
		PrefixLength:       c.MatchPrefixLength,
		MaxCandidates:      c.MatchMaxCandidates,
	}
}

package notify

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// PushCredentialsFile is a Firebase service account file; push is off when empty.
	PushCredentialsFile string `envconfig:"PUSH_CREDENTIALS_FILE"`
	PushTopic           string `envconfig:"PUSH_TOPIC" default:"eabridge"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"eabridge.executions"`

	QueueSize int `envconfig:"NOTIFY_QUEUE_SIZE" default:"100"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

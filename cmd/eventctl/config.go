package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type ctlConfig struct {
	APIURL       string
	KafkaBrokers []string
	KafkaGroupID string
	Topics       []string
}

// loadConfig reads eventctl.yaml from the working directory or
// $HOME/.config/eventctl, then EVENTCTL_* environment variables.
func loadConfig(path string) (*ctlConfig, error) {
	v := viper.New()
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "eventctl")
	v.SetDefault("kafka.topics", []string{"events.event.created", "events.event.updated", "events.event.deleted"})

	v.SetEnvPrefix("EVENTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("eventctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/eventctl")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &ctlConfig{
		APIURL:       v.GetString("api_url"),
		KafkaBrokers: v.GetStringSlice("kafka.brokers"),
		KafkaGroupID: v.GetString("kafka.group_id"),
		Topics:       v.GetStringSlice("kafka.topics"),
	}, nil
}

package config

import "github.com/iliyamo/rewear/internal/queue"

// QueueConfig configures swap event publishing over RabbitMQ. An empty URL
// disables publishing and the activity-log consumer.
type QueueConfig struct {
	URL             string
	SwapQueue       string
	Enabled         bool
	ConsumerEnabled bool
	ActivityLogPath string
}

// LoadQueueConfig reads RABBITMQ_URL (or AMQP_URL) and SWAP_EVENTS_*.
func LoadQueueConfig() QueueConfig {
	url := getenv("RABBITMQ_URL", getenv("AMQP_URL", ""))
	return QueueConfig{
		URL:             url,
		SwapQueue:       getenv("SWAP_EVENTS_QUEUE", queue.DefaultSwapQueue),
		Enabled:         url != "" && envBool("SWAP_EVENTS_ENABLED", true),
		ConsumerEnabled: url != "" && envBool("SWAP_EVENTS_CONSUMER", true),
		ActivityLogPath: getenv("ACTIVITY_LOG_PATH", "logs/swaps.log"),
	}
}

// CronConfig holds the housekeeping schedules in robfig/cron syntax.
type CronConfig struct {
	Enabled     bool
	TokenPurge  string
	DailyReport string
}

func LoadCronConfig() CronConfig {
	return CronConfig{
		Enabled:     envBool("CRON_ENABLED", true),
		TokenPurge:  getenv("CRON_TOKEN_PURGE", "@hourly"),
		DailyReport: getenv("CRON_DAILY_REPORT", "0 0 * * *"),
	}
}

package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Redis       *RedisConfig
	Postgres    *PostgresConfig
	Broker      *BrokerConfig
	Worker      *WorkerConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	SecretToken string
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// BrokerConfig holds the timings that govern connection liveness and
// whiteboard durability.
type BrokerConfig struct {
	// HeartbeatInterval is how often a connection refreshes its presence
	// entry in Redis.
	HeartbeatInterval time.Duration
	// LivenessTimeout is how long a connection may go without traffic
	// before it is forcibly deregistered.
	LivenessTimeout time.Duration
	// SnapshotFlushInterval is the debounce period between whiteboard
	// flushes to Postgres.
	SnapshotFlushInterval time.Duration
	// SnapshotFlushRetries bounds the backoff loop on a failed flush.
	SnapshotFlushRetries int
	// HistoryLimit caps the number of messages returned by the chat
	// history endpoint.
	HistoryLimit int
}

type WorkerConfig struct {
	MessageGroup string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
}

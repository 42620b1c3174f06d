package influxdb

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/config"
)

// Client wraps the InfluxDB v2 client for marketplace metrics.
//
// Writes go through the non-blocking WriteAPI with client-side
// batching, so a slow or unreachable InfluxDB never stalls a
// marketplace operation. Write errors are surfaced through the
// configured logger and otherwise dropped: metrics are advisory, the
// SQLite ledger is the record.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig
	logger   Logger
}

// Logger interface for optional error logging.
type Logger interface {
	Warn(msg string, args ...any)
}

// Connect creates an InfluxDB client and verifies the server is reachable.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	options := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		options.SetBatchSize(uint(cfg.BatchSize))
	}
	if cfg.FlushInterval > 0 {
		options.SetFlushInterval(uint(cfg.FlushInterval * 1000))
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !ok {
		client.Close()
		return nil, ErrConnectionFailed
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}

	go c.drainWriteErrors()

	return c, nil
}

// SetLogger sets a logger for asynchronous write errors.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// drainWriteErrors consumes the async write error channel so failed
// batches do not accumulate. Must run for the lifetime of the client.
func (c *Client) drainWriteErrors() {
	for err := range c.writeAPI.Errors() {
		if c.logger != nil {
			c.logger.Warn("influxdb write failed", "error", err)
		}
	}
}

// HealthCheck verifies the InfluxDB server is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !ok {
		return ErrNotReady
	}
	return nil
}

// Close flushes pending writes and releases the client.
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}

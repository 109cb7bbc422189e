package yeelight

import (
	"context"

	"github.com/nerrad567/hard/internal/process"
)

// Controller issues fire-and-forget power commands through a worker pool.
type Controller struct {
	client *Client
	pool   process.Dispatcher
	logger Logger
}

// NewController creates a Controller.
func NewController(client *Client, pool process.Dispatcher, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{client: client, pool: pool, logger: logger}
}

// SetPower queues a power change for the named lamp and returns at once.
func (c *Controller) SetPower(name, host string, on bool) {
	ok := c.pool.Go("yeelight:"+name, func(ctx context.Context) error {
		return c.client.SetPower(ctx, host, on)
	})
	if !ok {
		c.logger.Warn("yeelight command dropped", "yeelight", name, "on", on)
	}
}

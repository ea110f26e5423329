package ftpq

import (
	"time"

	"go.uber.org/zap"
)

// startKeepAlive spawns the idle NOOP loop when an idle timeout is
// configured. The loop wakes at half the idle timeout and sends NOOP only
// when the control channel has been quiet long enough, and never while a
// transfer holds the data connection, since a NOOP reply would interleave
// with the transfer's completion reply.
func (c *Client) startKeepAlive() {
	if c.idleTimeout <= 0 {
		return
	}

	c.quitChan = make(chan struct{})

	interval := c.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}

	go func(quit chan struct{}) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				if c.transferring.Load() {
					continue
				}

				c.mu.Lock()
				idle := time.Since(c.lastCommand)
				c.mu.Unlock()

				if idle < interval {
					continue
				}

				if err := c.Noop(); err != nil {
					c.logger.Debug("keep-alive failed", zap.Error(err))
					return
				}
			}
		}
	}(c.quitChan)
}

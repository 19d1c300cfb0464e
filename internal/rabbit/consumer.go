package rabbit

import (
	"context"
	"encoding/json"

	"filepub/pkg/models"
)

// Consume reads records from the configured queue and feeds them to
// handler until ctx is cancelled or the delivery stream closes.
// Messages are acked one at a time (prefetch 1); malformed JSON is
// rejected without requeue, a handler error requeues the message.
func (c *Client) Consume(ctx context.Context, handler func(models.FileRecord) error) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}

	if err := c.ch.Qos(1, 0, false); err != nil {
		return err
	}

	deliveries, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.log.Infof("waiting for messages on queue %q", c.cfg.Queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			var record models.FileRecord
			if err := json.Unmarshal(d.Body, &record); err != nil {
				c.log.Errorf("failed to decode message: %v", err)
				if err := d.Nack(false, false); err != nil {
					c.log.Warnf("nack failed: %v", err)
				}
				continue
			}

			if err := handler(record); err != nil {
				c.log.Errorf("error handling message for %s: %v", record.Path, err)
				if err := d.Nack(false, true); err != nil {
					c.log.Warnf("nack failed: %v", err)
				}
				continue
			}

			if err := d.Ack(false); err != nil {
				c.log.Warnf("ack failed: %v", err)
			}
		}
	}
}

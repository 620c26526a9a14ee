// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import (
	"context"
	"fmt"
)

// dispatchLoop moves commands from the operator's in-process queue into
// the mailbox.
type dispatchLoop struct {
	env     *SessionContext
	mailbox *Mailbox
	queue   <-chan Command

	// pending holds a dequeued command whose send failed. It is retried
	// before anything else so send order matches enqueue order.
	pending *Command
}

// tick drains the queue.
func (d *dispatchLoop) tick(ctx context.Context) error {
	for {
		if d.pending == nil {
			select {
			case command := <-d.queue:
				d.pending = &command
			default:
				return nil
			}
		}
		id, err := d.mailbox.Send(ctx, *d.pending)
		if err != nil {
			return fmt.Errorf("sending %s: %w", d.pending, err)
		}
		d.env.Logger.Debug("command sent", "id", id, "command", d.pending.String())
		d.pending = nil
	}
}

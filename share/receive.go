// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package share

import "context"

// receiveLoop executes mailbox commands on the client.
type receiveLoop struct {
	mailbox  *Mailbox
	executor *Executor
}

func (r *receiveLoop) tick(ctx context.Context) error {
	_, err := r.mailbox.ReceiveAll(ctx, r.executor.Execute)
	return err
}

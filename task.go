package ftpq

import (
	"context"
	"sync/atomic"

	"github.com/segmentio/ksuid"
)

// TransferDirection tells uploads from downloads in task bookkeeping and
// transfer errors.
type TransferDirection int

const (
	// DirectionUpload is local to remote.
	DirectionUpload TransferDirection = iota
	// DirectionDownload is remote to local.
	DirectionDownload
)

func (d TransferDirection) String() string {
	if d == DirectionUpload {
		return "upload"
	}
	return "download"
}

// task is one submitted operation: its identity, its cancellation handle,
// and for transfers the byte bookkeeping behind progress reporting. Every
// operation a Session runs is registered as a task until it finishes, so
// Cancel can reach it.
type task struct {
	id string
	op string

	ctx    context.Context
	cancel context.CancelFunc

	// cancelled distinguishes Session.Cancel from a parent context
	// firing; only the former maps to CancelledError
	cancelled atomic.Bool

	// transfer bookkeeping, used by uploads and downloads only
	direction   TransferDirection
	localPath   string
	remotePath  string
	total       int64
	transferred atomic.Int64
}

func newTask(ctx context.Context, op string) *task {
	taskCtx, cancel := context.WithCancel(ctx)
	return &task{
		id:     ksuid.New().String(),
		op:     op,
		ctx:    taskCtx,
		cancel: cancel,
	}
}

// abort marks the task cancelled and fires its context. Closing of data
// connections hangs off the context, so an abort mid-transfer unblocks a
// pending socket read.
func (t *task) abort() {
	t.cancelled.Store(true)
	t.cancel()
}

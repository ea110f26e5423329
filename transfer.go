package ftpq

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ftpq-dev/ftpq/internal/ratelimit"
)

// transferChunkSize is the unit of data movement during transfers.
// Cancellation is observed between chunks.
const transferChunkSize = 32 * 1024

// copyData moves bytes in transferChunkSize units, checking ctx before
// each chunk so a cancelled transfer stops at a chunk boundary instead of
// mid-copy. The data connection is closed from elsewhere on cancel, which
// also unblocks a Read already in flight.
func copyData(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, transferChunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			return written, rerr
		}
	}
}

// Store uploads data from r to the remote path in binary mode.
//
//	file, err := os.Open("local.txt")
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	err = client.Store(ctx, "remote.txt", file)
func (c *Client) Store(ctx context.Context, remotePath string, r io.Reader) error {
	return c.store(ctx, "STOR", remotePath, r)
}

// Append appends data from r to the remote path, creating the file when it
// does not exist. Binary mode.
func (c *Client) Append(ctx context.Context, remotePath string, r io.Reader) error {
	return c.store(ctx, "APPE", remotePath, r)
}

// StoreAt resumes an upload at the given offset by switching to APPE.
// True REST+STOR resume is rare in the wild; appending covers the common
// resume case where offset is the current remote size.
func (c *Client) StoreAt(ctx context.Context, remotePath string, r io.Reader, offset int64) error {
	if offset > 0 {
		return c.store(ctx, "APPE", remotePath, r)
	}
	return c.store(ctx, "STOR", remotePath, r)
}

func (c *Client) store(ctx context.Context, cmd, remotePath string, r io.Reader) error {
	if err := c.Type("I"); err != nil {
		return err
	}
	if err := c.ensureTransferMode(); err != nil {
		return err
	}

	_, dataConn, err := c.cmdDataConnFrom(ctx, cmd, remotePath)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { dataConn.Close() })
	defer stop()

	var copyErr error
	w, werr := c.dataWriter(ratelimit.NewWriter(dataConn, c.limiter))
	if werr != nil {
		copyErr = werr
	} else {
		_, copyErr = copyData(ctx, w, r)
		// Close flushes the final MODE Z block, before the socket
		// close that signals end-of-data.
		if cerr := w.Close(); cerr != nil && copyErr == nil {
			copyErr = cerr
		}
	}

	finishErr := c.finishDataConn(dataConn)

	if err := ctx.Err(); err != nil {
		return err
	}
	if copyErr != nil {
		return fmt.Errorf("upload: %w", copyErr)
	}
	return finishErr
}

// StoreFrom uploads a local file to the remote path.
func (c *Client) StoreFrom(ctx context.Context, remotePath, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer file.Close()

	return c.Store(ctx, remotePath, file)
}

// Retrieve downloads the remote path into w in binary mode.
//
//	file, err := os.Create("local.txt")
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	err = client.Retrieve(ctx, "remote.txt", file)
func (c *Client) Retrieve(ctx context.Context, remotePath string, w io.Writer) error {
	return c.retrieve(ctx, remotePath, w, 0)
}

// RetrieveFrom downloads the remote path starting at the given byte
// offset, for resuming interrupted downloads.
//
//	file, err := os.OpenFile("large.bin", os.O_WRONLY|os.O_APPEND, 0644)
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	info, _ := file.Stat()
//	err = client.RetrieveFrom(ctx, "large.bin", file, info.Size())
func (c *Client) RetrieveFrom(ctx context.Context, remotePath string, w io.Writer, offset int64) error {
	return c.retrieve(ctx, remotePath, w, offset)
}

func (c *Client) retrieve(ctx context.Context, remotePath string, w io.Writer, offset int64) error {
	if err := c.Type("I"); err != nil {
		return err
	}
	if err := c.ensureTransferMode(); err != nil {
		return err
	}

	if offset > 0 {
		if err := c.RestartAt(offset); err != nil {
			return err
		}
	}

	_, dataConn, err := c.cmdDataConnFrom(ctx, "RETR", remotePath)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { dataConn.Close() })
	defer stop()

	r := c.dataReader(ratelimit.NewReader(dataConn, c.limiter))
	_, copyErr := copyData(ctx, w, r)
	if cerr := r.Close(); cerr != nil && copyErr == nil {
		copyErr = cerr
	}

	finishErr := c.finishDataConn(dataConn)

	if err := ctx.Err(); err != nil {
		return err
	}
	if copyErr != nil {
		return fmt.Errorf("download: %w", copyErr)
	}
	return finishErr
}

// RetrieveTo downloads a remote file to a local path. Whatever was written
// before a failure stays on disk, so a later RetrieveFrom can pick up
// where it stopped.
func (c *Client) RetrieveTo(ctx context.Context, remotePath, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local file: %w", err)
	}
	defer file.Close()

	return c.Retrieve(ctx, remotePath, file)
}

// RestartAt sets the restart marker for the next transfer (RFC 3659 REST).
// The offset applies to the next RETR or STOR on this connection.
func (c *Client) RestartAt(offset int64) error {
	resp, err := c.sendCommand("REST", fmt.Sprintf("%d", offset))
	if err != nil {
		return err
	}

	if resp.Code != 350 {
		return &CommandError{Command: "REST", Code: resp.Code, Message: resp.Message}
	}

	return nil
}

package ftpq

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// ensureTransferMode negotiates MODE Z once per connection when
// compression is enabled and the server advertises it. Servers without the
// feature silently stay in stream mode.
func (c *Client) ensureTransferMode() error {
	if !c.compress || c.modeZ {
		return nil
	}
	if !c.supportsModeZ() {
		return nil
	}

	if _, err := c.expectCode(200, "MODE", "Z"); err != nil {
		return err
	}

	c.modeZ = true
	return nil
}

// dataReader layers deflate decompression over a data connection when the
// connection runs in MODE Z. Close releases the decompressor only, the
// data connection stays open for finishDataConn.
func (c *Client) dataReader(conn io.Reader) io.ReadCloser {
	if !c.modeZ {
		return io.NopCloser(conn)
	}
	return flate.NewReader(conn)
}

// dataWriter layers deflate compression over a data connection when the
// connection runs in MODE Z. Close flushes the final deflate block and
// must happen before the data connection closes.
func (c *Client) dataWriter(conn io.Writer) (io.WriteCloser, error) {
	if !c.modeZ {
		return nopWriteCloser{conn}, nil
	}
	return flate.NewWriter(conn, flate.DefaultCompression)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

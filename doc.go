// Package ftpq implements an FTP client engine with a stateful session
// layer, plain and secure (FTPS) connections, and cancellable transfers.
//
// # Overview
//
// Two layers are exposed:
//
//   - Session: a connection state machine with an operation queue,
//     progress reporting and cancellation. Most applications want this.
//   - Client: one control connection and the raw protocol surface, for
//     callers that drive commands themselves.
//
// # Sessions
//
// A Session moves through Disconnected, Connecting, Ready and Busy.
// Operations submitted while another is running are queued and run in
// submission order:
//
//	session, err := ftpq.NewSession()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := session.Connect(ctx, "ftp.example.com", "user", "secret"); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Disconnect()
//
//	entries, err := session.List(ctx, "/pub")
//
// Empty credentials log in as anonymous. Remote paths may carry a file://
// prefix, which is stripped.
//
// # TLS Support
//
// The security mode is chosen before connecting:
//
//	session.SetSecurity("ftpes") // explicit TLS via AUTH TLS on port 21
//	session.SetSecurity("ftps")  // implicit TLS on port 990
//	session.SetSecurity("ftp")   // plaintext, the default
//
// The Client takes the same choice through options:
//
//	client, err := ftpq.Dial("ftp.example.com:21",
//	    ftpq.WithExplicitTLS(&tls.Config{
//	        ServerName: "ftp.example.com",
//	    }),
//	)
//
// Modern servers (vsftpd, ProFTPD) require TLS session reuse between the
// control and data connections; a shared session cache handles that
// without configuration.
//
// # Transfers, Progress and Cancellation
//
// Session transfers report progress as a fraction:
//
//	err := session.Download(ctx, "/pub/big.iso", "big.iso", func(f float64) {
//	    fmt.Printf("\r%3.0f%%", f*100)
//	})
//
// The fraction never decreases and reaches exactly 1 only on success.
// When the server cannot report a size, it approaches 1 asymptotically
// instead.
//
// Cancel aborts everything queued and running; each aborted operation
// fails with CancelledError. An interrupted download keeps the bytes
// already written, so it can be resumed.
//
// # Error Handling
//
// Failures carry typed context. Use errors.As to branch on the kind:
//
//	if err := session.Remove(ctx, "file.txt"); err != nil {
//	    var notFound *ftpq.NotFoundError
//	    if errors.As(err, &notFound) {
//	        fmt.Printf("already gone: %s\n", notFound.Path)
//	    }
//	}
package ftpq

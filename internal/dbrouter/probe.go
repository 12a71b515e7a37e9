package dbrouter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// ProbeErrorKind is the closed set of failure classes a primary probe can
// report. Anything that is not clearly a timeout or a refused connection is
// Other; all three open the circuit, the kind only drives logging.
type ProbeErrorKind int

const (
	ProbeTimeout ProbeErrorKind = iota
	ProbeConnectionRefused
	ProbeOther
)

func (k ProbeErrorKind) String() string {
	switch k {
	case ProbeTimeout:
		return "timeout"
	case ProbeConnectionRefused:
		return "connection_refused"
	default:
		return "other"
	}
}

type ProbeError struct {
	Kind ProbeErrorKind
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("primary probe failed (%s): %v", e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Prober checks whether the primary database accepts connections.
type Prober interface {
	Probe(ctx context.Context) *ProbeError
}

// SQLProber probes through the primary's *sql.DB pool. A dedicated
// connection is checked out and closed afterwards so a half-dead socket
// never lingers in the pool.
type SQLProber struct {
	DB      *sql.DB
	Timeout time.Duration
}

func (p *SQLProber) Probe(ctx context.Context) *ProbeError {
	probeCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	conn, err := p.DB.Conn(probeCtx)
	if err != nil {
		return classifyProbeError(err)
	}
	defer conn.Close()

	if err := conn.PingContext(probeCtx); err != nil {
		// Raw() forces the underlying driver connection to be discarded.
		_ = conn.Raw(func(driverConn interface{}) error { return sql.ErrConnDone })
		return classifyProbeError(err)
	}
	return nil
}

func classifyProbeError(err error) *ProbeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		return &ProbeError{Kind: ProbeTimeout, Err: err}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &ProbeError{Kind: ProbeConnectionRefused, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProbeError{Kind: ProbeTimeout, Err: err}
	}

	return &ProbeError{Kind: ProbeOther, Err: err}
}

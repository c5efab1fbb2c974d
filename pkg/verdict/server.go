package verdict

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/score"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/threshold"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// maxQueryLen bounds the bytes read from a client
const maxQueryLen = 1024

// Verdict is the answer sent for a query
type Verdict int

const (
	// Malformed is sent for input which is not an IPv4 address
	Malformed Verdict = -1
	// Benign is sent for addresses scoring below the threshold
	Benign Verdict = 0
	// Malicious is sent for addresses scoring at or above the threshold
	Malicious Verdict = 1
)

func (v Verdict) String() string {
	return strconv.Itoa(int(v))
}

// Action is the verdict given to scored addresses while the threshold file
// cannot be read
type Action int

const (
	// Allow answers Benign
	Allow Action = iota
	// Block answers Malicious
	Block
)

// ParseAction maps "allow" and "block" onto an Action
func ParseAction(name string) (Action, error) {
	switch name {
	case "", "allow":
		return Allow, nil
	case "block":
		return Block, nil
	}
	return Allow, fmt.Errorf("unknown default action %q", name)
}

func (a Action) verdict() Verdict {
	if a == Block {
		return Malicious
	}
	return Benign
}

// Server answers one query per TLS connection
type Server struct {
	Addr          string
	TLS           *tls.Config
	Store         score.Store
	ThresholdFile string
	Whitelist     *Whitelist
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	DefaultAction Action
	Log           *log.Logger
	Metrics       *Metrics

	wg sync.WaitGroup
}

// LoadTLSConfig reads the server's certificate and key
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ListenAndServe listens on s.Addr and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// open connections to finish. ln is wrapped in TLS when s.TLS is set.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.TLS != nil {
		ln = tls.NewListener(ln, s.TLS)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	s.Log.WithFields(log.Fields{
		"address": ln.Addr().String(),
	}).Info("Verdict server listening")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return err
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.Log.WithFields(log.Fields{
				"error": err.Error(),
				"retry": backoff.String(),
			}).Error("Failed to accept connection")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

// handle runs the query protocol on a single connection
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	started := time.Now()
	logger := s.Log.WithFields(log.Fields{
		"conn":   uuid.New().String(),
		"remote": conn.RemoteAddr().String(),
	})

	defer s.wg.Done()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(log.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("Recovered from panic while handling connection")
		}
	}()

	s.Metrics.connection()
	logger.Debug("Connection accepted")

	cutoff, thresholdErr := threshold.ReadFile(s.ThresholdFile)
	s.Metrics.thresholdRead(cutoff, thresholdErr)
	if thresholdErr != nil {
		logger.WithFields(log.Fields{
			"path":  s.ThresholdFile,
			"error": thresholdErr.Error(),
		}).Warn("Could not read threshold, using the default action")
	}
	whitelist := s.Whitelist.Load()

	if s.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}
	query, err := readQuery(conn)
	if err != nil {
		logger.WithFields(log.Fields{
			"error": err.Error(),
		}).Debug("Connection closed before a query arrived")
		return
	}

	v, err := s.decide(ctx, query, cutoff, thresholdErr == nil, whitelist)
	if err != nil {
		s.Metrics.storeError()
		logger.WithFields(log.Fields{
			"query": query,
			"error": err.Error(),
		}).Error("Score lookup failed")
		return
	}

	if s.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}
	if _, err := conn.Write([]byte(query + "," + v.String() + "\n")); err != nil {
		logger.WithFields(log.Fields{
			"error": err.Error(),
		}).Debug("Could not write verdict")
		return
	}
	s.Metrics.answered(v, started)

	logger.WithFields(log.Fields{
		"query":   query,
		"verdict": v.String(),
	}).Debug("Answered query")
}

// readQuery reads a single message of at most maxQueryLen bytes and returns
// its first line with surrounding whitespace removed. The terminating
// newline is optional.
func readQuery(conn net.Conn) (string, error) {
	buf := make([]byte, maxQueryLen)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil {
			err = errors.New("empty read")
		}
		return "", err
	}
	data := buf[:n]
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	return strings.TrimSpace(string(data)), nil
}

// decide turns a trimmed query into a verdict. Only score store failures
// produce an error.
func (s *Server) decide(ctx context.Context, query string, cutoff float64, haveCutoff bool, whitelist *Set) (Verdict, error) {
	key, ok := util.ParseIPv4(query)
	if !ok {
		return Malformed, nil
	}

	value, found, err := s.Store.Score(ctx, key)
	if err != nil {
		return Benign, err
	}

	if found {
		if !haveCutoff {
			return s.DefaultAction.verdict(), nil
		}
		if value >= cutoff {
			return Malicious, nil
		}
		return Benign, nil
	}

	// unscored addresses on the static whitelist are flagged
	if whitelist.Contains(query) {
		return Malicious, nil
	}
	return Benign, nil
}

package verdict

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoResponse is returned when the server closes the connection without
// answering, which it does when the score store fails
var ErrNoResponse = errors.New("server closed the connection without a verdict")

// Response is a parsed verdict line
type Response struct {
	Query   string  `json:"query"`
	Verdict Verdict `json:"verdict"`
}

// ParseResponse parses a "<query>,<verdict>" line
func ParseResponse(line string) (Response, error) {
	line = strings.TrimSpace(line)
	i := strings.LastIndexByte(line, ',')
	if i < 0 {
		return Response{}, fmt.Errorf("malformed response %q", line)
	}

	value, err := strconv.Atoi(line[i+1:])
	if err != nil || value < int(Malformed) || value > int(Malicious) {
		return Response{}, fmt.Errorf("malformed verdict in response %q", line)
	}
	return Response{Query: line[:i], Verdict: Verdict(value)}, nil
}

// Query asks the verdict server at addr about ip over a new TLS connection
func Query(ctx context.Context, addr string, conf *tls.Config, ip string) (Response, error) {
	dialer := &tls.Dialer{Config: conf}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(ip + "\n")); err != nil {
		return Response{}, err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return Response{}, err
		}
		if strings.TrimSpace(line) == "" {
			return Response{}, ErrNoResponse
		}
	}
	return ParseResponse(line)
}

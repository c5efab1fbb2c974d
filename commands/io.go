package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
	log "github.com/sirupsen/logrus"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// openInput opens path for reading, or stdin when path is empty or "-"
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// openOutput creates path for writing, or returns stdout when path is
// empty or "-"
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

// readIPs reads the address column of the input file
func readIPs(path string) ([]string, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return util.ReadIPList(in)
}

// parseIPs converts addresses to their integer form, logging and dropping
// anything which is not IPv4
func parseIPs(ips []string, logger *log.Logger) []uint32 {
	keys := make([]uint32, 0, len(ips))
	for _, ip := range ips {
		key, ok := util.ParseIPv4(ip)
		if !ok {
			logger.WithFields(log.Fields{
				"address": ip,
			}).Warn("Skipping invalid IPv4 address")
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

package hostmap

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// NA marks an address whose lookup failed or timed out
const NA = "NA"

// DefaultBatchSize bounds the number of lookups in flight
const DefaultBatchSize = 20000

type (
	// Record is the reverse lookup result of one address
	Record struct {
		IP       string
		Hostname string
	}

	// Pipeline resolves addresses in sequential batches. Every lookup in a
	// batch runs concurrently and the batch is emitted once all of them
	// finish.
	Pipeline struct {
		Resolver  Resolver
		BatchSize int
		Log       *log.Logger
	}
)

// Dedupe drops repeated addresses, keeping the first occurrence order
func Dedupe(ips []string) []string {
	seen := make(map[string]bool, len(ips))
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		if seen[ip] {
			continue
		}
		seen[ip] = true
		out = append(out, ip)
	}
	return out
}

// Run resolves every distinct address and hands each finished batch to emit
// in input order. On cancellation the completed records of the current batch
// are emitted, no further batch starts and the context error is returned.
func (p *Pipeline) Run(ctx context.Context, ips []string, emit func([]Record) error) error {
	ips = Dedupe(ips)

	size := p.BatchSize
	if size < 1 {
		size = DefaultBatchSize
	}

	for start := 0; start < len(ips); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + size
		if end > len(ips) {
			end = len(ips)
		}

		records, complete := p.resolveBatch(ctx, ips[start:end])
		if !complete {
			var finished []Record
			for _, record := range records {
				if record.Hostname != "" {
					finished = append(finished, record)
				}
			}
			if len(finished) > 0 {
				if err := emit(finished); err != nil {
					return err
				}
			}
			return ctx.Err()
		}

		if err := emit(records); err != nil {
			return err
		}
		p.logger().WithFields(log.Fields{
			"resolved": end,
			"total":    len(ips),
		}).Debug("Resolved host map batch")
	}
	return nil
}

// resolveBatch looks up every address of batch concurrently. Records whose
// lookup was cut short by cancellation keep an empty hostname.
func (p *Pipeline) resolveBatch(ctx context.Context, batch []string) ([]Record, bool) {
	records := make([]Record, len(batch))

	var g errgroup.Group
	for i, ip := range batch {
		i, ip := i, ip
		if !util.IsIPv4(ip) {
			records[i] = Record{IP: ip, Hostname: NA}
			continue
		}
		g.Go(func() error {
			name, err := p.Resolver.LookupPTR(ctx, ip)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger().WithFields(log.Fields{
					"ip":    ip,
					"error": err.Error(),
				}).Debug("Reverse lookup failed")
				name = NA
			}
			if name == "" {
				name = NA
			}
			records[i] = Record{IP: ip, Hostname: name}
			return nil
		})
	}
	g.Wait()

	if ctx.Err() == nil {
		return records, true
	}
	return records, false
}

func (p *Pipeline) logger() *log.Logger {
	if p.Log == nil {
		return log.StandardLogger()
	}
	return p.Log
}

// ResolveAll runs a pipeline over ips and collects every record
func ResolveAll(ctx context.Context, resolver Resolver, ips []string, batchSize int) ([]Record, error) {
	p := &Pipeline{Resolver: resolver, BatchSize: batchSize}

	var records []Record
	err := p.Run(ctx, ips, func(batch []Record) error {
		records = append(records, batch...)
		return nil
	})
	return records, err
}

// CSVWriter writes ip,hostname lines, flushing after every batch
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter wraps w
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// Write emits one line per record. It has the signature Pipeline.Run
// expects of emit.
func (c *CSVWriter) Write(records []Record) error {
	for _, record := range records {
		if err := c.w.Write([]string{record.IP, record.Hostname}); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

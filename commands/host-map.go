package commands

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/hostmap"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/resources"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
)

func init() {
	command := cli.Command{
		Name:  "host-map",
		Usage: "Resolve the PTR hostname of IPv4 addresses",
		Flags: []cli.Flag{
			configFlag,
			inputFlag,
			outputFlag,
			cli.IntFlag{
				Name:  "batch-size, b",
				Usage: "Resolve `N` addresses concurrently (default: HostMap.BatchSize)",
				Value: 0,
			},
			cli.StringSliceFlag{
				Name:  "resolver, r",
				Usage: "Query `SERVER` instead of the configured resolvers, may be repeated",
			},
			cli.BoolFlag{
				Name:  "quiet, q",
				Usage: "Do not display a progress bar",
			},
		},
		Action: hostMap,
	}

	bootstrapCommands(command)
}

func hostMap(c *cli.Context) error {
	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer res.Close()

	servers := res.Config.S.HostMap.Resolvers
	if len(c.StringSlice("resolver")) > 0 {
		servers = c.StringSlice("resolver")
	}
	batchSize := res.Config.S.HostMap.BatchSize
	if c.Int("batch-size") > 0 {
		batchSize = c.Int("batch-size")
	}

	ips, err := readIPs(c.String("input"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	ips = hostmap.Dedupe(ips)

	out, err := openOutput(c.String("output"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer out.Close()
	writer := hostmap.NewCSVWriter(out)

	pipeline := &hostmap.Pipeline{
		Resolver:  hostmap.NewDNSResolver(servers, res.Config.R.HostMap.Timeouts),
		BatchSize: batchSize,
		Log:       res.Log,
	}

	emit := writer.Write
	var p *mpb.Progress
	var bar *mpb.Bar
	var resolved int64
	if !c.Bool("quiet") && len(ips) > 0 {
		// the bar goes to stderr so stdout stays valid csv
		p = mpb.New(mpb.WithWidth(20), mpb.WithOutput(os.Stderr))
		bar = p.AddBar(int64(len(ips)),
			mpb.PrependDecorators(
				decor.Name("\t[-] Resolving Hostnames:", decor.WC{W: 30, C: decor.DidentRight}),
				decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
		started := time.Now()
		emit = func(records []hostmap.Record) error {
			resolved += int64(len(records))
			bar.IncrBy(len(records), time.Since(started))
			started = time.Now()
			return writer.Write(records)
		}
	}

	ctx, stop := signalContext()
	defer stop()

	res.Log.WithFields(log.Fields{
		"addresses":  len(ips),
		"batch_size": batchSize,
		"resolvers":  servers,
	}).Info("Resolving hostnames")

	err = pipeline.Run(ctx, ips, emit)
	if p != nil {
		// the bar never fills up when interrupted
		if err != nil {
			bar.SetTotal(resolved, true)
		}
		p.Wait()
	}
	if err != nil && errors.Is(err, ctx.Err()) {
		return cli.NewExitError("Interrupted after writing the resolved addresses", -1)
	}
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	res.Log.WithFields(log.Fields{
		"addresses": strconv.Itoa(len(ips)),
	}).Info("Finished resolving hostnames")
	return nil
}

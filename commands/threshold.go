package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/alert"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/threshold"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/resources"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
)

func init() {
	command := cli.Command{
		Name:  "threshold",
		Usage: "Calibrate the verdict threshold against the alert log",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			cli.StringFlag{
				Name:  "date, d",
				Usage: "Treat `YYYY-MM-DD` as today (default: the current date)",
				Value: "",
			},
			cli.BoolFlag{
				Name:  "dry-run, n",
				Usage: "Print the threshold without writing the threshold file",
			},
		},
		Action: calculateThreshold,
	}

	bootstrapCommands(command)
}

func calculateThreshold(c *cli.Context) error {
	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer res.Close()

	today := time.Now()
	if c.String("date") != "" {
		today, err = time.ParseInLocation(util.DayFormat, c.String("date"), time.Local)
		if err != nil {
			return cli.NewExitError("Dates must be given as YYYY-MM-DD", -1)
		}
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := res.OpenStore(ctx)
	if err != nil {
		return cli.NewExitError("Failed to open the score store: "+err.Error(), -1)
	}
	defer store.Close()

	alerts, err := alert.Open(res.Config.S.AlertStore)
	if err != nil {
		return cli.NewExitError("Failed to open the alert store: "+err.Error(), -1)
	}
	defer alerts.Close()

	cfg := res.Config.S.Threshold

	p := mpb.New(mpb.WithWidth(20), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(int64(cfg.DaysToAnalyze),
		mpb.PrependDecorators(
			decor.Name("\t[-] Gathering Alerts:", decor.WC{W: 30, C: decor.DidentRight}),
			decor.CountersNoUnit(" %d / %d ", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	var gathered int64
	started := time.Now()

	calc := &threshold.Calculator{
		Samples: &threshold.SampleBuilder{
			Alerts:          alerts,
			Scores:          store,
			IncludeUnscored: cfg.IncludeUnscored,
			Log:             res.Log,
			OnDay: func(day time.Time, alerted int) {
				gathered++
				bar.IncrBy(1, time.Since(started))
				started = time.Now()
			},
		},
		Target:     cfg.AlertsPerDay,
		Confidence: cfg.AlertConfidence,
		Days:       cfg.DaysToAnalyze,
		Log:        res.Log,
	}

	result, err := calc.Run(ctx, today)
	if err != nil {
		bar.SetTotal(gathered, true)
	}
	p.Wait()
	if err != nil {
		return cli.NewExitError("Failed to calculate the threshold: "+err.Error(), -1)
	}

	if !c.Bool("dry-run") {
		if err := threshold.WriteFile(cfg.File, result.Value); err != nil {
			return cli.NewExitError("Failed to write the threshold file: "+err.Error(), -1)
		}
		res.Log.WithFields(log.Fields{
			"path":      cfg.File,
			"threshold": result.Value,
		}).Info("Updated threshold file")
	}

	if c.Bool("human-readable") {
		return showThresholdReport(os.Stdout, result)
	}
	return showThresholdCsv(os.Stdout, result)
}

func showThresholdReport(w io.Writer, result threshold.Result) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Day", "Scored Alerts", "Ranked Score", "Counted"})
	for n, day := range result.Days {
		contribution := result.Contributions[n]
		score := "-"
		if contribution.Counted {
			score = f(contribution.Score)
		}
		table.Append([]string{
			day.Format(util.DayFormat),
			i(int64(contribution.Samples)),
			score,
			strconv.FormatBool(contribution.Counted),
		})
	}
	table.Render()

	fmt.Fprintf(w, "\nThreshold: %s\n", f(result.Value))
	fmt.Fprintf(w, "Poisson Rate: %s (rank %d, converged %t)\n", f(result.Mu), result.Rank, result.Converged)
	return nil
}

func showThresholdCsv(w io.Writer, result threshold.Result) error {
	csvWriter := csv.NewWriter(w)
	headers := []string{"Date", "Threshold", "Mu", "Rank", "Days"}
	if err := csvWriter.Write(headers); err != nil {
		return err
	}
	err := csvWriter.Write([]string{
		result.Date.Format(util.DayFormat),
		strconv.FormatFloat(result.Value, 'g', -1, 64),
		f(result.Mu),
		i(int64(result.Rank)),
		i(int64(len(result.Days))),
	})
	if err != nil {
		return err
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

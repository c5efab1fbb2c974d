package commands

import (
	"context"
	"crypto/tls"
	"encoding/csv"
	"io"
	"os"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/verdict"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/resources"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "query",
		Usage:     "Ask a verdict server about IPv4 addresses",
		ArgsUsage: "[IP...]",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			inputFlag,
			cli.StringFlag{
				Name:  "address, a",
				Usage: "Query the server at `HOST:PORT` instead of Client.Address",
				Value: "",
			},
			cli.BoolFlag{
				Name:  "json, j",
				Usage: "Print one json object per address",
			},
			cli.BoolFlag{
				Name:  "insecure, k",
				Usage: "Skip verification of the server certificate",
			},
		},
		Action: queryServer,
	}

	bootstrapCommands(command)
}

func queryServer(c *cli.Context) error {
	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer res.Close()

	ips := []string(c.Args())
	if len(ips) == 0 {
		ips, err = readIPs(c.String("input"))
		if err != nil {
			return cli.NewExitError(err.Error(), -1)
		}
	}
	if len(ips) == 0 {
		return cli.NewExitError("Specify addresses as arguments or with -i", -1)
	}

	addr := res.Config.S.Client.Address
	if c.String("address") != "" {
		addr = c.String("address")
	}
	tlsConf := res.Config.R.Client.TLSConfig.Clone()
	if c.Bool("insecure") {
		tlsConf.InsecureSkipVerify = true
	}

	ctx, stop := signalContext()
	defer stop()

	responses := make([]verdict.Response, 0, len(ips))
	for _, ip := range ips {
		resp, err := queryOne(ctx, addr, tlsConf, ip, res)
		if err != nil {
			return cli.NewExitError("Query for "+ip+" failed: "+err.Error(), -1)
		}
		responses = append(responses, resp)
	}

	switch {
	case c.Bool("json"):
		err = showVerdictJSON(os.Stdout, responses)
	case c.Bool("human-readable"):
		err = showVerdictReport(os.Stdout, responses)
	default:
		err = showVerdictCsv(os.Stdout, responses)
	}
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}

func queryOne(ctx context.Context, addr string, conf *tls.Config, ip string, res *resources.Resources) (verdict.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, res.Config.R.Client.Timeout)
	defer cancel()

	resp, err := verdict.Query(ctx, addr, conf, ip)
	if err != nil {
		return resp, err
	}
	res.Log.WithFields(log.Fields{
		"address": addr,
		"query":   resp.Query,
		"verdict": resp.Verdict.String(),
	}).Debug("Received verdict")
	return resp, nil
}

func showVerdictJSON(w io.Writer, responses []verdict.Response) error {
	encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	for _, resp := range responses {
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
	return nil
}

func showVerdictReport(w io.Writer, responses []verdict.Response) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Query", "Verdict", "Meaning"})
	for _, resp := range responses {
		table.Append([]string{resp.Query, resp.Verdict.String(), verdictMeaning(resp.Verdict)})
	}
	table.Render()
	return nil
}

func showVerdictCsv(w io.Writer, responses []verdict.Response) error {
	csvWriter := csv.NewWriter(w)
	for _, resp := range responses {
		if err := csvWriter.Write([]string{resp.Query, resp.Verdict.String()}); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func verdictMeaning(v verdict.Verdict) string {
	switch v {
	case verdict.Malicious:
		return "flagged"
	case verdict.Benign:
		return "not flagged"
	}
	return "malformed query"
}

package commands

import (
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/asn"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/resources"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "asn-map",
		Usage: "Annotate IPv4 addresses with their autonomous system",
		Flags: []cli.Flag{
			configFlag,
			inputFlag,
			outputFlag,
			cli.StringFlag{
				Name:  "ranges, r",
				Usage: "Read ASN ranges from `FILE` instead of the configured range file",
				Value: "",
			},
		},
		Action: asnMap,
	}

	bootstrapCommands(command)
}

func asnMap(c *cli.Context) error {
	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer res.Close()

	rangeFile := c.String("ranges")
	if rangeFile == "" {
		rangeFile = res.Config.S.ASN.RangeFile
	}

	policy, err := asn.ParseOverlapPolicy(res.Config.S.ASN.OverlapPolicy)
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	index, err := asn.LoadIndex(rangeFile, policy)
	if err != nil {
		return cli.NewExitError("Failed to load ASN ranges: "+err.Error(), -1)
	}
	res.Log.WithFields(log.Fields{
		"path":   rangeFile,
		"ranges": index.Len(),
	}).Info("Loaded ASN ranges")

	var lookuper asn.Lookuper = index
	if res.Config.S.ASN.GeoLiteASN != "" {
		geo, err := asn.OpenGeoIP(res.Config.S.ASN.GeoLiteASN)
		if err != nil {
			return cli.NewExitError("Failed to open GeoLite2 ASN database: "+err.Error(), -1)
		}
		defer geo.Close()
		lookuper = asn.Chain{index, geo}
	}

	ips, err := readIPs(c.String("input"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	out, err := openOutput(c.String("output"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer out.Close()

	if err := asn.Map(lookuper, parseIPs(ips, res.Log), out); err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}

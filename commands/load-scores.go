package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/score"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/resources"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "load-scores",
		Usage: "Replace the contents of the score store with a score file",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{
				Name:  "file, f",
				Usage: "Read ip,score rows from `FILE`",
				Value: "",
			},
			cli.StringFlag{
				Name:  "labels, l",
				Usage: "Override scores with the label,ip rows in `FILE`",
				Value: "",
			},
		},
		Action: loadScores,
	}

	bootstrapCommands(command)
}

func loadScores(c *cli.Context) error {
	if c.String("file") == "" {
		return cli.NewExitError("Specify a score file with -f", -1)
	}

	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer res.Close()

	scores, err := readEntries(c.String("file"), score.ParseScoreFile)
	if err != nil {
		return cli.NewExitError("Failed to read scores: "+err.Error(), -1)
	}

	var labels []score.Entry
	if c.String("labels") != "" {
		labels, err = readEntries(c.String("labels"), score.ParseLabelFile)
		if err != nil {
			return cli.NewExitError("Failed to read labels: "+err.Error(), -1)
		}
	}
	entries := score.Merge(labels, scores)

	ctx, stop := signalContext()
	defer stop()

	store, err := res.OpenStore(ctx)
	if err != nil {
		return cli.NewExitError("Failed to open the score store: "+err.Error(), -1)
	}
	defer store.Close()

	loader, ok := store.(score.Loader)
	if !ok {
		return cli.NewExitError(fmt.Sprintf("The %s score store cannot be loaded", res.Config.S.ScoreStore.Backend), -1)
	}
	if err := loader.Replace(ctx, entries); err != nil {
		return cli.NewExitError("Failed to load scores: "+err.Error(), -1)
	}

	res.Log.WithFields(log.Fields{
		"backend": res.Config.S.ScoreStore.Backend,
		"scores":  len(scores),
		"labels":  len(labels),
	}).Info("Loaded scores")
	fmt.Fprintf(os.Stdout, "Loaded %d scores into the %s score store\n", len(entries), res.Config.S.ScoreStore.Backend)
	return nil
}

func readEntries(path string, parse func(io.Reader) ([]score.Entry, error)) ([]score.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

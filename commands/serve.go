package commands

import (
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/verdict"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/resources"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/server"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

func init() {
	command := cli.Command{
		Name:  "serve",
		Usage: "Answer verdict queries over TLS",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{
				Name:  "listen, l",
				Usage: "Listen on `ADDRESS` instead of Server.ListenAddress",
				Value: "",
			},
			cli.StringFlag{
				Name:  "metrics, m",
				Usage: "Serve metrics and health checks on `ADDRESS` instead of Server.MetricsAddress",
				Value: "",
			},
		},
		Action: serve,
	}

	bootstrapCommands(command)
}

func serve(c *cli.Context) error {
	res, err := resources.InitResources(c.String("config"))
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	defer res.Close()

	cfg := res.Config.S.Server
	if c.String("listen") != "" {
		cfg.ListenAddress = c.String("listen")
	}
	if c.String("metrics") != "" {
		cfg.MetricsAddress = c.String("metrics")
	}

	action, err := verdict.ParseAction(cfg.DefaultAction)
	if err != nil {
		return cli.NewExitError(err.Error(), -1)
	}

	tlsConf, err := verdict.LoadTLSConfig(cfg.Cert, cfg.Key)
	if err != nil {
		return cli.NewExitError("Failed to load the server certificate: "+err.Error(), -1)
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := res.OpenStore(ctx)
	if err != nil {
		return cli.NewExitError("Failed to open the score store: "+err.Error(), -1)
	}
	defer store.Close()

	metrics := verdict.NewMetrics(nil)
	srv := &verdict.Server{
		Addr:          cfg.ListenAddress,
		TLS:           tlsConf,
		Store:         store,
		ThresholdFile: res.Config.S.Threshold.File,
		Whitelist:     verdict.NewWhitelist(cfg.StaticWhitelist, res.Log),
		ReadTimeout:   res.Config.R.Server.ReadTimeout,
		WriteTimeout:  res.Config.R.Server.WriteTimeout,
		DefaultAction: action,
		Log:           res.Log,
		Metrics:       metrics,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	if cfg.MetricsAddress != "" {
		admin := server.NewAdmin(cfg.MetricsAddress, metrics.Registry(), store, res.Config.S.Threshold.File, res.Log)
		g.Go(func() error {
			return admin.ListenAndServe(ctx)
		})
	}

	res.Log.WithFields(log.Fields{
		"backend":        res.Config.S.ScoreStore.Backend,
		"default_action": cfg.DefaultAction,
		"version":        res.Config.S.Version,
	}).Info("Starting verdict server")

	if err := g.Wait(); err != nil {
		return cli.NewExitError(err.Error(), -1)
	}
	res.Log.Info("Verdict server stopped")
	return nil
}

package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/activecm/mgosec"
	"github.com/blang/semver"
)

type (
	//RunningCfg holds configuration options that are parsed at run time
	RunningCfg struct {
		MongoDB MongoDBRunningCfg
		Server  ServerRunningCfg
		Client  ClientRunningCfg
		Redis   RedisRunningCfg
		HostMap HostMapRunningCfg
		Version semver.Version
	}

	//MongoDBRunningCfg holds parsed information for connecting to MongoDB
	MongoDBRunningCfg struct {
		AuthMechanismParsed mgosec.AuthMechanism
		SocketTimeout       time.Duration
		TLS                 struct {
			TLSConfig *tls.Config
		}
	}

	//ServerRunningCfg holds the parsed verdict daemon timeouts
	ServerRunningCfg struct {
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}

	//ClientRunningCfg holds the parsed query client settings
	ClientRunningCfg struct {
		Timeout   time.Duration
		TLSConfig *tls.Config
	}

	//RedisRunningCfg holds the parsed score cache settings
	RedisRunningCfg struct {
		TTL time.Duration
	}

	//HostMapRunningCfg holds the parsed resolver timeout ladder
	HostMapRunningCfg struct {
		Timeouts []time.Duration
	}
)

var (
	validScoreBackends = map[string]bool{"mongodb": true, "postgresql": true, "mysql": true, "file": true}
	validAlertDrivers  = map[string]bool{"postgresql": true, "mysql": true}
	validActions       = map[string]bool{"allow": true, "block": true}
	validOverlap       = map[string]bool{"first": true, "reject": true}
)

// initRunningConfig uses data in the static config initialize
// the passed in running config
func initRunningConfig(static *StaticCfg, running *RunningCfg) error {
	var err error

	if err = validateStaticConfig(static); err != nil {
		return err
	}

	//parse the tls configuration
	if static.MongoDB.TLS.Enabled {
		tlsConf := &tls.Config{}
		if !static.MongoDB.TLS.VerifyCertificate {
			tlsConf.InsecureSkipVerify = true
		}
		if len(static.MongoDB.TLS.CAFile) > 0 {
			tlsConf.RootCAs, err = loadCertPool(static.MongoDB.TLS.CAFile)
			if err != nil {
				return fmt.Errorf("could not read MongoDB CA file: %w", err)
			}
		}
		running.MongoDB.TLS.TLSConfig = tlsConf
	}

	//parse out the mongo authentication mechanism
	authMechanism, err := mgosec.ParseAuthMechanism(
		static.MongoDB.AuthMechanism,
	)
	if err != nil {
		authMechanism = mgosec.None
		fmt.Fprintln(os.Stderr, "[!] Could not parse MongoDB authentication mechanism")
	}
	running.MongoDB.AuthMechanismParsed = authMechanism

	// the socket timeout is given in hours
	running.MongoDB.SocketTimeout = time.Duration(static.MongoDB.SocketTimeout) * time.Hour

	if running.Server.ReadTimeout, err = time.ParseDuration(static.Server.ReadTimeout); err != nil {
		return fmt.Errorf("invalid Server.ReadTimeout: %w", err)
	}
	if running.Server.WriteTimeout, err = time.ParseDuration(static.Server.WriteTimeout); err != nil {
		return fmt.Errorf("invalid Server.WriteTimeout: %w", err)
	}
	if running.Client.Timeout, err = time.ParseDuration(static.Client.Timeout); err != nil {
		return fmt.Errorf("invalid Client.Timeout: %w", err)
	}
	if running.Redis.TTL, err = time.ParseDuration(static.Redis.TTL); err != nil {
		return fmt.Errorf("invalid Redis.TTL: %w", err)
	}

	running.HostMap.Timeouts = nil
	for _, entry := range static.HostMap.Timeouts {
		timeout, err := time.ParseDuration(entry)
		if err != nil {
			return fmt.Errorf("invalid HostMap.Timeouts entry %q: %w", entry, err)
		}
		running.HostMap.Timeouts = append(running.HostMap.Timeouts, timeout)
	}

	clientTLS := &tls.Config{InsecureSkipVerify: !static.Client.VerifyCertificate}
	if len(static.Client.CAFile) > 0 {
		clientTLS.RootCAs, err = loadCertPool(static.Client.CAFile)
		if err != nil {
			return fmt.Errorf("could not read client CA file: %w", err)
		}
	}
	running.Client.TLSConfig = clientTLS

	running.Version, err = semver.ParseTolerant(static.Version)
	if err != nil {
		// builds without version information are still usable
		running.Version = semver.Version{}
	}
	return nil
}

// validateStaticConfig fails fast on settings no component can work with
func validateStaticConfig(static *StaticCfg) error {
	if !validScoreBackends[static.ScoreStore.Backend] {
		return fmt.Errorf("unsupported ScoreStore.Backend %q", static.ScoreStore.Backend)
	}
	if !validAlertDrivers[static.AlertStore.Driver] {
		return fmt.Errorf("unsupported AlertStore.Driver %q", static.AlertStore.Driver)
	}
	if !validActions[static.Server.DefaultAction] {
		return fmt.Errorf("unsupported Server.DefaultAction %q", static.Server.DefaultAction)
	}
	if !validOverlap[static.ASN.OverlapPolicy] {
		return fmt.Errorf("unsupported ASN.OverlapPolicy %q", static.ASN.OverlapPolicy)
	}
	if static.Threshold.AlertsPerDay < 0 {
		return errors.New("Threshold.AlertsPerDay must not be negative")
	}
	if static.Threshold.AlertConfidence <= 0 || static.Threshold.AlertConfidence >= 1 {
		return errors.New("Threshold.AlertConfidence must be within (0, 1)")
	}
	if static.Threshold.DaysToAnalyze < 1 {
		return errors.New("Threshold.DaysToAnalyze must be at least 1")
	}
	if static.HostMap.BatchSize < 1 {
		return errors.New("HostMap.BatchSize must be at least 1")
	}
	if len(static.HostMap.Resolvers) == 0 {
		return errors.New("HostMap.Resolvers must not be empty")
	}
	if len(static.HostMap.Timeouts) == 0 {
		return errors.New("HostMap.Timeouts must not be empty")
	}
	return nil
}

// loadCertPool reads a PEM encoded CA bundle
func loadCertPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	return pool, nil
}

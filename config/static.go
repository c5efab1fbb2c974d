package config

import (
	"path/filepath"
	"reflect"

	yaml "gopkg.in/yaml.v2"
)

type (
	//StaticCfg is the container for other static config sections
	StaticCfg struct {
		MongoDB      MongoDBStaticCfg    `yaml:"MongoDB"`
		Log          LogStaticCfg        `yaml:"LogConfig"`
		ScoreStore   ScoreStoreStaticCfg `yaml:"ScoreStore"`
		AlertStore   AlertStoreStaticCfg `yaml:"AlertStore"`
		Redis        RedisStaticCfg      `yaml:"Redis"`
		Threshold    ThresholdStaticCfg  `yaml:"Threshold"`
		Server       ServerStaticCfg     `yaml:"Server"`
		Client       ClientStaticCfg     `yaml:"Client"`
		ASN          ASNStaticCfg        `yaml:"ASN"`
		HostMap      HostMapStaticCfg    `yaml:"HostMap"`
		Version      string              `yaml:"-"`
		ExactVersion string              `yaml:"-"`
	}

	//MongoDBStaticCfg contains the means for connecting to MongoDB
	MongoDBStaticCfg struct {
		ConnectionString string       `yaml:"ConnectionString"`
		AuthMechanism    string       `yaml:"AuthenticationMechanism"`
		SocketTimeout    int          `yaml:"SocketTimeout" default:"2"`
		TLS              TLSStaticCfg `yaml:"TLS"`
		Database         string       `yaml:"Database" default:"cydime"`
	}

	//TLSStaticCfg contains the means for connecting to MongoDB over TLS
	TLSStaticCfg struct {
		Enabled           bool   `yaml:"Enable"`
		VerifyCertificate bool   `yaml:"VerifyCertificate"`
		CAFile            string `yaml:"CAFile"`
	}

	//LogStaticCfg contains the configuration for logging
	LogStaticCfg struct {
		LogLevel  int    `yaml:"LogLevel" default:"2"`
		LogPath   string `yaml:"LogPath" default:"/var/lib/cydime/logs"`
		LogToFile bool   `yaml:"LogToFile"`
		LogToDB   bool   `yaml:"LogToDB"`
	}

	//ScoreStoreStaticCfg selects where per IP scores are read from.
	//Backend is one of mongodb, postgresql, mysql or file.
	ScoreStoreStaticCfg struct {
		Backend   string `yaml:"Backend" default:"mongodb"`
		DSN       string `yaml:"DSN"`
		ScoreFile string `yaml:"ScoreFile" default:"/var/lib/cydime/report/cydime.scores"`
	}

	//AlertStoreStaticCfg describes the external alert log used to calibrate
	//the threshold. Driver is one of postgresql or mysql.
	AlertStoreStaticCfg struct {
		Driver     string `yaml:"Driver" default:"mysql"`
		DSN        string `yaml:"DSN"`
		Table      string `yaml:"Table" default:"alerts"`
		AddrColumn string `yaml:"AddrColumn" default:"addr"`
		DateColumn string `yaml:"DateColumn" default:"date"`
	}

	//RedisStaticCfg controls the optional score cache
	RedisStaticCfg struct {
		Enabled bool   `yaml:"Enabled"`
		URL     string `yaml:"URL" default:"redis://localhost:6379/0"`
		TTL     string `yaml:"TTL" default:"1h"`
	}

	//ThresholdStaticCfg controls the daily threshold calculation
	ThresholdStaticCfg struct {
		AlertsPerDay    int     `yaml:"AlertsPerDay" default:"10"`
		AlertConfidence float64 `yaml:"AlertConfidence" default:"0.99"`
		DaysToAnalyze   int     `yaml:"DaysToAnalyze" default:"14"`
		IncludeUnscored bool    `yaml:"IncludeUnscored"`
		File            string  `yaml:"File" default:"/var/lib/cydime/threshold"`
	}

	//ServerStaticCfg controls the verdict daemon
	ServerStaticCfg struct {
		ListenAddress   string `yaml:"ListenAddress" default:"0.0.0.0:6000"`
		Key             string `yaml:"Key" default:"/etc/cydime/server.key"`
		Cert            string `yaml:"Cert" default:"/etc/cydime/server.crt"`
		StaticWhitelist string `yaml:"StaticWhitelist" default:"/etc/cydime/static_whitelist"`
		ReadTimeout     string `yaml:"ReadTimeout" default:"10s"`
		WriteTimeout    string `yaml:"WriteTimeout" default:"10s"`
		DefaultAction   string `yaml:"DefaultAction" default:"allow"`
		MetricsAddress  string `yaml:"MetricsAddress"`
	}

	//ClientStaticCfg controls the query client
	ClientStaticCfg struct {
		Address           string `yaml:"Address" default:"localhost:6000"`
		CAFile            string `yaml:"CAFile"`
		VerifyCertificate bool   `yaml:"VerifyCertificate" default:"true"`
		Timeout           string `yaml:"Timeout" default:"10s"`
	}

	//ASNStaticCfg controls the ASN annotation
	ASNStaticCfg struct {
		RangeFile     string `yaml:"RangeFile" default:"/var/lib/cydime/GeoIPASNum2.csv"`
		GeoLiteASN    string `yaml:"GeoLiteASN"`
		OverlapPolicy string `yaml:"OverlapPolicy" default:"first"`
	}

	//HostMapStaticCfg controls the reverse DNS annotation
	HostMapStaticCfg struct {
		BatchSize int      `yaml:"BatchSize" default:"20000"`
		Resolvers []string `yaml:"Resolvers" default:"[\"127.0.0.1:53\",\"8.8.8.8:53\",\"8.8.4.4:53\"]"`
		Timeouts  []string `yaml:"Timeouts" default:"[\"1s\",\"3s\",\"5s\",\"10s\"]"`
	}
)

// parseStaticConfig parses the yaml contents of a config file over the
// given (possibly defaulted) static config
func parseStaticConfig(cfgFile []byte, config *StaticCfg) error {
	err := yaml.Unmarshal(cfgFile, config)
	if err != nil {
		return err
	}

	// expand env variables, config is a pointer
	// so we have to call elem on the reflect value
	expandConfig(reflect.ValueOf(config).Elem())

	// clean all filepaths
	for _, path := range []*string{
		&config.Log.LogPath,
		&config.ScoreStore.ScoreFile,
		&config.Threshold.File,
		&config.Server.Key,
		&config.Server.Cert,
		&config.Server.StaticWhitelist,
		&config.ASN.RangeFile,
		&config.ASN.GeoLiteASN,
	} {
		if *path != "" {
			*path = filepath.Clean(*path)
		}
	}

	// grab the version constants set by the build process
	config.Version = Version
	config.ExactVersion = ExactVersion

	return nil
}

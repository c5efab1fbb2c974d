package config

const testConfig = `
MongoDB:
    ConnectionString: null
    AuthenticationMechanism: null
    SocketTimeout: 2
    TLS:
        Enable: false
        VerifyCertificate: false
        CAFile: null
    Database: cydime-test
LogConfig:
    LogLevel: 3
    LogPath: null
    LogToFile: false
    LogToDB: false
ScoreStore:
    Backend: file
Threshold:
    AlertsPerDay: 1
    AlertConfidence: 0.5
    DaysToAnalyze: 2
Server:
    ListenAddress: 127.0.0.1:0
    ReadTimeout: 2s
    WriteTimeout: 2s
HostMap:
    BatchSize: 4
    Resolvers: ["127.0.0.1:53"]
    Timeouts: ["100ms", "200ms"]
`

// LoadTestingConfig loads the hard coded testing config
func LoadTestingConfig() (*Config, error) {
	config, err := loadConfigBytes([]byte(testConfig))
	if err != nil {
		return nil, err
	}

	config.S.Version = "v0.0.0+testing"
	config.S.ExactVersion = "v0.0.0+testing"

	return config, nil
}

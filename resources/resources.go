package resources

import (
	"context"
	"fmt"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/database"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/score"
	log "github.com/sirupsen/logrus"
)

type (
	// Resources provides a data structure for passing system Resources
	Resources struct {
		Config *config.Config
		Log    *log.Logger
		// DB is nil unless a MongoDB connection string is configured
		DB *database.DB
	}
)

// InitResources grabs the configuration file and intitializes the configuration data
// returning a *Resources object which has all of the necessary configuration information
func InitResources(userConfig string) (*Resources, error) {
	conf, err := config.LoadConfig(userConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newResources(conf)
}

func newResources(conf *config.Config) (*Resources, error) {
	// Fire up the logging system
	logger := initLogger(&conf.S.Log)

	if conf.S.Log.LogToFile {
		if err := addFileLogger(logger, conf.S.Log.LogPath); err != nil {
			return nil, fmt.Errorf("failed to open log directory: %w", err)
		}
	}

	r := &Resources{
		Config: conf,
		Log:    logger,
	}

	// MongoDB is optional unless it backs the score store
	if conf.S.MongoDB.ConnectionString != "" {
		db, err := database.NewDB(conf, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		r.DB = db

		//Begin logging to the database
		if conf.S.Log.LogToDB {
			if err := addMongoLogger(logger, db, conf.T.Log.LogTable); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set up database logging: %w", err)
			}
		}
	} else if conf.S.ScoreStore.Backend == "mongodb" {
		logger.Warn("The mongodb score store is selected but no connection string is configured")
	}

	return r, nil
}

// OpenStore opens the configured score store
func (r *Resources) OpenStore(ctx context.Context) (score.Store, error) {
	return score.Open(ctx, r.Config, r.DB, r.Log)
}

// Close releases the database connection
func (r *Resources) Close() {
	if r.DB != nil {
		r.DB.Close()
	}
}

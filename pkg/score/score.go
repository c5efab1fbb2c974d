package score

import (
	"context"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/database"
	log "github.com/sirupsen/logrus"
)

// Open creates the score store selected by ScoreStore.Backend, wrapped in a
// Redis cache when one is enabled. db is only needed for the mongodb backend.
func Open(ctx context.Context, conf *config.Config, db *database.DB, logger *log.Logger) (Store, error) {
	var store Store

	backend := conf.S.ScoreStore.Backend
	switch backend {
	case "mongodb":
		if db == nil {
			return nil, database.ErrNoConnectionString
		}
		store = NewMongoRepository(db, conf, logger)
	case "postgresql", "mysql":
		sqlDB, err := database.OpenSQL(backend, conf.S.ScoreStore.DSN)
		if err != nil {
			return nil, err
		}
		store, err = NewSQLRepository(sqlDB, backend, conf.T.Score.ScoreTable, logger)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
	case "file":
		fileStore, err := OpenFileStore(conf.S.ScoreStore.ScoreFile)
		if err != nil {
			return nil, err
		}
		if fileStore.Len() == 0 {
			logger.WithFields(log.Fields{
				"path": conf.S.ScoreStore.ScoreFile,
			}).Warn("Score file is missing or empty")
		}
		store = fileStore
	default:
		return nil, ErrUnsupportedBackend(backend)
	}

	if !conf.S.Redis.Enabled {
		return store, nil
	}

	client, err := NewRedisClient(ctx, conf.S.Redis.URL)
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.WithFields(log.Fields{
		"ttl": conf.R.Redis.TTL.String(),
	}).Debug("Caching scores in Redis")
	return NewCached(store, client, conf.R.Redis.TTL, logger), nil
}

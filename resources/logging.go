package resources

import (
	"os"
	"path"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/database"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
	"github.com/activecm/mgorus"
	"github.com/globalsign/mgo"
	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
)

// initLogger creates the logger writing to stderr, stdout is left to
// command output
func initLogger(logConfig *config.LogStaticCfg) *log.Logger {
	var logs = &log.Logger{}

	logs.Formatter = new(log.TextFormatter)

	logs.Out = os.Stderr
	logs.Hooks = make(log.LevelHooks)

	switch logConfig.LogLevel {
	case 3:
		logs.Level = log.DebugLevel
	case 2:
		logs.Level = log.InfoLevel
	case 1:
		logs.Level = log.WarnLevel
	default:
		logs.Level = log.ErrorLevel
	}
	return logs
}

// addFileLogger writes each level to its own file under a directory named
// for the current run
func addFileLogger(logger *log.Logger, logPath string) error {
	logPath = path.Join(logPath, time.Now().Format(util.TimeFormat))
	if err := os.MkdirAll(logPath, 0755); err != nil {
		return err
	}

	logger.Hooks.Add(lfshook.NewHook(lfshook.PathMap{
		log.DebugLevel: path.Join(logPath, "debug.log"),
		log.InfoLevel:  path.Join(logPath, "info.log"),
		log.WarnLevel:  path.Join(logPath, "warn.log"),
		log.ErrorLevel: path.Join(logPath, "error.log"),
		log.FatalLevel: path.Join(logPath, "fatal.log"),
		log.PanicLevel: path.Join(logPath, "panic.log"),
	}, nil))
	return nil
}

// addMongoLogger stores log entries in a MongoDB collection
func addMongoLogger(logger *log.Logger, db *database.DB, collection string) error {
	ssn := db.Session.Copy()
	defer ssn.Close()

	err := ssn.DB(db.GetSelectedDB()).C(collection).Create(&mgo.CollectionInfo{})
	if err != nil {
		//check if create failed because collection already exists
		//https://github.com/mongodb/mongo/blob/master/src/mongo/base/error_codes.err
		queryErr, ok := err.(*mgo.QueryError)
		if !ok || queryErr.Code != 48 {
			return err
		}
	}

	logger.Hooks.Add(
		mgorus.NewHookerFromSession(
			db.Session, db.GetSelectedDB(), collection,
		),
	)
	return nil
}

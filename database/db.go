package database

import (
	"errors"
	"fmt"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
	"github.com/activecm/mgosec"
	"github.com/blang/semver"
	"github.com/globalsign/mgo"
	log "github.com/sirupsen/logrus"
)

//MinMongoDBVersion is the lower, inclusive bound on the
//versions of MongoDB compatible with cydime
var MinMongoDBVersion = semver.Version{
	Major: 3,
	Minor: 6,
	Patch: 0,
}

//MaxMongoDBVersion is the upper, exclusive bound on the
//versions of MongoDB compatible with cydime
var MaxMongoDBVersion = semver.Version{
	Major: 6,
	Minor: 0,
	Patch: 0,
}

//ErrNoConnectionString is returned when MongoDB is required but not configured
var ErrNoConnectionString = errors.New("no MongoDB connection string configured")

// DB is the workhorse container for messing with the database
type DB struct {
	Session  *mgo.Session
	log      *log.Logger
	selected string
}

//NewDB constructs a new DB struct
func NewDB(conf *config.Config, log *log.Logger) (*DB, error) {
	if conf.S.MongoDB.ConnectionString == "" {
		return nil, ErrNoConnectionString
	}

	// Jump into the requested database
	session, err := connectToMongoDB(conf, log)
	if err != nil {
		return nil, err
	}
	session.SetSocketTimeout(conf.R.MongoDB.SocketTimeout)
	session.SetSyncTimeout(conf.R.MongoDB.SocketTimeout)
	session.SetCursorTimeout(0)

	return &DB{
		Session:  session,
		log:      log,
		selected: conf.S.MongoDB.Database,
	}, nil
}

//NewDBFromSession wraps an existing session, selecting database db
func NewDBFromSession(session *mgo.Session, db string, log *log.Logger) *DB {
	return &DB{
		Session:  session,
		log:      log,
		selected: db,
	}
}

//connectToMongoDB connects to MongoDB possibly with authentication and TLS
func connectToMongoDB(conf *config.Config, logger *log.Logger) (*mgo.Session, error) {
	connString := conf.S.MongoDB.ConnectionString
	authMechanism := conf.R.MongoDB.AuthMechanismParsed
	tlsConfig := conf.R.MongoDB.TLS.TLSConfig

	var sess *mgo.Session
	var err error
	if conf.S.MongoDB.TLS.Enabled {
		sess, err = mgosec.Dial(connString, authMechanism, tlsConfig)
	} else {
		sess, err = mgosec.DialInsecure(connString, authMechanism)
	}
	if err != nil {
		return sess, err
	}

	buildInfo, err := sess.BuildInfo()
	if err != nil {
		sess.Close()
		return nil, err
	}

	semVersion, err := semver.ParseTolerant(buildInfo.Version)
	if err != nil {
		sess.Close()
		return nil, err
	}

	if !(semVersion.GE(MinMongoDBVersion) && semVersion.LT(MaxMongoDBVersion)) {
		sess.Close()
		return nil, fmt.Errorf(
			"unsupported version of MongoDB. %s not within [%s, %s)",
			semVersion.String(),
			MinMongoDBVersion.String(),
			MaxMongoDBVersion.String(),
		)
	}

	logger.WithFields(log.Fields{
		"version": semVersion.String(),
	}).Debug("Connected to MongoDB")

	return sess, nil
}

//SelectDB selects the database holding the score collections
func (d *DB) SelectDB(db string) {
	d.selected = db
}

//GetSelectedDB retrieves the currently selected database
func (d *DB) GetSelectedDB() string {
	return d.selected
}

//CollectionExists returns true if collection exists in the currently
//selected database
func (d *DB) CollectionExists(table string) bool {
	ssn := d.Session.Copy()
	defer ssn.Close()
	coll, err := ssn.DB(d.selected).CollectionNames()
	if err != nil {
		d.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Failed collection name lookup")
		return false
	}
	for _, name := range coll {
		if name == table {
			return true
		}
	}
	return false
}

//CreateCollection creates a new collection in the currently selected
//database with the required indexes. Existing collections are left alone.
func (d *DB) CreateCollection(name string, indexes []mgo.Index) error {
	if d.CollectionExists(name) {
		return nil
	}

	// Make a copy of the current session
	session := d.Session.Copy()
	defer session.Close()

	d.log.Debug("Building collection: ", name)

	err := session.DB(d.selected).C(name).Create(
		&mgo.CollectionInfo{},
	)

	// Make sure it actually got created
	if err != nil {
		return err
	}

	collection := session.DB(d.selected).C(name)
	for _, index := range indexes {
		err := collection.EnsureIndex(index)
		if err != nil {
			return err
		}
	}

	return nil
}

//Ping checks that the MongoDB server is reachable
func (d *DB) Ping() error {
	ssn := d.Session.Copy()
	defer ssn.Close()
	return ssn.Ping()
}

//Close closes the underlying session
func (d *DB) Close() {
	d.Session.Close()
}

package score

import (
	"context"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/database"
	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	log "github.com/sirupsen/logrus"
)

// scoreDoc is the on disk layout of the score collection
type scoreDoc struct {
	IPAddr int64   `bson:"ip_addr"`
	Score  float64 `bson:"score"`
}

type mongoRepo struct {
	database *database.DB
	config   *config.Config
	log      *log.Logger
}

// NewMongoRepository creates a score store over the configured score collection
func NewMongoRepository(db *database.DB, conf *config.Config, logger *log.Logger) Store {
	return &mongoRepo{
		database: db,
		config:   conf,
		log:      logger,
	}
}

// CreateIndexes builds the score collection and its ip_addr index
func (r *mongoRepo) CreateIndexes() error {
	indexes := []mgo.Index{
		{Key: []string{"ip_addr"}, Unique: true},
	}
	return r.database.CreateCollection(r.config.T.Score.ScoreTable, indexes)
}

// Score implements Store
func (r *mongoRepo) Score(ctx context.Context, key uint32) (float64, bool, error) {
	ssn := r.database.Session.Copy()
	defer ssn.Close()

	var doc scoreDoc
	err := ssn.DB(r.database.GetSelectedDB()).C(r.config.T.Score.ScoreTable).
		Find(bson.M{"ip_addr": int64(key)}).One(&doc)
	if err == mgo.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return doc.Score, true, nil
}

// Replace implements Loader
func (r *mongoRepo) Replace(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := r.CreateIndexes(); err != nil {
		return err
	}

	ssn := r.database.Session.Copy()
	defer ssn.Close()
	coll := ssn.DB(r.database.GetSelectedDB()).C(r.config.T.Score.ScoreTable)

	if _, err := coll.RemoveAll(nil); err != nil {
		return err
	}

	// insert in chunks to stay below the maximum bulk message size
	const chunkSize = 1000
	for start := 0; start < len(entries); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		bulk := coll.Bulk()
		bulk.Unordered()
		for _, entry := range entries[start:end] {
			bulk.Upsert(
				bson.M{"ip_addr": int64(entry.Key)},
				bson.M{"$set": scoreDoc{IPAddr: int64(entry.Key), Score: entry.Score}},
			)
		}
		if _, err := bulk.Run(); err != nil {
			return err
		}
	}

	r.log.WithFields(log.Fields{
		"collection": r.config.T.Score.ScoreTable,
		"count":      len(entries),
	}).Info("Replaced scores")
	return nil
}

// Ping implements Pinger
func (r *mongoRepo) Ping(ctx context.Context) error {
	return r.database.Ping()
}

// Close implements Store. The session is owned by the resource bundle.
func (r *mongoRepo) Close() error {
	return nil
}

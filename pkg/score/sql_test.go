// +build integration

package score

import (
	"context"
	"os"
	"testing"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/database"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The SQL backends are exercised against the servers named by
// CYDIME_TEST_POSTGRES_DSN and CYDIME_TEST_MYSQL_DSN
func TestSQLReplaceAndScore(t *testing.T) {
	testCases := []struct {
		engine string
		env    string
	}{
		{"postgresql", "CYDIME_TEST_POSTGRES_DSN"},
		{"mysql", "CYDIME_TEST_MYSQL_DSN"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.engine, func(t *testing.T) {
			dsn := os.Getenv(testCase.env)
			if dsn == "" {
				t.Skip(testCase.env + " is not set")
			}

			db, err := database.OpenSQL(testCase.engine, dsn)
			require.NoError(t, err)

			table := "scores_" + uuid.New().String()[:8]
			store, err := NewSQLRepository(db, testCase.engine, table, log.New())
			require.NoError(t, err)
			defer store.Close()
			defer db.Exec("DROP TABLE " + table)

			ctx := context.Background()
			loader := store.(Loader)
			require.NoError(t, loader.Replace(ctx, []Entry{{Key: 1, Score: 0.5}, {Key: 4294967295, Score: 0.75}}))

			s, ok, err := store.Score(ctx, 4294967295)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 0.75, s)

			require.NoError(t, loader.Replace(ctx, []Entry{{Key: 2, Score: 0.25}}))
			_, ok, err = store.Score(ctx, 1)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("CYDIME_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CYDIME_TEST_REDIS_URL is not set")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)

	backing := NewMemoryStore([]Entry{{Key: 7, Score: 0.5}})
	cached := NewCached(backing, client, 0, log.New())
	defer cached.Close()
	require.NoError(t, cached.Flush(ctx))

	s, ok, err := cached.Score(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.5, s)

	// the cached value survives until the cache is flushed
	backing.load([]Entry{{Key: 7, Score: 0.9}})
	s, _, _ = cached.Score(ctx, 7)
	assert.Equal(t, 0.5, s)

	require.NoError(t, cached.Replace(ctx, []Entry{{Key: 7, Score: 0.8}}))
	s, _, _ = cached.Score(ctx, 7)
	assert.Equal(t, 0.8, s)

	_, ok, err = cached.Score(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok)
}

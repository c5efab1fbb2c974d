package alert

import (
	"testing"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLSourceQuery(t *testing.T) {
	testCases := []struct {
		driver string
		query  string
		msg    string
	}{
		{"mysql", "SELECT DISTINCT src FROM ids_alerts WHERE ts >= ? AND ts < ?", "mysql placeholders"},
		{"postgresql", "SELECT DISTINCT src FROM ids_alerts WHERE ts >= $1 AND ts < $2", "postgres placeholders"},
	}

	for _, testCase := range testCases {
		source, err := NewSQLSource(nil, config.AlertStoreStaticCfg{
			Driver:     testCase.driver,
			Table:      "ids_alerts",
			AddrColumn: "src",
			DateColumn: "ts",
		})
		require.NoError(t, err, testCase.msg)
		assert.Equal(t, testCase.query, source.Query(), testCase.msg)
	}
}

func TestNewSQLSourceRejectsIdentifiers(t *testing.T) {
	_, err := NewSQLSource(nil, config.AlertStoreStaticCfg{
		Driver:     "mysql",
		Table:      "alerts; DROP TABLE alerts",
		AddrColumn: "addr",
		DateColumn: "date",
	})
	assert.Error(t, err)
}

func TestOpenWithoutDSN(t *testing.T) {
	_, err := Open(config.AlertStoreStaticCfg{Driver: "mysql", Table: "alerts", AddrColumn: "addr", DateColumn: "date"})
	assert.Error(t, err)
}

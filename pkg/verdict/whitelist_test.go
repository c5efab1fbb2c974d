package verdict

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhitelist(t *testing.T) {
	input := strings.Join([]string{
		"# hosts allowed to skip scoring",
		"",
		"10.1.1.1",
		"  172.16.0.0/12  ",
		"not-an-address",
		"2001:db8::/32",
	}, "\n")

	set, invalid, err := ParseWhitelist(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"not-an-address"}, invalid)
	assert.Equal(t, 3, set.Len())

	testCases := []struct {
		ip     string
		listed bool
		msg    string
	}{
		{"10.1.1.1", true, "bare address"},
		{"10.1.1.2", false, "neighbor of a bare address"},
		{"172.31.255.255", true, "end of a block"},
		{"172.32.0.0", false, "just past a block"},
		{"garbage", false, "unparseable query"},
	}

	for _, testCase := range testCases {
		assert.Equal(t, testCase.listed, set.Contains(testCase.ip), testCase.msg)
	}
}

func TestNilSet(t *testing.T) {
	var set *Set
	assert.False(t, set.Contains("10.0.0.1"))
	assert.Equal(t, 0, set.Len())
}

func TestWhitelistReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static_whitelist")
	require.NoError(t, os.WriteFile(path, []byte("10.0.0.1\n"), 0644))

	w := NewWhitelist(path, log.New())
	assert.True(t, w.Load().Contains("10.0.0.1"))
	assert.False(t, w.Load().Contains("10.0.0.2"))

	// the size changes even when the modification time does not
	require.NoError(t, os.WriteFile(path, []byte("10.0.0.2\n10.0.0.3\n"), 0644))
	set := w.Load()
	assert.False(t, set.Contains("10.0.0.1"))
	assert.True(t, set.Contains("10.0.0.2"))

	require.NoError(t, os.Remove(path))
	assert.Equal(t, 0, w.Load().Len(), "a missing file is an empty whitelist")

	require.NoError(t, os.WriteFile(path, []byte("10.0.0.4\n"), 0644))
	assert.True(t, w.Load().Contains("10.0.0.4"), "the file is picked up again once restored")
}

func TestWhitelistWithoutPath(t *testing.T) {
	w := NewWhitelist("", log.New())
	assert.Equal(t, 0, w.Load().Len())
}

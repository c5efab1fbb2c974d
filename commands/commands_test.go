package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/score"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/threshold"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/verdict"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, command := range Commands() {
		assert.False(t, names[command.Name], "duplicate command %s", command.Name)
		names[command.Name] = true
	}

	for _, name := range []string{"asn-map", "host-map", "threshold", "serve", "query", "load-scores", "test-config", "version"} {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestParseIPs(t *testing.T) {
	logger := log.New()
	logger.Out = &bytes.Buffer{}

	keys := parseIPs([]string{"10.0.0.1", "::1", "10.0.0.256", "0.0.0.1"}, logger)
	assert.Equal(t, []uint32{0x0A000001, 1}, keys)
}

func TestReadIPs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ips.csv")
	require.NoError(t, os.WriteFile(path, []byte("ip,count\n10.0.0.1,4\n# note\n10.0.0.2\n"), 0644))

	ips, err := readIPs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, ips)

	_, err = readIPs(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestReadEntries(t *testing.T) {
	dir := t.TempDir()
	scoreFile := filepath.Join(dir, "cydime.scores")
	labelFile := filepath.Join(dir, "labels")
	require.NoError(t, os.WriteFile(scoreFile, []byte("10.0.0.1,0.25\n10.0.0.2,0.5\n"), 0644))
	require.NoError(t, os.WriteFile(labelFile, []byte("1,10.0.0.2\n"), 0644))

	scores, err := readEntries(scoreFile, score.ParseScoreFile)
	require.NoError(t, err)
	labels, err := readEntries(labelFile, score.ParseLabelFile)
	require.NoError(t, err)

	merged := score.Merge(labels, scores)
	assert.Equal(t, []score.Entry{{Key: 0x0A000002, Score: 1}, {Key: 0x0A000001, Score: 0.25}}, merged)
}

func TestShowThresholdCsv(t *testing.T) {
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	result := threshold.Result{
		Value: 0.625,
		Date:  day,
		Mu:    12.5,
		Rank:  12,
		Days:  []time.Time{day, day.AddDate(0, 0, -1)},
		Contributions: []threshold.Contribution{
			{Samples: 20, Score: 0.75, Counted: true},
			{Samples: 3},
		},
	}

	var out bytes.Buffer
	require.NoError(t, showThresholdCsv(&out, result))
	assert.Equal(t, "Date,Threshold,Mu,Rank,Days\n2024-03-02,0.625,12.5,12,2\n", out.String())

	out.Reset()
	require.NoError(t, showThresholdReport(&out, result))
	assert.Contains(t, out.String(), "2024-03-01")
	assert.Contains(t, out.String(), "Threshold: 0.625")
}

func TestShowVerdicts(t *testing.T) {
	responses := []verdict.Response{
		{Query: "10.0.0.1", Verdict: verdict.Malicious},
		{Query: "bogus", Verdict: verdict.Malformed},
	}

	var out bytes.Buffer
	require.NoError(t, showVerdictCsv(&out, responses))
	assert.Equal(t, "10.0.0.1,1\nbogus,-1\n", out.String())

	out.Reset()
	require.NoError(t, showVerdictJSON(&out, responses))
	assert.Equal(t, "{\"query\":\"10.0.0.1\",\"verdict\":1}\n{\"query\":\"bogus\",\"verdict\":-1}\n", out.String())

	out.Reset()
	require.NoError(t, showVerdictReport(&out, responses))
	assert.Contains(t, out.String(), "malformed query")
}

package commands

import (
	"fmt"
	"testing"

	"github.com/blang/semver"
	"github.com/google/go-github/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCompare(t *testing.T) {

	Base, _ := semver.Parse("1.1.1")
	Major, _ := semver.Parse("2.3.4")
	Minor, _ := semver.Parse("1.2.3")
	Patch, _ := semver.Parse("1.1.9")

	assert.Equal(t, 0, versionDiffIndex(Major, Base),
		"Should return new Major")
	assert.Equal(t, 1, versionDiffIndex(Minor, Base),
		"Should return new Minor")
	assert.Equal(t, 2, versionDiffIndex(Patch, Base),
		"Should return new Patch")

}

func TestInformUser(t *testing.T) {

	Base, _ := semver.Parse("1.1.1")
	Major, _ := semver.Parse("2.3.4")
	assert.Equal(t,
		fmt.Sprintf(informFmtStr, "Major", "2.3.4"),
		informUser(Base, Major),
		"Should be identical strings")
}

func TestNewestTag(t *testing.T) {
	refs := []*github.Reference{
		{Ref: github.String("refs/tags/v1.10.0")},
		{Ref: github.String("refs/tags/v1.9.2")},
		{Ref: github.String("refs/tags/vnext")},
		{Ref: nil},
	}

	newest, err := newestTag(refs)
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", newest.String(), "tags compare as versions, not strings")

	_, err = newestTag(nil)
	assert.Error(t, err)
}

package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
	"github.com/blang/semver"
	"github.com/google/go-github/github"
	"github.com/urfave/cli"
)

// Strings used for informing the user of a new version
var informFmtStr = "\nThere's a new %s version of Cydime %s available at:\nhttps://github.com/Ames-Laboratory-Cyber-Group/Cydime/releases\n"
var versions = []string{"Major", "Minor", "Patch"}

func init() {
	command := cli.Command{
		Name:  "version",
		Usage: "Show the Cydime version",
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:  "check",
				Usage: "Check GitHub for a newer release",
			},
		},
		Action: showVersion,
	}

	bootstrapCommands(command)
}

func showVersion(c *cli.Context) error {
	fmt.Printf("%s version %s\n", c.App.Name, config.Version)
	if config.ExactVersion != config.Version {
		fmt.Printf("commit %s\n", config.ExactVersion)
	}

	if !c.Bool("check") {
		return nil
	}

	local, err := semver.ParseTolerant(config.Version)
	if err != nil {
		return cli.NewExitError("This build does not carry a release version", -1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	remote, err := getRemoteVersion(ctx)
	if err != nil {
		return cli.NewExitError("Failed to check for a new version: "+err.Error(), -1)
	}

	if remote.GT(local) {
		fmt.Print(informUser(local, remote))
	}
	return nil
}

// versionDiffIndex returns the first index where v1 is greater than v2
func versionDiffIndex(v1 semver.Version, v2 semver.Version) int {
	if v1.Major > v2.Major {
		return 0
	}
	if v1.Minor > v2.Minor {
		return 1
	}
	return 2
}

// getRemoteVersion finds the newest release tag on GitHub
func getRemoteVersion(ctx context.Context) (semver.Version, error) {
	client := github.NewClient(nil)
	refs, _, err := client.Git.GetRefs(ctx, "Ames-Laboratory-Cyber-Group", "Cydime", "refs/tags/v")
	if err != nil {
		return semver.Version{}, err
	}
	return newestTag(refs)
}

// newestTag picks the highest semantic version among tag refs
func newestTag(refs []*github.Reference) (semver.Version, error) {
	var newest semver.Version
	found := false
	for _, ref := range refs {
		if ref == nil || ref.Ref == nil {
			continue
		}
		v, err := semver.ParseTolerant(strings.TrimPrefix(*ref.Ref, "refs/tags/"))
		if err != nil {
			continue
		}
		if !found || v.GT(newest) {
			newest, found = v, true
		}
	}
	if !found {
		return semver.Version{}, fmt.Errorf("no release tags found")
	}
	return newest, nil
}

// informUser assembles a notice for the user informing them of an upgrade
func informUser(local semver.Version, remote semver.Version) string {
	return fmt.Sprintf(informFmtStr,
		versions[versionDiffIndex(remote, local)],
		fmt.Sprint(remote))
}

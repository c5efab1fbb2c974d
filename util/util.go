package util

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

//TimeFormat stores a correctly formatted timestamp
const TimeFormat string = "2006-01-02-T15:04:05-0700"

//DayFormat stores a correctly formatted timestamp for the day
const DayFormat string = "2006-01-02"

// Exists returns true if file or directory exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	return true
}

//Max returns the larger of two integers
func Max(a int, b int) int {
	if a > b {
		return a
	}
	return b
}

// WriteFileAtomic replaces the file at path with data. The data is written to
// a temporary file in the same directory, synced and renamed over the target
// so readers observe either the old or the new contents.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// the temp file is only left behind if something failed
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return err
	}
	err = os.Rename(tmpName, path)
	return err
}

// ReadIPList reads the leading comma separated field of every line which
// begins with a digit. Header lines, comments and blank lines are skipped.
func ReadIPList(r io.Reader) ([]string, error) {
	var ips []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] < '0' || line[0] > '9' {
			continue
		}
		ips = append(ips, strings.TrimSpace(strings.SplitN(line, ",", 2)[0]))
	}
	return ips, scanner.Err()
}

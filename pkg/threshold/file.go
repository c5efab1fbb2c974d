package threshold

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/util"
)

// ErrEmptyFile is returned when the threshold file holds no value
var ErrEmptyFile = errors.New("threshold file is empty")

// WriteFile atomically replaces the threshold file with a single line
// holding value
func WriteFile(path string, value float64) error {
	line := strconv.FormatFloat(value, 'g', -1, 64) + "\n"
	return util.WriteFileAtomic(path, []byte(line), 0644)
}

// ReadFile reads the value written by WriteFile
func ReadFile(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, ErrEmptyFile
	}
	return strconv.ParseFloat(text, 64)
}

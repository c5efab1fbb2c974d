package resources

import (
	"testing"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
)

// InitTestResources creates a resource bundle from the testing config.
// configure may adjust the config before the resources are built.
func InitTestResources(t *testing.T, configure func(*config.Config)) *Resources {
	conf, err := config.LoadTestingConfig()
	if err != nil {
		t.Fatal(err)
	}
	if configure != nil {
		configure(conf)
	}

	r, err := newResources(conf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)
	return r
}

package archive

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Driver names accepted by REQCORE_ARCHIVE_DRIVER.
const (
	DriverMemory     = "memory"
	DriverFilesystem = "fs"
	DriverS3         = "s3"
)

// Open selects an archive store from the environment. An unset driver falls
// back to the in-memory store, which is enough for single-process use.
//
//	REQCORE_ARCHIVE_DRIVER=memory|fs|s3
//	REQCORE_ARCHIVE_DIR=<root> (fs driver, default ./archive)
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("REQCORE_ARCHIVE_DRIVER")))
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverFilesystem:
		dir := os.Getenv("REQCORE_ARCHIVE_DIR")
		if dir == "" {
			dir = "archive"
		}
		return NewFilesystem(dir)
	case DriverS3:
		return OpenS3FromEnv(ctx)
	default:
		return nil, fmt.Errorf("archive: unknown driver %q", driver)
	}
}

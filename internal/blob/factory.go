package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Blob environment variables.
const (
	EnvDriver = "PHARMACORE_BLOB_DRIVER"
	EnvFSRoot = "PHARMACORE_BLOB_FS_ROOT"
)

// Open selects a Store implementation using environment variables.
//
//	PHARMACORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	PHARMACORE_BLOB_FS_ROOT: directory root when driver=fs (default ./backups)
//	(S3 variables are documented in internal/infra/blob/s3)
func Open(ctx context.Context) (Store, error) {
	return OpenWith(ctx, Driver(strings.ToLower(strings.TrimSpace(os.Getenv(EnvDriver)))), os.Getenv(EnvFSRoot))
}

// OpenWith selects a Store from explicit values. S3 settings still come
// from the environment.
func OpenWith(ctx context.Context, driver Driver, fsRoot string) (Store, error) {
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(fsRoot)
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

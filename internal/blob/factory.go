package blob

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a blob backend.
type Config struct {
	Driver string // fs|s3|memory (default fs)
	FSRoot string // root directory when Driver is fs
	S3     S3Config
}

// Open constructs the configured blob.Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

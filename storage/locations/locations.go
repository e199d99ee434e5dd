package locations

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"tributary.dev/tributary/telemetry"
)

// New creates a StorageLocation from the given path. Returns an S3Location
// if the path is an S3 URI, otherwise a local file system location.
func New(path string) (StorageLocation, error) {
	if strings.HasPrefix(path, "s3://") {
		cfg, err := config.LoadDefaultConfig(context.Background(),
			config.WithHTTPClient(&http.Client{
				Transport: telemetry.NewMetricsTransport("s3", nil),
			}))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}

		return NewS3Location(s3.NewFromConfig(cfg), path)
	}

	return NewLocalDirectory(path), nil
}

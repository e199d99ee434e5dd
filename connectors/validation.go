package connectors

import (
	"fmt"
	"net/url"
)

// ValidateStorageURL checks that a source or sink location is a plain path,
// a file:// URL, or an s3:// URL.
func ValidateStorageURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid storage URL: %s", rawURL)
	}
	switch u.Scheme {
	case "", "file", "s3":
		return nil
	default:
		return fmt.Errorf("storage URL must be a path, 'file://', or 's3://' (scheme is %s)", u.Scheme)
	}
}

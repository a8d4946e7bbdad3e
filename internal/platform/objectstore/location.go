package objectstore

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	virtualHostedRegional = regexp.MustCompile(`^([^.]+)\.s3[.-][^.]+\.amazonaws\.com$`)
	virtualHostedGlobal   = regexp.MustCompile(`^([^.]+)\.s3\.amazonaws\.com$`)
	pathStyleRegional     = regexp.MustCompile(`s3[.-][^.]+\.amazonaws\.com$`)
)

// Location identifies an object in a bucket.
type Location struct {
	Bucket string
	Key    string
}

// ParseBucketKey extracts the bucket and key from a virtual-hosted or
// path-style S3 URL. It reports false for hosts that are not S3 endpoints.
func ParseBucketKey(raw string) (Location, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, false
	}

	host := strings.ToLower(u.Hostname())
	path := strings.TrimLeft(u.Path, "/")

	for _, re := range []*regexp.Regexp{virtualHostedRegional, virtualHostedGlobal} {
		if m := re.FindStringSubmatch(host); m != nil {
			return Location{Bucket: m[1], Key: path}, true
		}
	}

	if strings.Contains(host, "s3.amazonaws.com") || pathStyleRegional.MatchString(host) {
		bucket, key, _ := strings.Cut(path, "/")
		if bucket == "" {
			return Location{}, false
		}
		return Location{Bucket: bucket, Key: key}, true
	}

	return Location{}, false
}

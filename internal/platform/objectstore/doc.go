// Package objectstore validates audio source URLs and, optionally, probes
// object storage to confirm that the referenced object exists.
//
// Validation is purely syntactic: the URL must use https and, when a bucket
// allow-list is configured, address that bucket either virtual-hosted style
// (bucket.s3.region.amazonaws.com/key) or path style
// (s3.region.amazonaws.com/bucket/key). Probing issues an S3 HeadObject
// request through the AWS SDK.
package objectstore

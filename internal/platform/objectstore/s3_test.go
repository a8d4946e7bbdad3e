package objectstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBucketKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		url    string
		want   Location
		wantOK bool
	}{
		{
			"virtual-hosted regional",
			"https://mybucket.s3.us-east-1.amazonaws.com/path/to/file.wav",
			Location{Bucket: "mybucket", Key: "path/to/file.wav"},
			true,
		},
		{
			"virtual-hosted dash region",
			"https://mybucket.s3-eu-west-1.amazonaws.com/file.wav",
			Location{Bucket: "mybucket", Key: "file.wav"},
			true,
		},
		{
			"virtual-hosted global",
			"https://mybucket.s3.amazonaws.com/file.wav",
			Location{Bucket: "mybucket", Key: "file.wav"},
			true,
		},
		{
			"path style",
			"https://s3.amazonaws.com/mybucket/path/to/file.wav",
			Location{Bucket: "mybucket", Key: "path/to/file.wav"},
			true,
		},
		{
			"path style regional",
			"https://s3.us-west-2.amazonaws.com/mybucket/file.wav",
			Location{Bucket: "mybucket", Key: "file.wav"},
			true,
		},
		{
			"escaped key is decoded",
			"https://mybucket.s3.amazonaws.com/my%20file.wav",
			Location{Bucket: "mybucket", Key: "my file.wav"},
			true,
		},
		{"path style without bucket", "https://s3.amazonaws.com/", Location{}, false},
		{"non-s3 host", "https://example.com/file.wav", Location{}, false},
		{"garbage", "https://[::1", Location{}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseBucketKey(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeHeadObject struct {
	input *s3.HeadObjectInput
	err   error
}

func (f *fakeHeadObject) HeadObjectWithContext(
	_ aws.Context,
	input *s3.HeadObjectInput,
	_ ...request.Option,
) (*s3.HeadObjectOutput, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3ProberProbe(t *testing.T) {
	t.Parallel()

	t.Run("existing object", func(t *testing.T) {
		t.Parallel()
		client := &fakeHeadObject{}
		p := NewS3Prober(client, nil)

		check := p.Probe(context.Background(), "https://audio.s3.us-east-1.amazonaws.com/a/b.wav")
		assert.True(t, check.OK)
		require.NotNil(t, client.input)
		assert.Equal(t, "audio", aws.StringValue(client.input.Bucket))
		assert.Equal(t, "a/b.wav", aws.StringValue(client.input.Key))
	})

	t.Run("missing object reports the AWS error code", func(t *testing.T) {
		t.Parallel()
		client := &fakeHeadObject{err: awserr.New("NotFound", "not found", nil)}
		p := NewS3Prober(client, nil)

		check := p.Probe(context.Background(), "https://audio.s3.amazonaws.com/a.wav")
		assert.Equal(t, Check{Reason: "NotFound"}, check)
	})

	t.Run("transport error reports the message", func(t *testing.T) {
		t.Parallel()
		client := &fakeHeadObject{err: errors.New("dial tcp: timeout")}
		p := NewS3Prober(client, nil)

		check := p.Probe(context.Background(), "https://audio.s3.amazonaws.com/a.wav")
		assert.Equal(t, Check{Reason: "dial tcp: timeout"}, check)
	})

	t.Run("unparseable url never calls S3", func(t *testing.T) {
		t.Parallel()
		client := &fakeHeadObject{}
		p := NewS3Prober(client, nil)

		check := p.Probe(context.Background(), "https://example.com/a.wav")
		assert.Equal(t, Check{Reason: ReasonUnparseable}, check)
		assert.Nil(t, client.input)
	})
}

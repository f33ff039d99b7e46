package service

import (
	"context"
	"net/url"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3Client() *s3.Client {
	return s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		BaseEndpoint: aws.String("http://localhost:9000"),
		UsePathStyle: true,
	})
}

func TestPresignVideo(t *testing.T) {
	svc := NewMediaService(newTestS3Client(), "videos", zerolog.Nop())

	raw, err := svc.PresignVideo(context.Background(), "intro/part 1.mp4")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/videos/intro/part 1.mp4", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestPresignVideoRejectsTraversal(t *testing.T) {
	svc := NewMediaService(newTestS3Client(), "videos", zerolog.Nop())
	for _, name := range []string{"", "../secret.mp4", "a/../../b.mp4", "/"} {
		_, err := svc.PresignVideo(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidMediaPath, name)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const videoURLExpiry = 15 * time.Minute

var ErrInvalidMediaPath = errors.New("invalid media path")

// MediaService hands out short-lived download URLs for stored videos.
type MediaService interface {
	PresignVideo(ctx context.Context, name string) (string, error)
}

type mediaService struct {
	presigner *s3.PresignClient
	bucket    string
	logger    zerolog.Logger
}

func NewMediaService(s3Client *s3.Client, bucket string, logger zerolog.Logger) MediaService {
	return &mediaService{
		presigner: s3.NewPresignClient(s3Client),
		bucket:    bucket,
		logger:    logger.With().Str("service", "MediaService").Logger(),
	}
}

// cleanMediaKey rejects names that escape the bucket prefix.
func cleanMediaKey(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") {
		return "", ErrInvalidMediaPath
	}
	key := strings.TrimPrefix(path.Clean("/"+name), "/")
	if key == "" || key == "." {
		return "", ErrInvalidMediaPath
	}
	return key, nil
}

func (s *mediaService) PresignVideo(ctx context.Context, name string) (string, error) {
	key, err := cleanMediaKey(name)
	if err != nil {
		return "", err
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(videoURLExpiry))
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to presign video URL")
		return "", fmt.Errorf("presign video %s: %w", key, err)
	}
	return req.URL, nil
}

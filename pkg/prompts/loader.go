// Package prompts loads the analysis and research instructions used by the
// workflow and renders the research query.
package prompts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const s3Scheme = "s3://"

// ObjectGetter is the subset of the S3 client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader reads template text from a local path or an s3://bucket/key location.
type Loader struct {
	objects ObjectGetter
	logger  *slog.Logger
}

// NewLoader returns a loader. objects may be nil, in which case s3 locations
// are reported as unavailable.
func NewLoader(objects ObjectGetter, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{objects: objects, logger: logger}
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg), nil
}

// NeedsS3 reports whether any of the locations points at S3.
func NeedsS3(locations ...string) bool {
	for _, location := range locations {
		if strings.HasPrefix(location, s3Scheme) {
			return true
		}
	}

	return false
}

// Load returns the text stored at location. It reports false on any failure,
// including blank content, and never returns an error.
func (l *Loader) Load(ctx context.Context, location string) (string, bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", false
	}

	var (
		text string
		err  error
	)

	if strings.HasPrefix(location, s3Scheme) {
		text, err = l.loadObject(ctx, location)
	} else {
		var raw []byte
		raw, err = os.ReadFile(location)
		text = string(raw)
	}

	if err != nil {
		attrs := []any{"location", location, "error", err}

		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "code", apiErr.ErrorCode())
		}

		l.logger.WarnContext(ctx, "template unavailable, using built-in default", attrs...)

		return "", false
	}

	if strings.TrimSpace(text) == "" {
		l.logger.WarnContext(ctx, "template is empty, using built-in default", "location", location)
		return "", false
	}

	return text, true
}

func (l *Loader) loadObject(ctx context.Context, location string) (string, error) {
	if l.objects == nil {
		return "", errors.New("no object storage client configured")
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return "", errors.New("s3 location must be s3://bucket/key")
	}

	out, err := l.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}

	defer func() {
		_ = out.Body.Close()
	}()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

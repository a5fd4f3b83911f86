package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/opsgraph/opsgraph/internal/util"
	"github.com/opsgraph/opsgraph/pkg/logger"
)

// S3Adapter reads system files from an S3 bucket. Each top-level key
// prefix under the configured prefix is one system; object keys below it
// are the system's relative file paths.
type S3Adapter struct {
	client   *s3.Client
	bucket   string
	prefix   string
	patterns map[string][]string
}

// NewS3AdapterParams configures an S3Adapter.
type NewS3AdapterParams struct {
	Client       *s3.Client
	Bucket       string
	Prefix       string
	FilePatterns map[string][]string
}

// NewS3Adapter creates an S3-backed adapter. The bucket name is required.
func NewS3Adapter(params NewS3AdapterParams) (*S3Adapter, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if params.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	prefix := params.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	logger.Info("S3 adapter initialized", "bucket", params.Bucket, "prefix", prefix)

	return &S3Adapter{
		client:   params.Client,
		bucket:   params.Bucket,
		prefix:   prefix,
		patterns: params.FilePatterns,
	}, nil
}

// NewS3Client builds an S3 client from the AWS_* environment variables,
// matching the deployment convention of the other services.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(util.GetEnv("AWS_REGION")),
		awsconfig.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

// ListAvailableSystems enumerates the common key prefixes one level below
// the configured prefix. An empty bucket yields an empty slice.
func (a *S3Adapter) ListAvailableSystems(ctx context.Context) ([]string, error) {
	systems := []string{}
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(a.bucket),
		Prefix:    aws.String(a.prefix),
		Delimiter: aws.String("/"),
	}

	for {
		out, err := a.client.ListObjectsV2(ctx, input)
		if err != nil {
			logger.Error("Failed to list systems", "bucket", a.bucket, "err", err)
			return []string{}, nil
		}
		for _, cp := range out.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, a.prefix), "/")
			if name != "" {
				systems = append(systems, name)
			}
		}
		if out.IsTruncated != nil && *out.IsTruncated {
			input.ContinuationToken = out.NextContinuationToken
		} else {
			break
		}
	}

	return systems, nil
}

// ReadSystemFiles downloads all objects under the system's prefix that
// match a configured pattern group. An object that cannot be fetched
// yields an inline error marker value.
func (a *S3Adapter) ReadSystemFiles(ctx context.Context, systemID string) (map[string]string, error) {
	systemPrefix := a.prefix + systemID + "/"

	keys, err := a.listKeys(ctx, systemPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects for %s: %w", systemID, err)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSystemNotFound, systemID)
	}

	files := map[string]string{}
	for _, key := range keys {
		rel := strings.TrimPrefix(key, systemPrefix)
		if rel == "" || !a.matchesPatterns(rel) {
			continue
		}

		content, err := a.getObject(ctx, key)
		if err != nil {
			logger.Warn("Failed to read object", "key", key, "err", err)
			files[rel] = ErrorMarker(err)
			continue
		}
		files[rel] = util.SanitizeText(content)
	}

	return files, nil
}

func (a *S3Adapter) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		out, err := a.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated != nil && *out.IsTruncated {
			input.ContinuationToken = out.NextContinuationToken
		} else {
			break
		}
	}
	return keys, nil
}

func (a *S3Adapter) getObject(ctx context.Context, key string) (string, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// matchesPatterns checks a relative key against every configured pattern
// group. With no patterns configured, every key matches. Patterns use /
// as separator and follow path.Match semantics: * does not cross
// separators, so "var/log/*.log" matches only keys directly under
// var/log, mirroring the filesystem adapter's glob behavior.
func (a *S3Adapter) matchesPatterns(rel string) bool {
	if len(a.patterns) == 0 {
		return true
	}
	for _, patterns := range a.patterns {
		for _, pattern := range patterns {
			if pattern == rel {
				return true
			}
			if ok, err := path.Match(pattern, rel); err == nil && ok {
				return true
			}
		}
	}
	return false
}

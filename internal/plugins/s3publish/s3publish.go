// Package s3publish provides a post-render action that uploads finished
// renders to an S3 (or S3-compatible) bucket. Register it with a blank
// import:
//
//	_ "github.com/ferro-labs/review4d/internal/plugins/s3publish"
package s3publish

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ferro-labs/review4d/plugin"
)

// FactoryName is the name the action is registered under.
const FactoryName = "s3-publish"

func init() {
	plugin.RegisterFactory(FactoryName, func() any {
		return &Publisher{Meta: plugin.Meta{Name: "Publish to S3", Rank: 20}}
	})
}

// PutObjectAPI is the part of the S3 client the publisher uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds the bucket settings.
type Config struct {
	Bucket string
	// Prefix is prepended to every key. "{date}" expands to the upload day
	// as YYYY-MM-DD.
	Prefix string
	Region string
	// Endpoint overrides the default S3 endpoint (MinIO, LocalStack).
	Endpoint     string
	UsePathStyle bool
	// Credentials are optional; the default chain is used otherwise.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Publisher uploads renders under Config.Prefix.
type Publisher struct {
	plugin.Meta
	cfg     Config
	enabled bool
	now     func() time.Time

	mu     sync.Mutex
	client PutObjectAPI
}

// New returns a publisher using client for uploads. A nil client is created
// from cfg on first use.
func New(cfg Config, client PutObjectAPI) *Publisher {
	return &Publisher{
		Meta:   plugin.Meta{Name: "Publish to S3", Rank: 20},
		cfg:    cfg,
		client: client,
	}
}

// Init configures the publisher. Options: bucket (required), prefix, region,
// endpoint, use_path_style, access_key_id, secret_access_key,
// session_token, label, enabled.
func (p *Publisher) Init(config map[string]interface{}) error {
	str := func(key string) string {
		s, _ := config[key].(string)
		return s
	}
	p.cfg = Config{
		Bucket:          str("bucket"),
		Prefix:          str("prefix"),
		Region:          str("region"),
		Endpoint:        str("endpoint"),
		AccessKeyID:     str("access_key_id"),
		SecretAccessKey: str("secret_access_key"),
		SessionToken:    str("session_token"),
	}
	if p.cfg.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if v, ok := config["use_path_style"].(bool); ok {
		p.cfg.UsePathStyle = v
	}
	if v, ok := config["enabled"].(bool); ok {
		p.enabled = v
	}
	if label := str("label"); label != "" {
		p.Name = label
	}
	return nil
}

// Enabled reports whether the action is preselected.
func (p *Publisher) Enabled() bool { return p.enabled }

// Available reports whether a bucket is configured.
func (p *Publisher) Available() bool { return p.cfg.Bucket != "" }

// Execute uploads each render, stopping at the first failure.
func (p *Publisher) Execute(ctx context.Context, renderPaths []string) error {
	client, err := p.getClient(ctx)
	if err != nil {
		return err
	}
	for _, file := range renderPaths {
		key := p.Key(file)
		if err := p.upload(ctx, client, file, key); err != nil {
			return fmt.Errorf("upload %s to s3://%s/%s: %w", file, p.cfg.Bucket, key, err)
		}
	}
	return nil
}

// Key returns the object key file is uploaded to.
func (p *Publisher) Key(file string) string {
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	prefix := strings.ReplaceAll(p.cfg.Prefix, "{date}", now().Format(time.DateOnly))
	name := path.Base(strings.ReplaceAll(file, `\`, "/"))
	return strings.TrimPrefix(path.Join(prefix, name), "/")
}

func (p *Publisher) upload(ctx context.Context, client PutObjectAPI, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(ContentType(file)),
	})
	return err
}

var mediaTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".avi": "video/x-msvideo",
}

// ContentType returns the MIME type uploaded with file.
func ContentType(file string) string {
	ext := strings.ToLower(filepath.Ext(file))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (p *Publisher) getClient(ctx context.Context) (PutObjectAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := NewClient(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

// NewClient builds an S3 client from cfg.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

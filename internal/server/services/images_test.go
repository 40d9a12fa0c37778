package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/thepicklr/notebook/internal/server/config"
)

func newImagesSvc() *Images {
	cfg := &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "notebook",
	}
	return NewImages(cfg)
}

func stubAWS(t *testing.T) {
	t.Helper()

	origLoad, origNewS3, origNewPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origGet := presignPutObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			_ = fn(&lo)
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client { return &s3.Client{} }
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
}

func TestImagesEnabled(t *testing.T) {
	svc := newImagesSvc()
	if !svc.Enabled() {
		t.Fatalf("expected archival enabled with a bucket configured")
	}

	svc = NewImages(&sc.Config{})
	if svc.Enabled() {
		t.Fatalf("expected archival disabled without a bucket")
	}
}

func TestStorageKey(t *testing.T) {
	key := StorageKey()
	if !strings.HasPrefix(key, "uploads/") {
		t.Fatalf("key not date-sharded: %q", key)
	}
	if key == StorageKey() {
		t.Fatalf("expected unique keys")
	}
}

func TestPresignPut(t *testing.T) {
	svc := newImagesSvc()
	stubAWS(t)

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if *in.Bucket != "notebook" {
			t.Fatalf("unexpected bucket %q", *in.Bucket)
		}
		return &v4.PresignedHTTPRequest{URL: "http://127.0.0.1:9000/notebook/" + *in.Key}, nil
	}

	key, url, err := svc.PresignPut(context.Background())
	if err != nil {
		t.Fatalf("PresignPut: %v", err)
	}
	if key == "" || !strings.Contains(url, key) {
		t.Fatalf("url %q does not reference key %q", url, key)
	}
}

func TestPresignPut_Error(t *testing.T) {
	svc := newImagesSvc()
	stubAWS(t)

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-put-fail")
	}

	_, _, err := svc.PresignPut(context.Background())
	if err == nil || err.Error() != "presign-put-fail" {
		t.Fatalf("want presign-put-fail, got %v", err)
	}
}

func TestPresignGet(t *testing.T) {
	svc := newImagesSvc()
	stubAWS(t)

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "http://127.0.0.1:9000/notebook/" + *in.Key + "?signed"}, nil
	}

	url, err := svc.PresignGet(context.Background(), "uploads/2025/3/14/abc")
	if err != nil {
		t.Fatalf("PresignGet: %v", err)
	}
	if !strings.Contains(url, "uploads/2025/3/14/abc") {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestPresignGet_LoadConfigError(t *testing.T) {
	svc := newImagesSvc()
	stubAWS(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-config-fail")
	}

	_, err := svc.PresignGet(context.Background(), "uploads/x")
	if err == nil || err.Error() != "load-config-fail" {
		t.Fatalf("want load-config-fail, got %v", err)
	}
}

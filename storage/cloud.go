package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/janelia-flyem/neuropil/npil"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// IsBucketRef returns true if the reference names a blob bucket rather than a local path.
func IsBucketRef(ref string) bool {
	return strings.Contains(ref, "://")
}

// OpenBucket returns a blob.Bucket for the given reference.  Any path after the bucket
// name becomes a key prefix.  The reference should be of the form:
//
//	file:///<directory>
//	mem://
//	gs://<bucketname>[/<prefix>]
//	s3://<bucketname>[/<prefix>]
//	vast://<endpoint>/<bucketname>
func OpenBucket(ctx context.Context, ref string) (bucket *blob.Bucket, err error) {
	switch {
	case strings.HasPrefix(ref, "file://"), strings.HasPrefix(ref, "mem://"):
		bucket, err = blob.OpenBucket(ctx, ref)
		if err != nil {
			npil.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}

	case strings.HasPrefix(ref, "s3://"):
		// Requires AWS credentials that gocloud can find and the AWS_REGION environment variable.
		name, prefix := splitBucketRef(strings.TrimPrefix(ref, "s3://"))
		bucket, err = blob.OpenBucket(ctx, "s3://"+name)
		if err != nil {
			npil.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		if prefix != "" {
			bucket = blob.PrefixedBucket(bucket, prefix)
		}

	case strings.HasPrefix(ref, "vast://"):
		// VAST S3-compatible storage.  AWS_REGION must be set but is ignored, and
		// AWS_SHARED_CREDENTIALS_FILE should point to the access keys.
		parts := strings.SplitN(strings.TrimPrefix(ref, "vast://"), "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("vast ref must be of form 'vast://<endpoint>/<bucket>'")
		}
		url := fmt.Sprintf("s3://%s?endpoint=%s&s3ForcePathStyle=true", parts[1], parts[0])
		bucket, err = blob.OpenBucket(ctx, url)
		if err != nil {
			npil.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}

	case strings.HasPrefix(ref, "gs://"):
		// Default Google application credentials.
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		client, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		name, prefix := splitBucketRef(strings.TrimPrefix(ref, "gs://"))
		bucket, err = gcsblob.OpenBucket(ctx, client, name, nil)
		if err != nil {
			npil.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		if prefix != "" {
			bucket = blob.PrefixedBucket(bucket, prefix)
		}

	default:
		return nil, fmt.Errorf("unsupported bucket reference %q", ref)
	}
	return bucket, nil
}

func splitBucketRef(ref string) (name, prefix string) {
	parts := strings.SplitN(ref, "/", 2)
	name = parts[0]
	if len(parts) == 2 && parts[1] != "" {
		prefix = strings.TrimSuffix(parts[1], "/") + "/"
	}
	return
}

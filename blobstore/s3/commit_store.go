package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/batchgo/batchgo/blobstore"
	"github.com/batchgo/batchgo/manifest"
)

// ErrConcurrentCommit is returned when another writer published a manifest
// version concurrently.
var ErrConcurrentCommit = errors.New("s3: concurrent manifest commit detected")

// DDBClient is the subset of the DynamoDB API the commit store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitStore implements blobstore.BlobStore backed by S3 with DynamoDB
// conditional writes for atomic dataset publication.
//
// A dataset conversion writes many shard files followed by one manifest; the
// manifest must only become visible once every shard it references is
// durable, and two converters racing on the same prefix must not clobber each
// other. S3 alone has no compare-and-swap, so the manifest "CURRENT" pointer
// lives in DynamoDB: shard files and versioned manifest bodies go to S3,
// while the pointer advance is a conditional PutItem keyed on
// (base_uri, version).
//
// Table schema: partition key base_uri (S), sort key version (N).
type CommitStore struct {
	inner     *Store
	ddb       DDBClient
	tableName string
	baseURI   string
}

// NewCommitStore creates a commit store layered over an S3 store.
// baseURI identifies the dataset prefix (e.g. "s3://bucket/criteo/train")
// and is used as the DynamoDB partition key.
func NewCommitStore(inner *Store, ddb DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		inner:     inner,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Open opens a blob. Opening the manifest resolves the committed version
// through DynamoDB first.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == manifest.FileName {
		version, path, err := s.latestVersion(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return s.inner.Open(ctx, path)
	}
	return s.inner.Open(ctx, name)
}

// Put writes a blob. Writing the manifest stores a versioned body in S3 and
// advances the pointer with a conditional write.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == manifest.FileName {
		return s.commit(ctx, data)
	}
	return s.inner.Put(ctx, name, data)
}

// Create creates a writable blob. Manifest writes must go through Put.
func (s *CommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if name == manifest.FileName {
		return nil, fmt.Errorf("s3: manifest must be written with Put for atomic commit")
	}
	return s.inner.Create(ctx, name)
}

// Delete removes a blob.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List returns blobs under the prefix.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CommitStore) commit(ctx context.Context, data []byte) error {
	current, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}
	next := current + 1
	versionedName := fmt.Sprintf("%s.v%06d", manifest.FileName, next)

	if err := s.inner.Put(ctx, versionedName, data); err != nil {
		return fmt.Errorf("s3: failed to write manifest body: %w", err)
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: s.baseURI},
			"version":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", next)},
			"manifest_path": &types.AttributeValueMemberS{Value: versionedName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: version %d already committed", ErrConcurrentCommit, next)
		}
		return fmt.Errorf("s3: failed to commit manifest version: %w", err)
	}
	return nil
}

func (s *CommitStore) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: failed to query commit table: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: invalid version attribute in commit table")
	}
	pathAttr, ok := item["manifest_path"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: invalid manifest_path attribute in commit table")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("s3: failed to parse version: %w", err)
	}
	return version, pathAttr.Value, nil
}

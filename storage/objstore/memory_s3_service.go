package objstore

import (
	"bytes"
	"context"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MemoryS3Service is an in-memory implementation of the S3Service for testing.
// It tracks request usage so tests can report what a workload would cost
// against real S3.
type MemoryS3Service struct {
	mu    sync.Mutex
	data  map[string][]byte
	usage S3Usage
}

func NewMemoryS3Service() *MemoryS3Service {
	return &MemoryS3Service{
		data: make(map[string][]byte),
	}
}

func (m *MemoryS3Service) CopyObject(ctx context.Context, input *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usage.AddExpensiveRequest()
	sourceData, ok := m.data[*input.CopySource]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	newData := make([]byte, len(sourceData))
	copy(newData, sourceData)
	m.data[path.Join(*input.Bucket, *input.Key)] = newData
	return &s3.CopyObjectOutput{}, nil
}

func (m *MemoryS3Service) GetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usage.AddCheapRequest()
	data, ok := m.data[path.Join(*input.Bucket, *input.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	size := int64(len(data))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: &size,
	}, nil
}

func (m *MemoryS3Service) HeadObject(ctx context.Context, input *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usage.AddCheapRequest()
	data, ok := m.data[path.Join(*input.Bucket, *input.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	size := int64(len(data))
	return &s3.HeadObjectOutput{ContentLength: &size}, nil
}

func (m *MemoryS3Service) ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usage.AddExpensiveRequest()

	// Get sorted list of keys that match the prefix
	var keys []string
	for key := range m.data {
		bucketAndPrefix := *input.Bucket + "/" + *input.Prefix
		if strings.HasPrefix(key, bucketAndPrefix) {
			keys = append(keys, strings.TrimPrefix(key, *input.Bucket+"/"))
		}
	}
	slices.Sort(keys)

	// Get the objects by sorted key
	var contents []types.Object
	for _, key := range keys {
		size := int64(len(m.data[path.Join(*input.Bucket, key)]))
		contents = append(contents, types.Object{
			Key:  &key,
			Size: &size,
		})
	}

	return &s3.ListObjectsV2Output{
		Contents: contents,
	}, nil
}

func (m *MemoryS3Service) PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	buf, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.AddExpensiveRequest()
	m.data[path.Join(*input.Bucket, *input.Key)] = buf
	return &s3.PutObjectOutput{}, nil
}

func (m *MemoryS3Service) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, path.Join(*input.Bucket, *input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

// Usage reports the requests made so far.
func (m *MemoryS3Service) Usage() S3Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

var _ S3Service = (*MemoryS3Service)(nil)

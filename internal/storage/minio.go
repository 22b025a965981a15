package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aihub/chatbot-go/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

const fileNameMeta = "File-Name"

// Object 下载用的对象
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	FileName    string
}

// FileStore 按fileHash归档原始文件，对象路径 files/{fileHash}
type FileStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// ObjectKey 对象路径
func ObjectKey(fileHash string) string {
	return "files/" + fileHash
}

// NewFileStore 连接MinIO并确保bucket存在，启动阶段带重试
func NewFileStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	s := &FileStore{client: client, bucket: cfg.Bucket, logger: logger}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) ensureBucket(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 5; i++ {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err == nil && exists {
			return nil
		}
		if err == nil {
			err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
			if err == nil {
				s.logger.Info("创建MinIO bucket", zap.String("bucket", s.bucket))
				return nil
			}
			if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
				return nil
			}
		}
		lastErr = err

		wait := time.Duration(i+1) * 2 * time.Second
		s.logger.Warn("MinIO连接失败，稍后重试",
			zap.Int("attempt", i+1),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("ensure bucket %s: %w", s.bucket, lastErr)
}

// Put 归档文件；同一hash重复写入覆盖
func (s *FileStore) Put(ctx context.Context, fileHash, fileName, mimeType string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, ObjectKey(fileHash), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  mimeType,
		UserMetadata: map[string]string{fileNameMeta: url.QueryEscape(fileName)},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", ObjectKey(fileHash), err)
	}
	return nil
}

// Get 读取归档文件，调用方负责关闭Body
func (s *FileStore) Get(ctx context.Context, fileHash string) (*Object, error) {
	key := ObjectKey(fileHash)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return &Object{
		Body:        obj,
		Size:        info.Size,
		ContentType: info.ContentType,
		FileName:    decodeFileName(info.UserMetadata, fileHash),
	}, nil
}

// Ping 健康检查
func (s *FileStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

// decodeFileName minio返回的用户元数据key不带 X-Amz-Meta- 前缀
func decodeFileName(meta map[string]string, fallback string) string {
	for k, v := range meta {
		if strings.EqualFold(k, fileNameMeta) {
			if name, err := url.QueryUnescape(v); err == nil && name != "" {
				return name
			}
		}
	}
	return fallback
}

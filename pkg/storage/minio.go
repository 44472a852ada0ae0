// Package storage 提供了将会话记录归档到对象存储（MinIO）的功能。
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"homesync-go/internal/config"
	"homesync-go/internal/model"
	"homesync-go/pkg/log"
)

// TranscriptArchive 把关闭的会话记录写成 JSON 对象。
type TranscriptArchive struct {
	client *minio.Client
	bucket string
}

type transcript struct {
	SessionID  string              `json:"sessionId"`
	ArchivedAt time.Time           `json:"archivedAt"`
	Messages   []model.ChatMessage `json:"messages"`
}

// NewTranscriptArchive 初始化 MinIO 客户端并确保存储桶存在。
func NewTranscriptArchive(ctx context.Context, cfg config.MinIOConfig) (*TranscriptArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}

	log.Infof("MinIO 会话归档初始化成功, bucket=%s", cfg.BucketName)
	return &TranscriptArchive{client: client, bucket: cfg.BucketName}, nil
}

// Archive 上传一个会话的完整记录。
func (a *TranscriptArchive) Archive(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	now := time.Now().UTC()
	body, err := json.Marshal(transcript{SessionID: sessionID, ArchivedAt: now, Messages: messages})
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	objectName := TranscriptObjectName(sessionID, now)
	_, err = a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload transcript %s: %w", objectName, err)
	}
	log.Infof("会话记录已归档: %s/%s", a.bucket, objectName)
	return nil
}

// TranscriptObjectName 按日期分目录：transcripts/2006/01/02/<session>.json
func TranscriptObjectName(sessionID string, at time.Time) string {
	return path.Join("transcripts", at.UTC().Format("2006/01/02"), sessionID+".json")
}

package repository

import (
	"context"
	"fmt"
	"time"
)

// ArtifactRepository 模型产物仓库。产物本身是不透明字节串,
// 序列化格式由 ml 包负责。
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository 创建模型产物仓库
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Save 保存一版模型产物
func (r *ArtifactRepository) Save(ctx context.Context, strategy string, featureCount int, artifact []byte) (int64, error) {
	var id int64
	query := `
		INSERT INTO model_artifacts (strategy, artifact, feature_count)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query, strategy, artifact, featureCount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert artifact: %w", err)
	}
	return id, nil
}

// Latest 取最新一版模型产物
func (r *ArtifactRepository) Latest(ctx context.Context) (strategy string, artifact []byte, createdAt time.Time, err error) {
	query := `
		SELECT strategy, artifact, created_at
		FROM model_artifacts ORDER BY created_at DESC, id DESC LIMIT 1
	`
	err = r.db.Pool.QueryRow(ctx, query).Scan(&strategy, &artifact, &createdAt)
	if err != nil {
		err = fmt.Errorf("get latest artifact: %w", err)
	}
	return strategy, artifact, createdAt, err
}

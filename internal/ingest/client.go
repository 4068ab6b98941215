package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultDataHost TLC 行程数据的公开下载地址
const DefaultDataHost = "https://d37ci6vzurychx.cloudfront.net"

// Client 行程数据下载客户端
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	host       string
}

// NewClient 创建下载客户端
func NewClient(logger *zap.Logger, host string) *Client {
	if host == "" {
		host = DefaultDataHost
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		logger: logger,
		host:   host,
	}
}

// Download 下载指定月份的黄色出租车行程数据到 destDir, 返回本地路径。
// TLC 以 Parquet 发布月度数据。已存在的文件直接复用, 不重复下载。
func (c *Client) Download(ctx context.Context, year, month int, destDir string) (string, error) {
	filename := fmt.Sprintf("yellow_tripdata_%04d-%02d.parquet", year, month)
	dest := filepath.Join(destDir, filename)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		c.logger.Info("Trip data already downloaded", zap.String("path", dest))
		return dest, nil
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	url := fmt.Sprintf("%s/trip-data/%s", c.host, filename)
	c.logger.Info("Downloading trip data", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download trip data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download trip data: status=%d url=%s", resp.StatusCode, url)
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write trip data: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("finalize trip data: %w", err)
	}

	c.logger.Info("Trip data downloaded",
		zap.String("path", dest),
		zap.Int64("bytes", written),
	)
	return dest, nil
}

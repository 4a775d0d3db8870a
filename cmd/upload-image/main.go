package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/config"
	"github.com/sk4900/capacity-checker/internal/imagekey"
	"github.com/sk4900/capacity-checker/internal/storage"
)

// 把一张房间照片上传到对象存储，键里编码楼号/房间号/拍摄时间。
// 存储侧的创建事件会触发整条检测管道。
func main() {
	building := flag.String("building", "", "building number, e.g. GOL")
	room := flag.String("room", "", "room number, e.g. 2000")
	file := flag.String("file", "", "path to the image file")
	flag.Parse()

	if *building == "" || *room == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "usage: upload-image -building GOL -room 2000 -file photo.jpg")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal("Failed to read image file", zap.Error(err))
	}

	key, err := imagekey.Encode(*building, *room, time.Now().UTC())
	if err != nil {
		logger.Fatal("Failed to encode image key", zap.Error(err))
	}

	client := storage.NewClient(cfg.Storage.BaseURL, logger)
	if err := client.PutObject(context.Background(), cfg.Storage.Bucket, key, data, "image/jpeg"); err != nil {
		logger.Fatal("Failed to upload image", zap.Error(err))
	}

	logger.Info("Image uploaded",
		zap.String("bucket", cfg.Storage.Bucket),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)
}

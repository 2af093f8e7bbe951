package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"
)

// InitLog 初始化日志
func InitLog(out OutputConf, level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	logIO := make([]io.Writer, 0)
	if out.LogDir != "" {
		if err := os.MkdirAll(out.LogDir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("日志目录创建失败: %w", err)
		}
		filename := filepath.Join(out.LogDir, time.Now().Format("2006-01-02.log"))
		file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return nil, fmt.Errorf("日志文件打开失败: %w", err)
		}
		logIO = append(logIO, file)
	}
	if out.OutputTerminal || len(logIO) == 0 {
		logIO = append(logIO, os.Stdout)
	}

	// 融合日志输出
	log.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(logIO...)))

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetLevel(lvl)
	}
	return log, nil
}

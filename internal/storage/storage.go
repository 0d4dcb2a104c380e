package storage

import (
	"context"
	"fmt"

	"resume-extractor/internal/config"
	"resume-extractor/internal/logger"
)

// Storage 存储管理器，聚合所有可选的存储组件。未启用或初始化失败的组件为 nil
type Storage struct {
	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis
}

// NewStorage 按配置创建已启用的存储组件。
// 单个组件初始化失败只记录警告，服务在没有该组件的情况下继续运行。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	log := logger.Component("storage")
	s := &Storage{}
	var err error

	if cfg.MinIO.Enabled {
		if s.MinIO, err = NewMinIO(ctx, &cfg.MinIO); err != nil {
			log.Warn().Err(err).Msg("初始化MinIO失败，原始文件不会归档")
		}
	}

	if cfg.RabbitMQ.Enabled {
		if s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ); err != nil {
			log.Warn().Err(err).Msg("初始化RabbitMQ失败，解析事件不会发布")
		}
	}

	if cfg.MySQL.Enabled {
		if s.MySQL, err = NewMySQL(&cfg.MySQL); err != nil {
			log.Warn().Err(err).Msg("初始化MySQL失败，解析结果不会持久化")
		}
	}

	if cfg.Redis.Enabled {
		if s.Redis, err = NewRedisAdapter(&cfg.Redis); err != nil {
			log.Warn().Err(err).Msg("初始化Redis失败，解析结果不会缓存")
		}
	}

	log.Info().
		Bool("minio", s.MinIO != nil).
		Bool("rabbitmq", s.RabbitMQ != nil).
		Bool("mysql", s.MySQL != nil).
		Bool("redis", s.Redis != nil).
		Msg("存储组件初始化完成")
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	log := logger.Component("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}

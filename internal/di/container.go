package di

import (
	"github.com/aihub/chatbot-go/internal/config"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Container 全局依赖注入容器
var Container *dig.Container

// InitContainer 初始化依赖注入容器
func InitContainer() *dig.Container {
	Container = dig.New()
	return Container
}

// Build 创建容器并注册全部提供者
func Build(cfg *config.Config, logger *zap.Logger) (*dig.Container, error) {
	c := InitContainer()
	if err := RegisterProviders(c, cfg, logger); err != nil {
		return nil, err
	}
	return c, nil
}

// Invoke 封装dig.Invoke
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}

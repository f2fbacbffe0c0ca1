// Package testutil 提供合约执行模块测试的辅助工具
package testutil

import (
	"go.uber.org/zap"

	"github.com/weisyn/contracts/pkg/interfaces/infrastructure/log"
)

// MockLogger 统一的日志Mock实现
//
// 最小实现：所有方法为空操作，不记录日志。
type MockLogger struct{}

var _ log.Logger = (*MockLogger)(nil)

func (m *MockLogger) Debug(msg string)                          {}
func (m *MockLogger) Debugf(format string, args ...interface{}) {}
func (m *MockLogger) Info(msg string)                           {}
func (m *MockLogger) Infof(format string, args ...interface{})  {}
func (m *MockLogger) Warn(msg string)                           {}
func (m *MockLogger) Warnf(format string, args ...interface{})  {}
func (m *MockLogger) Error(msg string)                          {}
func (m *MockLogger) Errorf(format string, args ...interface{}) {}
func (m *MockLogger) Fatal(msg string)                          {}
func (m *MockLogger) Fatalf(format string, args ...interface{}) {}
func (m *MockLogger) With(args ...interface{}) log.Logger       { return m }
func (m *MockLogger) Sync() error                               { return nil }
func (m *MockLogger) GetZapLogger() *zap.Logger                 { return zap.NewNop() }

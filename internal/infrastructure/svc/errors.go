package svc

import "errors"

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrAlertsDisabled 没有可用的通知通道，告警与汇总只写日志
var ErrAlertsDisabled = errors.New("no notifier configured, alerts disabled")

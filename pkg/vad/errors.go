package vad

import "errors"

var (
	// ErrUnsupportedSampleRate 采样率不受支持（仅支持 8000 和 16000）
	ErrUnsupportedSampleRate = errors.New("unsupported sample rate: valid values are 8000 and 16000")

	// ErrNilModel detector 构造时缺少模型
	ErrNilModel = errors.New("model must not be nil")

	// ErrModelLoad 模型加载失败
	ErrModelLoad = errors.New("failed to load model")

	// ErrInference 单次推理失败
	ErrInference = errors.New("inference failed")
)

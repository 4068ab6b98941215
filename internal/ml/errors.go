package ml

import "errors"

var (
	// ErrUnknownStrategy 未识别的模型策略标签, 构造时立刻报错
	ErrUnknownStrategy = errors.New("unknown model strategy")

	// ErrNotTrained 在 Train 之前调用 Predict/Save
	ErrNotTrained = errors.New("model not trained")
)

package types

// ChainEffect 规范化的链效果（成功执行的产物）
//
// 📋 **两种形态**：
//   - 带交易效果：NextTransaction 非空，EncodedState 为新状态
//   - 无交易效果：NextTransaction 为空（纯调用，状态逐字节相同）
//
// ⚠️ **核心约束**：
//   - EncodedState 超过大小上限的结果不会以效果形态出现——上限违规在铸型阶段
//     被转换为 state_exceed_threshold 失败
//   - 效果是完整的或不存在的，绝不存在半应用状态
type ChainEffect struct {
	EncodedState    []byte       `json:"encoded_state,omitempty"` // 新序列化状态（无状态变更时为空）
	Logs            []string     `json:"logs,omitempty"`
	NextTransaction *Transaction `json:"next_transaction,omitempty"`
}

// Outcome 执行结局（标签化变体：效果 或 失败，二者有且仅有其一）
type Outcome struct {
	Effect  *ChainEffect `json:"effect,omitempty"`
	Failure *Failure     `json:"failure,omitempty"`
}

// OK 结局是否为成功效果
func (o *Outcome) OK() bool {
	return o != nil && o.Effect != nil
}

// OutcomeFromEffect 从链效果构造结局
func OutcomeFromEffect(effect *ChainEffect) *Outcome {
	return &Outcome{Effect: effect}
}

// OutcomeFromFailure 从失败记录构造结局
func OutcomeFromFailure(failure *Failure) *Outcome {
	return &Outcome{Failure: failure}
}

// Verdict 条件裁定
//
// Valid 为 false 时 Subject 指出未通过的条件主题（如 "content"），
// 供上游构造面向用户的拒绝消息。
type Verdict struct {
	Valid   bool     `json:"valid"`
	Subject string   `json:"subject,omitempty"`
	Logs    []string `json:"logs,omitempty"`
}

// FunctionValue 公共函数调用的返回（只读，绝不产生状态或交易）
type FunctionValue struct {
	Value interface{} `json:"value"`
	Logs  []string    `json:"logs,omitempty"`
}

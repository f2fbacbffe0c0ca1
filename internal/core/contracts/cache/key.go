package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/weisyn/contracts/pkg/types"
)

// Key 执行缓存键
//
// 📋 **组成**：(调用种类, 触发身份, 合约地址, 调用方, 解析时间, 输入摘要, 参数摘要)
//
// 不同验证时间或不同输入集合的调用天然产生不同键——陈旧性由键本身防止，
// 缓存只需按 TTL 被动过期。
type Key struct {
	Kind         string // trigger / condition（函数调用不经缓存）
	Identity     string // 触发器/条件的规范键
	Contract     string // 合约地址（hex）
	Caller       string // 调用方地址（hex，无触发交易时为空）
	Time         int64  // 解析后的"当前时间"（Unix秒）
	InputsDigest string // 输入集合摘要
	ArgsDigest   string // 命名参数摘要
}

// Hash 返回键的规范哈希（SHA-256）
func (k Key) Hash() string {
	canonical := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s",
		k.Kind, k.Identity, k.Contract, k.Caller, k.Time, k.InputsDigest, k.ArgsDigest)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// DigestInputs 计算输入集合的顺序无关摘要
//
// 输入按规范串排序后哈希，同一集合的不同到达顺序产生同一摘要。
func DigestInputs(inputs []*types.UnspentOutput) string {
	if len(inputs) == 0 {
		return ""
	}

	lines := make([]string, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, fmt.Sprintf("%s:%s:%d:%s:%d",
			in.From.Hex(), in.Type, in.Amount, in.TokenAddress.Hex(), in.Timestamp.Unix()))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestArgs 计算命名参数的键序无关摘要
func DigestArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		// JSON编码保证复合值的确定性表示
		encoded, err := json.Marshal(args[k])
		if err != nil {
			encoded = []byte(fmt.Sprintf("%v", args[k]))
		}
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write(encoded)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

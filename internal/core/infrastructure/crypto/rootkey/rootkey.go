// Package rootkey 提供节点根密钥作用域的加解密
//
// 🎯 **核心职责**：
// 合约种子等秘密以节点根密钥密封后随交易存储，
// 密封采用 XChaCha20-Poly1305 AEAD（随机前缀nonce + 密文）。
package rootkey

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	ifcontracts "github.com/weisyn/contracts/pkg/interfaces/contracts"
)

// Cipher 根密钥加解密实现，实现 contracts.RootKeyCipher
type Cipher struct {
	aead cipher.AEAD
}

var _ ifcontracts.RootKeyCipher = (*Cipher)(nil)

// New 用节点根密钥材料创建加解密器
//
// 任意长度的根密钥材料先经SHA-256归一化为256位密钥。
func New(rootKeyMaterial []byte) (*Cipher, error) {
	if len(rootKeyMaterial) == 0 {
		return nil, fmt.Errorf("empty root key material")
	}

	key := sha256.Sum256(rootKeyMaterial)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("initialize aead: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt 用根密钥密封数据
func (c *Cipher) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt 解封根密钥密封的数据
func (c *Cipher) Decrypt(_ context.Context, sealed []byte) ([]byte, error) {
	if len(sealed) < c.aead.NonceSize() {
		return nil, fmt.Errorf("sealed payload shorter than nonce")
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plaintext, nil
}

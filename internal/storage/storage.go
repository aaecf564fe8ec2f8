// Package storage はアップロードされたファイルの保存先を提供する。
//
// ローカルディスクとS3互換オブジェクトストレージ（MinIOを含む）の2種類を持ち、
// どちらもObjectStoreインターフェースを実装する。
package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey はオブジェクトキーが不正であることを表す。
var ErrInvalidKey = errors.New("オブジェクトキーが不正です")

// ObjectStore はアップロードされたファイルの保存先。
type ObjectStore interface {
	// Put はrの内容をkeyに保存する。sizeが不明な場合は-1を渡す。
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete はkeyのオブジェクトを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}

// NewKey はアップロード用の新しいオブジェクトキーを生成する。
func NewKey() string {
	return "uploads/" + uuid.New().String()
}

// validateKey はキーが空でなく、親ディレクトリを参照しないことを確認する。
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

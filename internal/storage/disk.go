package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Disk はローカルディスクにファイルを保存するObjectStore。
type Disk struct {
	// baseDir は保存先のルートディレクトリ。
	baseDir string
}

// NewDisk はbaseDirを保存先とするDiskを生成する。ディレクトリがなければ作成する。
func NewDisk(baseDir string) (*Disk, error) {
	if baseDir == "" {
		return nil, errors.New("保存先ディレクトリが指定されていません")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("保存先ディレクトリの作成に失敗: %w", err)
	}
	return &Disk{baseDir: baseDir}, nil
}

// Put はファイルを一時ファイルに書き込んでからリネームする。
// 途中で失敗した場合に不完全なファイルが残らない。
func (d *Disk) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(d.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ディレクトリの作成に失敗: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ファイルの書き込みに失敗: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ファイルのクローズに失敗: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ファイルの配置に失敗: %w", err)
	}
	return nil
}

// Delete はファイルを削除する。
func (d *Disk) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(d.baseDir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ファイルの削除に失敗: %w", err)
	}
	return nil
}

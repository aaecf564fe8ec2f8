package credential

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func setupSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("SQLiteストアの初期化に失敗: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSQLiteStore はSQLiteストアの登録と検索を検証する。
func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	t.Run("登録した利用者をメールアドレスで検索できること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := setupSQLite(t)

		err := store.Create(ctx, Identity{Email: "alice@example.com", PasswordHash: "$2a$hash"})
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}

		got, err := store.FindByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("FindByEmail()でエラーが発生: %v", err)
		}
		if got.Email != "alice@example.com" || got.PasswordHash != "$2a$hash" {
			t.Errorf("FindByEmail() = %+v", got)
		}
		if got.IsAdmin {
			t.Error("IsAdminはfalseであるべき")
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAtが設定されていない")
		}
	})

	t.Run("管理者フラグが保存されること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := setupSQLite(t)

		if err := store.Create(ctx, Identity{Email: "root@example.com", PasswordHash: "h", IsAdmin: true}); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		got, err := store.FindByEmail(ctx, "root@example.com")
		if err != nil {
			t.Fatalf("FindByEmail()でエラーが発生: %v", err)
		}
		if !got.IsAdmin {
			t.Error("IsAdminはtrueであるべき")
		}
	})

	t.Run("存在しないメールアドレスはErrNotFoundになること", func(t *testing.T) {
		t.Parallel()

		_, err := setupSQLite(t).FindByEmail(context.Background(), "nobody@example.com")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("FindByEmail() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("同じメールアドレスの登録はErrDuplicateになること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := setupSQLite(t)

		if err := store.Create(ctx, Identity{Email: "bob@example.com", PasswordHash: "h1"}); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		err := store.Create(ctx, Identity{Email: "bob@example.com", PasswordHash: "h2"})
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("Create() error = %v, want ErrDuplicate", err)
		}

		got, err := store.FindByEmail(ctx, "bob@example.com")
		if err != nil {
			t.Fatalf("FindByEmail()でエラーが発生: %v", err)
		}
		if got.PasswordHash != "h1" {
			t.Errorf("既存の利用者が上書きされている: %q", got.PasswordHash)
		}
	})

	t.Run("メールアドレスは大文字小文字を区別すること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := setupSQLite(t)

		if err := store.Create(ctx, Identity{Email: "carol@example.com", PasswordHash: "h"}); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if err := store.Create(ctx, Identity{Email: "Carol@example.com", PasswordHash: "h"}); err != nil {
			t.Errorf("大文字違いの登録が失敗した: %v", err)
		}
	})

	t.Run("同時に同じメールアドレスを登録すると1件だけ成功すること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := setupSQLite(t)

		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.Create(ctx, Identity{Email: "race@example.com", PasswordHash: "h"})
			}()
		}
		wg.Wait()
		close(errs)

		succeeded, duplicated := 0, 0
		for err := range errs {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrDuplicate):
				duplicated++
			default:
				t.Errorf("想定外のエラー: %v", err)
			}
		}
		if succeeded != 1 || duplicated != workers-1 {
			t.Errorf("成功 = %d, 重複 = %d, want 1, %d", succeeded, duplicated, workers-1)
		}
	})
}

// TestOpen はドライバ種別によるストアの選択を検証する。
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("sqliteドライバでSQLiteストアが開けること", func(t *testing.T) {
		t.Parallel()

		store, err := Open(context.Background(), DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*SQLiteStore); !ok {
			t.Errorf("Open() = %T, want *SQLiteStore", store)
		}
	})

	t.Run("未対応のドライバはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Open(context.Background(), "mysql", "dsn"); err == nil {
			t.Fatal("Open()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("postgresドライバでDSNが空の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Open(context.Background(), DriverPostgres, ""); err == nil {
			t.Fatal("Open()がエラーを返すべきだが、nilが返った")
		}
	})
}

package credential

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres はPostgreSQLコンテナを起動してストアを返す。
// コンテナランタイムが利用できない環境ではスキップする。
func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()

	if testing.Short() || os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("PostgreSQL統合テストをスキップします")
	}

	ctx := context.Background()
	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("uploadmesh_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("PostgreSQLコンテナを起動できないためスキップします: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("接続文字列の取得に失敗: %v", err)
	}

	store, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("PostgreSQLストアの初期化に失敗: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestPostgresStore はPostgreSQLストアの登録と検索を検証する。
func TestPostgresStore(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	t.Run("登録した利用者をメールアドレスで検索できること", func(t *testing.T) {
		if err := store.Create(ctx, Identity{Email: "alice@example.com", PasswordHash: "h", IsAdmin: true}); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		got, err := store.FindByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("FindByEmail()でエラーが発生: %v", err)
		}
		if got.Email != "alice@example.com" || !got.IsAdmin {
			t.Errorf("FindByEmail() = %+v", got)
		}
	})

	t.Run("存在しないメールアドレスはErrNotFoundになること", func(t *testing.T) {
		if _, err := store.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindByEmail() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("同時に同じメールアドレスを登録すると1件だけ成功すること", func(t *testing.T) {
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

	t.Run("マイグレーションを再実行しても失敗しないこと", func(t *testing.T) {
		if err := migratePostgres(ctx, store.db); err != nil {
			t.Errorf("migratePostgres()でエラーが発生: %v", err)
		}
	})
}

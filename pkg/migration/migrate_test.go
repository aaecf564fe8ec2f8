package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("DB接続に失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sql/000002_add_index.up.sql":      {Data: []byte("CREATE INDEX idx_items_name ON items(name);")},
		"sql/000001_create_items.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")},
		"sql/000001_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"sql/README.md":                    {Data: []byte("ignored")},
		"sql/abc_bad.up.sql":               {Data: []byte("THIS IS NOT SQL")},
	}
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("未適用のマイグレーションがバージョン順に適用されること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openMemoryDB(t)

		n, err := Run(ctx, db, testFS(), "sql")
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("適用件数 = %d, want 2", n)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')"); err != nil {
			t.Errorf("itemsテーブルが作成されていない: %v", err)
		}

		applied, err := Applied(ctx, db)
		if err != nil {
			t.Fatalf("Applied()でエラーが発生: %v", err)
		}
		if !applied[1] || !applied[2] || len(applied) != 2 {
			t.Errorf("applied = %v, want {1,2}", applied)
		}
	})

	t.Run("2回目の実行では何も適用されないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openMemoryDB(t)

		if _, err := Run(ctx, db, testFS(), "sql"); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		n, err := Run(ctx, db, testFS(), "sql")
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n != 0 {
			t.Errorf("適用件数 = %d, want 0", n)
		}
	})

	t.Run("不正なSQLはエラーになり記録されないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openMemoryDB(t)
		fsys := fstest.MapFS{
			"sql/000001_broken.up.sql": {Data: []byte("CREATE TABLE (")},
		}

		if _, err := Run(ctx, db, fsys, "sql"); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
		applied, err := Applied(ctx, db)
		if err != nil {
			t.Fatalf("Applied()でエラーが発生: %v", err)
		}
		if applied[1] {
			t.Error("失敗したマイグレーションが適用済みとして記録されている")
		}
	})

	t.Run("存在しないディレクトリはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Run(context.Background(), openMemoryDB(t), fstest.MapFS{}, "missing"); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
	})
}

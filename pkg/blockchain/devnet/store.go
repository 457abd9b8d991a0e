package devnet

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

type accountRecord struct {
	bun.BaseModel `bun:"table:accounts"`
	ID            []byte    `bun:"id,pk"`
	Threshold     uint32    `bun:"threshold"`
	PubKeyCommits [][]byte  `bun:"pub_key_commits"`
	Nonce         uint64    `bun:"nonce"`
	CreatedAt     time.Time `bun:"created_at"`
}

type noteRecord struct {
	bun.BaseModel `bun:"table:notes"`
	ID            []byte    `bun:"id,pk"`
	AccountID     []byte    `bun:"account_id"`
	Recipient     string    `bun:"recipient"`
	Asset         string    `bun:"asset"`
	Amount        uint64    `bun:"amount"`
	Consumed      bool      `bun:"consumed"`
	CreatedAt     time.Time `bun:"created_at"`
}

// openStore opens the client state database at path, creating it and its
// tables when missing.
func openStore(ctx context.Context, path string) (*bun.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "create store directory")
		}
	}
	sqlDB, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	for _, model := range []any{(*accountRecord)(nil), (*noteRecord)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "create store tables")
		}
	}
	_, err = db.NewCreateIndex().Model((*noteRecord)(nil)).Index("notes_account_idx").IfNotExists().Column("account_id").Exec(ctx)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create store index")
	}
	return db, nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

// Open connects to the sqlite file at path. Pragmas are set through the DSN
// so that every pooled connection carries them.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Info("Database opened", "path", path)
	return &DB{db: sqlDB}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Accounts
const (
	sqlAccountColumns = `id, username, display_name, github, profile_image, is_staff, coalesce(token_hash, ''), created_at`

	sqlInsertAccount         = `INSERT INTO accounts(id, username, display_name, github, profile_image, is_staff, token_hash, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateAccountToken    = `UPDATE accounts SET token_hash = ? WHERE id = ?`
	sqlDeleteAccount         = `DELETE FROM accounts WHERE id = ?`
	sqlCountAccounts         = `SELECT count(*) FROM accounts`
	sqlSelectAccountById     = `SELECT ` + sqlAccountColumns + ` FROM accounts WHERE id = ?`
	sqlSelectAccountByName   = `SELECT ` + sqlAccountColumns + ` FROM accounts WHERE username = ?`
	sqlSelectAccountByToken  = `SELECT ` + sqlAccountColumns + ` FROM accounts WHERE token_hash = ?`
	sqlSelectAccountsOrdered = `SELECT ` + sqlAccountColumns + ` FROM accounts ORDER BY created_at`
)

func (db *DB) CreateAccount(ctx context.Context, acc *domain.Account) error {
	if acc.Id == uuid.Nil {
		acc.Id = uuid.New()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertAccount, acc.Id, acc.Username, acc.DisplayName, acc.Github, acc.ProfileImage, acc.IsStaff, nullable(acc.TokenHash), acc.CreatedAt)
		return err
	})
}

// CreateFirstAccount creates acc and marks it staff when no account exists yet.
func (db *DB) CreateFirstAccount(ctx context.Context, acc *domain.Account) error {
	if acc.Id == uuid.Nil {
		acc.Id = uuid.New()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, sqlCountAccounts).Scan(&count); err != nil {
			return err
		}
		acc.IsStaff = acc.IsStaff || count == 0
		_, err := tx.ExecContext(ctx, sqlInsertAccount, acc.Id, acc.Username, acc.DisplayName, acc.Github, acc.ProfileImage, acc.IsStaff, nullable(acc.TokenHash), acc.CreatedAt)
		return err
	})
}

func (db *DB) UpdateAccountToken(ctx context.Context, id uuid.UUID, tokenHash string) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return expectRows(tx.ExecContext(ctx, sqlUpdateAccountToken, tokenHash, id))
	})
}

// DeleteAccount removes the account together with its inbox.
func (db *DB) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return expectRows(tx.ExecContext(ctx, sqlDeleteAccount, id))
	})
}

func (db *DB) ReadAccById(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return scanAccount(db.db.QueryRowContext(ctx, sqlSelectAccountById, id))
}

func (db *DB) ReadAccByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return scanAccount(db.db.QueryRowContext(ctx, sqlSelectAccountByName, username))
}

func (db *DB) ReadAccByTokenHash(ctx context.Context, tokenHash string) (*domain.Account, error) {
	return scanAccount(db.db.QueryRowContext(ctx, sqlSelectAccountByToken, tokenHash))
}

func (db *DB) ReadAllAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectAccountsOrdered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(&acc.Id, &acc.Username, &acc.DisplayName, &acc.Github, &acc.ProfileImage, &acc.IsStaff, &acc.TokenHash, &acc.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &acc, nil
}

// wrapTransaction runs the given function within a transaction, starting
// over while the database reports SQLITE_BUSY.
func (db *DB) wrapTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	for {
		tx, err := db.db.BeginTx(ctx, nil)
		if err != nil {
			log.Error("Error starting transaction", "err", err)
			return err
		}
		err = f(tx)
		if err == nil {
			err = tx.Commit()
		} else {
			tx.Rollback()
		}
		if err == nil {
			return nil
		}
		if isBusy(err) && ctx.Err() == nil {
			continue
		}
		err = mapError(err)
		if !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrNotFound) {
			log.Error("Error in transaction", "err", err)
		}
		return err
	}
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code()&0xff == sqlitelib.SQLITE_BUSY
}

// mapError translates driver errors into the domain taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		if code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(code&0xff == sqlitelib.SQLITE_CONSTRAINT && strings.Contains(serr.Error(), "UNIQUE")) {
			return fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
	}
	return err
}

// expectRows turns an update that touched nothing into ErrNotFound.
func expectRows(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// nullable stores empty strings as NULL so that UNIQUE columns accept many.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

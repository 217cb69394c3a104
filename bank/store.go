package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound          = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Account is a single bank account.
type Account struct {
	Number    string
	Name      string
	Balance   float64
	CreatedAt time.Time
}

// Store persists accounts in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the account database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS accounts (
	number     TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	balance    REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateAccount creates an account with a freshly generated unique 10-digit
// account number and the given opening balance.
func (s *Store) CreateAccount(ctx context.Context, name string, initial float64) (Account, error) {
	if initial < 0 {
		return Account{}, fmt.Errorf("opening balance must not be negative")
	}
	acct := Account{
		Name:      name,
		Balance:   initial,
		CreatedAt: time.Now().UTC(),
	}
	// Number collisions are vanishingly rare across 9e9 candidates, but the
	// primary key makes them detectable, so retry a few times to be sure.
	for attempt := 0; attempt < 5; attempt++ {
		acct.Number = generateAccountNumber()
		_, err := s.db.ExecContext(ctx, `
INSERT INTO accounts(number, name, balance, created_at) VALUES (?, ?, ?, ?)`,
			acct.Number, acct.Name, acct.Balance, acct.CreatedAt.Format(time.RFC3339))
		if err == nil {
			return acct, nil
		}
		if !strings.Contains(err.Error(), "UNIQUE") {
			return Account{}, fmt.Errorf("insert account: %w", err)
		}
	}
	return Account{}, fmt.Errorf("could not generate a unique account number")
}

// Account returns the account with the given number.
func (s *Store) Account(ctx context.Context, number string) (Account, error) {
	var acct Account
	var created string
	err := s.db.QueryRowContext(ctx, `
SELECT number, name, balance, created_at FROM accounts WHERE number = ?`, number).
		Scan(&acct.Number, &acct.Name, &acct.Balance, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("query account: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		acct.CreatedAt = t
	}
	return acct, nil
}

// Deposit adds amount to the account balance and returns the new balance.
func (s *Store) Deposit(ctx context.Context, number string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deposit amount must be positive")
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE accounts SET balance = balance + ? WHERE number = ?`, amount, number)
	if err != nil {
		return 0, fmt.Errorf("deposit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deposit rows affected: %w", err)
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return s.balance(ctx, number)
}

// Withdraw removes amount from the account balance and returns the new
// balance. Withdrawals that would overdraw the account fail with
// ErrInsufficientFunds and leave the balance unchanged.
func (s *Store) Withdraw(ctx context.Context, number string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("withdrawal amount must be positive")
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE accounts SET balance = balance - ? WHERE number = ? AND balance >= ?`, amount, number, amount)
	if err != nil {
		return 0, fmt.Errorf("withdraw: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("withdraw rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.Account(ctx, number); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientFunds
	}
	return s.balance(ctx, number)
}

func (s *Store) balance(ctx context.Context, number string) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx, `
SELECT balance FROM accounts WHERE number = ?`, number).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

func generateAccountNumber() string {
	return strconv.FormatInt(1_000_000_000+rand.Int63n(9_000_000_000), 10)
}

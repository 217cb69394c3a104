package bank

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "bank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	acct, err := s.CreateAccount(ctx, "Ada", 100)
	require.NoError(t, err)
	assert.Len(t, acct.Number, 10)
	assert.Equal(t, "Ada", acct.Name)
	assert.Equal(t, 100.0, acct.Balance)

	got, err := s.Account(ctx, acct.Number)
	require.NoError(t, err)
	assert.Equal(t, acct.Number, got.Number)
	assert.Equal(t, 100.0, got.Balance)
}

func TestCreateAccountUniqueNumbers(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		acct, err := s.CreateAccount(ctx, "holder", 0)
		require.NoError(t, err)
		assert.False(t, seen[acct.Number], "duplicate account number %s", acct.Number)
		seen[acct.Number] = true
	}
}

func TestAccountNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Account(context.Background(), "0000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDepositAndWithdraw(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	acct, err := s.CreateAccount(ctx, "Ada", 100)
	require.NoError(t, err)

	balance, err := s.Deposit(ctx, acct.Number, 50)
	require.NoError(t, err)
	assert.Equal(t, 150.0, balance)

	balance, err = s.Withdraw(ctx, acct.Number, 25)
	require.NoError(t, err)
	assert.Equal(t, 125.0, balance)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	acct, err := s.CreateAccount(ctx, "Ada", 10)
	require.NoError(t, err)

	_, err = s.Withdraw(ctx, acct.Number, 25)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	got, err := s.Account(ctx, acct.Number)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Balance)
}

func TestAmountValidation(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	acct, err := s.CreateAccount(ctx, "Ada", 10)
	require.NoError(t, err)

	_, err = s.Deposit(ctx, acct.Number, -5)
	assert.Error(t, err)
	_, err = s.Withdraw(ctx, acct.Number, 0)
	assert.Error(t, err)
	_, err = s.CreateAccount(ctx, "Bob", -1)
	assert.Error(t, err)
}

func TestOperationsOnMissingAccount(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, err := s.Deposit(ctx, "0000000000", 5)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Withdraw(ctx, "0000000000", 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Package bank implements the teller console: a line-based interactive
// banking program backed by a SQLite account store. It reads commands from an
// input stream and writes responses to an output stream, which makes it
// equally usable on a local terminal and behind the session bridge.
package bank

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const helpText = `Commands:
  create <name> <amount>   open an account with an opening balance
  login <number>           select the account to operate on
  balance                  show the balance of the selected account
  deposit <amount>         add funds to the selected account
  withdraw <amount>        remove funds from the selected account
  help                     show this message
  exit                     end the session`

// REPL is the interactive teller loop. It holds at most one selected account
// at a time; all balance operations apply to the selected account.
type REPL struct {
	store   *Store
	in      io.Reader
	out     io.Writer
	account string
}

func NewREPL(store *Store, in io.Reader, out io.Writer) *REPL {
	return &REPL{store: store, in: in, out: out}
}

// Run prints a banner and processes commands until the input stream ends or
// the user exits. The banner doubles as the readiness signal for callers that
// wait for first output before sending commands.
func (r *REPL) Run(ctx context.Context) error {
	r.printf("Welcome to the teller console. Type 'help' for commands.\n")
	r.prompt()

	scanner := bufio.NewScanner(r.in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			r.prompt()
			continue
		}
		fields := strings.Fields(line)
		cmd, args := strings.ToLower(fields[0]), fields[1:]
		if cmd == "exit" || cmd == "quit" {
			r.printf("Goodbye.\n")
			return nil
		}
		if err := r.dispatch(ctx, cmd, args); err != nil {
			r.printf("error: %s\n", err)
		}
		r.prompt()
	}
	return scanner.Err()
}

func (r *REPL) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		r.printf("%s\n", helpText)
		return nil
	case "create":
		return r.create(ctx, args)
	case "login":
		return r.login(ctx, args)
	case "balance":
		return r.balance(ctx)
	case "deposit":
		return r.deposit(ctx, args)
	case "withdraw":
		return r.withdraw(ctx, args)
	default:
		return fmt.Errorf("unknown command %q, type 'help' for commands", cmd)
	}
}

func (r *REPL) create(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: create <name> <amount>")
	}
	amount, err := parseAmount(args[len(args)-1])
	if err != nil {
		return err
	}
	name := strings.Join(args[:len(args)-1], " ")
	acct, err := r.store.CreateAccount(ctx, name, amount)
	if err != nil {
		return err
	}
	r.account = acct.Number
	r.printf("Account created. Account number: %s\n", acct.Number)
	return nil
}

func (r *REPL) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: login <number>")
	}
	acct, err := r.store.Account(ctx, args[0])
	if err != nil {
		return err
	}
	r.account = acct.Number
	r.printf("Hello, %s.\n", acct.Name)
	return nil
}

func (r *REPL) balance(ctx context.Context) error {
	if r.account == "" {
		return errors.New("no account selected, use 'login' or 'create' first")
	}
	acct, err := r.store.Account(ctx, r.account)
	if err != nil {
		return err
	}
	r.printf("%s\n", formatAmount(acct.Balance))
	return nil
}

func (r *REPL) deposit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: deposit <amount>")
	}
	if r.account == "" {
		return errors.New("no account selected, use 'login' or 'create' first")
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	balance, err := r.store.Deposit(ctx, r.account, amount)
	if err != nil {
		return err
	}
	r.printf("Deposited %s. New balance: %s\n", formatAmount(amount), formatAmount(balance))
	return nil
}

func (r *REPL) withdraw(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: withdraw <amount>")
	}
	if r.account == "" {
		return errors.New("no account selected, use 'login' or 'create' first")
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	balance, err := r.store.Withdraw(ctx, r.account, amount)
	if err != nil {
		return err
	}
	r.printf("Withdrew %s. New balance: %s\n", formatAmount(amount), formatAmount(balance))
	return nil
}

func (r *REPL) prompt() {
	r.printf("> ")
}

func (r *REPL) printf(format string, args ...any) {
	// Output delivery is best-effort; a broken pipe ends the loop via the
	// scanner shortly after.
	fmt.Fprintf(r.out, format, args...)
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

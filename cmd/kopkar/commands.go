package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/kopkar/kopkar-client/pkg/kopkar"
	"github.com/kopkar/kopkar-client/pkg/pagination"
	"github.com/kopkar/kopkar-client/pkg/session"
)

var errUsage = errors.New("usage error")

type command struct {
	usage string
	run   func(ctx context.Context, app *App, args []string) error
}

var commands = map[string]command{
	"login":   {"login -u <username> -p <password>", runLogin},
	"logout":  {"logout", runLogout},
	"status":  {"status", runStatus},
	"verify":  {"verify", runVerify},
	"profile": {"profile", runProfile},
	"total":   {"total --type pinjaman|simpanan", runTotal},
	"history": {"history --type pinjaman|simpanan [--limit n] [--all] [--max-pages n]", runHistory},
	"loan":    {"loan --amount <amount>", runLoan},
	"deposit": {"deposit --amount <amount> --file <proof image>", runDeposit},
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: kopkar [global flags] <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagSet(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

func historyTypeFlag(fs *pflag.FlagSet) *string {
	return fs.String("type", string(kopkar.HistorySavings), "History type (pinjaman, simpanan)")
}

func runLogin(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("login")
	username := fs.StringP("username", "u", "", "Member username")
	password := fs.StringP("password", "p", "", "Member password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.Service.SignIn(ctx, *username, *password); err != nil {
		return err
	}

	out := map[string]any{"signed_in": true}
	if name, err := app.Service.Session().Name(ctx); err == nil {
		out["name"] = name
	}
	return writeJSON(app.Out, out)
}

func runLogout(ctx context.Context, app *App, _ []string) error {
	if err := app.Service.SignOut(ctx); err != nil {
		return err
	}
	return writeJSON(app.Out, map[string]any{"signed_in": false})
}

func runStatus(ctx context.Context, app *App, _ []string) error {
	sess := app.Service.Session()

	signedIn, err := sess.IsSignedIn(ctx)
	if err != nil {
		return err
	}

	out := map[string]any{"signed_in": signedIn}
	name, err := sess.Name(ctx)
	switch {
	case err == nil:
		out["name"] = name
	case !errors.Is(err, session.ErrNotFound):
		return err
	}
	return writeJSON(app.Out, out)
}

func runVerify(ctx context.Context, app *App, _ []string) error {
	if err := app.Service.Verify(ctx); err != nil {
		return err
	}
	return writeJSON(app.Out, map[string]any{"valid": true})
}

func runProfile(ctx context.Context, app *App, _ []string) error {
	profile, err := app.Service.Profile(ctx)
	if err != nil {
		return err
	}
	return writeJSON(app.Out, struct {
		*kopkar.Profile
		MemberID string `json:"member_id"`
	}{profile, profile.MemberID()})
}

func runTotal(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("total")
	typeFlag := historyTypeFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	typ, err := kopkar.ParseHistoryType(*typeFlag)
	if err != nil {
		return err
	}

	total, err := app.Service.Total(ctx, typ)
	if err != nil {
		return err
	}
	return writeJSON(app.Out, map[string]any{"type": typ, "total": total})
}

func runHistory(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("history")
	typeFlag := historyTypeFlag(fs)
	limit := fs.Int("limit", kopkar.DefaultPageSize, "Rows per page")
	all := fs.Bool("all", false, "Fetch every page")
	maxPages := fs.Int("max-pages", pagination.DefaultCollectConfig().MaxPages, "Page bound for --all (0 = no bound)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	typ, err := kopkar.ParseHistoryType(*typeFlag)
	if err != nil {
		return err
	}

	if !*all {
		overview, err := app.Service.Overview(ctx, typ, *limit)
		if err != nil {
			return err
		}
		return writeJSON(app.Out, overview)
	}

	cfg := pagination.DefaultCollectConfig()
	cfg.MaxPages = *maxPages
	entries, err := pagination.Collect(ctx, app.Service.HistoryFetcher(typ, *limit), cfg)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []kopkar.HistoryEntry{}
	}
	return writeJSON(app.Out, map[string]any{"type": typ, "entries": entries})
}

func parseAmount(fs *pflag.FlagSet, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("%w: --amount is required", errUsage)
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid --amount %q for %s", errUsage, value, fs.Name())
	}
	return amount, nil
}

func runLoan(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("loan")
	amountFlag := fs.String("amount", "", "Loan amount")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := parseAmount(fs, *amountFlag)
	if err != nil {
		return err
	}

	msg, err := app.Service.RequestLoan(ctx, amount)
	if err != nil {
		return err
	}
	return writeJSON(app.Out, map[string]any{"message": msg})
}

func runDeposit(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("deposit")
	amountFlag := fs.String("amount", "", "Deposit amount")
	file := fs.String("file", "", "Transfer proof image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	amount, err := parseAmount(fs, *amountFlag)
	if err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: --file is required", errUsage)
	}

	proof, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open proof: %w", err)
	}
	defer proof.Close()

	msg, err := app.Service.Deposit(ctx, kopkar.DepositRequest{
		Amount:   amount,
		Proof:    proof,
		FileName: *file,
	})
	if err != nil {
		return err
	}
	return writeJSON(app.Out, map[string]any{"message": msg})
}

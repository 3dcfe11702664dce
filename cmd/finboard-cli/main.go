package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"finboard/internal/cli"
	"finboard/internal/client"
	"finboard/internal/core"
	"finboard/internal/log"
)

const usage = `usage: finboard-cli <command> [options]

commands:
  summary          dashboard totals, insights and recent activity
  accounts         list accounts and the total balance
  transactions     list transactions (-from/-to to filter)
  add-account      create an account (-name, -balance)
  add-transaction  record a transaction (-amount, -description, -type, -category, -account, -date)

environment:
  FINBOARD_URL     API base URL (default http://localhost:8080)
  FINBOARD_USER    user id (default the demo user)`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("cli")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(log.NewContext(context.Background(), logger), 30*time.Second)
	defer cancel()

	c := client.New(envOr("FINBOARD_URL", "http://localhost:8080"), envOr("FINBOARD_USER", core.DemoUser.ID))
	if err := run(ctx, c, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, c *client.Client, command string, args []string, out io.Writer) error {
	switch command {
	case "summary":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		date := fs.String("date", "", "reference date (YYYY-MM-DD)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		ref, err := optionalDate(*date)
		if err != nil {
			return err
		}
		return summary(ctx, c, ref, out)

	case "accounts":
		store := client.NewAccounts(c)
		if err := store.Refetch(ctx); err != nil {
			fmt.Fprintln(out, "No data available")
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tBALANCE\tID")
		for _, a := range store.Items() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, a.Balance, a.ID)
		}
		fmt.Fprintf(tw, "TOTAL\t%s\t\n", store.TotalBalance())
		return tw.Flush()

	case "transactions":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		from := fs.String("from", "", "start date (YYYY-MM-DD)")
		to := fs.String("to", "", "end date (YYYY-MM-DD)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		txs, err := listTransactions(ctx, c, *from, *to)
		if err != nil {
			fmt.Fprintln(out, "No data available")
			return err
		}
		printTransactions(out, txs)
		return nil

	case "add-account":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		name := fs.String("name", "", "account name")
		balance := fs.String("balance", "0", "opening balance")
		if err := fs.Parse(args); err != nil {
			return err
		}
		amount, err := core.ParseMoney(*balance)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		acct, err := client.NewAccounts(c).Add(ctx, *name, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created account %s (%s) with balance %s\n", acct.Name, acct.ID, acct.Balance)
		return nil

	case "add-transaction":
		return addTransaction(ctx, c, args, out)

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func summary(ctx context.Context, c *client.Client, ref time.Time, out io.Writer) error {
	d, err := c.Dashboard(ctx, ref)
	if err != nil {
		fmt.Fprintln(out, "No data available")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total balance\t%s\t(%d accounts)\n", d.TotalBalance, d.AccountCount)
	fmt.Fprintf(tw, "Monthly income\t%s\t\n", d.MonthlyIncome)
	fmt.Fprintf(tw, "Monthly expenses\t%s\t\n", d.MonthlyExpenses)
	fmt.Fprintf(tw, "Savings rate\t%.1f%%\t\n", d.SavingsRate)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.CategoryData) > 0 {
		fmt.Fprintln(out, "\nSpending by category")
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, cv := range d.CategoryData {
			fmt.Fprintf(tw, "  %s\t%s\n", cv.Name, cv.Value)
		}
		tw.Flush()
	}

	fmt.Fprintln(out, "\nInsights")
	for _, in := range d.Insights {
		fmt.Fprintf(out, "  %s: %s\n", in.Title, in.Text)
	}

	fmt.Fprintln(out, "\nRecent transactions")
	printTransactions(out, d.RecentTransactions)
	return nil
}

func listTransactions(ctx context.Context, c *client.Client, from, to string) ([]core.Transaction, error) {
	if from == "" && to == "" {
		store := client.NewTransactions(c)
		err := store.Refetch(ctx)
		return store.Items(), err
	}
	if from == "" || to == "" {
		return nil, errors.New("-from and -to must be given together")
	}
	start, err := core.ParseDate(from, time.Local)
	if err != nil {
		return nil, fmt.Errorf("-from: %w", err)
	}
	end, err := core.ParseDate(to, time.Local)
	if err != nil {
		return nil, fmt.Errorf("-to: %w", err)
	}
	return c.TransactionsBetween(ctx, start, end.AddDate(0, 0, 1).Add(-time.Millisecond))
}

func printTransactions(out io.Writer, txs []core.Transaction) {
	if len(txs) == 0 {
		fmt.Fprintln(out, "  No transactions yet")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	for _, t := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.Date.Local().Format(time.DateOnly), t.Type, t.SignedAmount(), t.CategoryName(), t.Description)
	}
	tw.Flush()
}

// addTransaction resolves -category by name and -account by id or name.
func addTransaction(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-transaction", flag.ContinueOnError)
	amountArg := fs.String("amount", "", "positive amount")
	description := fs.String("description", "", "description")
	typeArg := fs.String("type", "EXPENSE", "INCOME or EXPENSE")
	category := fs.String("category", "", "category name")
	account := fs.String("account", "", "account id or name")
	date := fs.String("date", "", "date (YYYY-MM-DD), defaults to now")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := core.ParseMoney(*amountArg)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	txType, err := core.ParseTransactionType(*typeArg)
	if err != nil {
		return err
	}
	when, err := optionalDate(*date)
	if err != nil {
		return err
	}

	cats := client.NewCategories(c)
	if err := cats.Refetch(ctx); err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	cat, ok := cats.ByName(*category)
	if !ok {
		return fmt.Errorf("unknown category %q", *category)
	}

	accounts := client.NewAccounts(c)
	if err := accounts.Refetch(ctx); err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	accountID := ""
	for _, a := range accounts.Items() {
		if a.ID == *account || strings.EqualFold(a.Name, *account) {
			accountID = a.ID
			break
		}
	}
	if accountID == "" {
		return fmt.Errorf("unknown account %q", *account)
	}

	tx, err := client.NewTransactions(c).Add(ctx, client.NewTransaction{
		Amount:      amount,
		Description: *description,
		Type:        txType,
		CategoryID:  cat.ID,
		AccountID:   accountID,
		Date:        when,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Recorded %s %s (%s) on %s\n", tx.Type, tx.Amount, tx.Description, tx.Date.Local().Format(time.DateOnly))
	return nil
}

func optionalDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return core.ParseDate(s, time.Local)
}

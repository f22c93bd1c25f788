package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"accounting-engine/internal/app"
	"accounting-engine/internal/core"
)

func newTaxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Split an amount into net, tax and gross",
		Example: `  engine tax --base 100 --rate 18
  engine tax --base 118 --rate 18 --mode inclusive
  engine tax --base 100 --rate 5 --fixed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseFlag, _ := cmd.Flags().GetString("base")
			rateFlag, _ := cmd.Flags().GetString("rate")
			modeFlag, _ := cmd.Flags().GetString("mode")
			fixed, _ := cmd.Flags().GetBool("fixed")

			base, err := decimal.NewFromString(baseFlag)
			if err != nil {
				return fmt.Errorf("invalid --base %q: %w", baseFlag, err)
			}
			rate, err := decimal.NewFromString(rateFlag)
			if err != nil {
				return fmt.Errorf("invalid --rate %q: %w", rateFlag, err)
			}
			mode, err := core.ParseTaxMode(modeFlag)
			if err != nil {
				return err
			}
			tax := core.Tax{Rate: rate, Computation: core.TaxPercentage}
			if fixed {
				tax.Computation = core.TaxFixed
			}
			result, err := tax.Apply(base, mode)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().String("base", "0", "Base amount")
	cmd.Flags().String("rate", "0", "Tax rate in percent, or the tax amount with --fixed")
	cmd.Flags().String("mode", string(core.TaxExclusive), "exclusive or inclusive")
	cmd.Flags().Bool("fixed", false, "Treat --rate as a fixed tax amount")
	return cmd
}

func newJournalCommand(backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Validate and post manual journal entries",
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check that a journal entry balances",
		Long: `Reads a journal entry as JSON ({"lines":[{"account_id":1,"debit":"100"},...]})
from --file or stdin and applies the double-entry rules without touching the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readJournalInput(cmd)
			if err != nil {
				return err
			}
			if err := core.ValidateJournalLines(input.Lines); err != nil {
				return err
			}
			debits, credits := core.JournalTotals(input.Lines)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"valid":   true,
				"debits":  debits.StringFixed(2),
				"credits": credits.StringFixed(2),
			})
		},
	}
	validate.Flags().String("file", "", "Read the entry from this file instead of stdin")

	post := &cobra.Command{
		Use:   "post",
		Short: "Validate and post a journal entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetInt("org")
			input, err := readJournalInput(cmd)
			if err != nil {
				return err
			}
			input.OrganizationID = org
			return withService(cmd, backend, func(svc app.ApplicationService) error {
				entry, err := svc.PostJournalEntry(cmd.Context(), input)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entry)
			})
		},
	}
	post.Flags().String("file", "", "Read the entry from this file instead of stdin")
	post.Flags().Int("org", 0, "Organization ID")
	_ = post.MarkFlagRequired("org")

	cmd.AddCommand(validate, post)
	return cmd
}

func readJournalInput(cmd *cobra.Command) (core.JournalEntryInput, error) {
	var input core.JournalEntryInput
	r := cmd.InOrStdin()
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return input, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return input, fmt.Errorf("invalid journal entry JSON: %w", err)
	}
	return input, nil
}

func newSequenceCommand(backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Work with document sequences",
	}
	next := &cobra.Command{
		Use:     "next",
		Short:   "Issue the next document number",
		Example: `  engine sequence next --org 1 --type INV`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetInt("org")
			docType, _ := cmd.Flags().GetString("type")
			return withService(cmd, backend, func(svc app.ApplicationService) error {
				num, err := svc.IssueDocumentNumber(cmd.Context(), org, docType)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), num)
			})
		},
	}
	next.Flags().Int("org", 0, "Organization ID")
	next.Flags().String("type", "", "Document type (SO, INV, BILL, PAY, JE)")
	_ = next.MarkFlagRequired("org")
	_ = next.MarkFlagRequired("type")
	cmd.AddCommand(next)
	return cmd
}

func newOnboardCommand(backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Create an organization with default sequences and chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			return withService(cmd, backend, func(svc app.ApplicationService) error {
				org, err := svc.OnboardOrganization(cmd.Context(), name)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), org)
			})
		},
	}
	cmd.Flags().String("name", "", "Organization name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newBalanceCommand(backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show or recompute a partner balance",
	}

	run := func(recompute bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetInt("org")
			contact, _ := cmd.Flags().GetInt("contact")
			return withService(cmd, backend, func(svc app.ApplicationService) error {
				var (
					b   *core.PartnerBalance
					err error
				)
				if recompute {
					b, err = svc.RecomputePartnerBalance(cmd.Context(), org, contact)
				} else {
					b, err = svc.GetPartnerBalance(cmd.Context(), org, contact)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b)
			})
		}
	}

	show := &cobra.Command{Use: "show", Short: "Show the cached balance", Args: cobra.NoArgs, RunE: run(false)}
	recompute := &cobra.Command{Use: "recompute", Short: "Recompute the balance from source documents", Args: cobra.NoArgs, RunE: run(true)}
	for _, c := range []*cobra.Command{show, recompute} {
		c.Flags().Int("org", 0, "Organization ID")
		c.Flags().Int("contact", 0, "Contact ID")
		_ = c.MarkFlagRequired("org")
		_ = c.MarkFlagRequired("contact")
	}
	cmd.AddCommand(show, recompute)
	return cmd
}

func newVerifyCommand(backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare cached partner balances with the source documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetInt("org")
			return withService(cmd, backend, func(svc app.ApplicationService) error {
				result, err := svc.VerifyPartnerBalances(cmd.Context(), org)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if !result.Consistent {
					return fmt.Errorf("%d partner balance(s) out of date", len(result.Discrepancies))
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("org", 0, "Organization ID")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newMigrateCommand(backend Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if backend.Migrate == nil {
				return fmt.Errorf("migrate needs a database connection")
			}
			applied, err := backend.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"applied": applied})
		},
	}
}

func newReportCommand(backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Ledger reports",
	}

	pl := &cobra.Command{
		Use:     "pl",
		Short:   "Profit and loss over a period",
		Example: `  engine report pl --org 1 --from 2026-01-01 --to 2026-03-31`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetInt("org")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			return withService(cmd, backend, func(svc app.ApplicationService) error {
				report, err := svc.GetProfitAndLoss(cmd.Context(), app.PeriodRequest{OrganizationID: org, From: from, To: to})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}

	statement := &cobra.Command{
		Use:     "statement",
		Short:   "Lines posted to one account with a running balance",
		Example: `  engine report statement --org 1 --account 1100`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetInt("org")
			account, _ := cmd.Flags().GetString("account")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			return withService(cmd, backend, func(svc app.ApplicationService) error {
				lines, err := svc.GetAccountStatement(cmd.Context(), app.AccountStatementRequest{
					OrganizationID: org,
					AccountCode:    account,
					From:           from,
					To:             to,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), lines)
			})
		},
	}
	statement.Flags().String("account", "", "Account code")
	_ = statement.MarkFlagRequired("account")

	for _, c := range []*cobra.Command{pl, statement} {
		c.Flags().Int("org", 0, "Organization ID")
		c.Flags().String("from", "", "Period start (YYYY-MM-DD)")
		c.Flags().String("to", "", "Period end (YYYY-MM-DD)")
		_ = c.MarkFlagRequired("org")
	}
	cmd.AddCommand(pl, statement)
	return cmd
}

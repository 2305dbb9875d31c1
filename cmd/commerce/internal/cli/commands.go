package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	commerce "github.com/goliatone/go-commerce"
	"github.com/goliatone/go-commerce/webhooks"
)

func newRefreshCommand() *cobra.Command {
	var ifExpiring time.Duration

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			if ifExpiring > 0 {
				result, err := session.Client.EnsureFresh(cmd.Context(), ifExpiring)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), session.persistFields(map[string]any{
					"refreshed":  result.Refreshed,
					"expires_at": result.State.ExpiresAt,
				}))
			}
			out, err := session.Client.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), session.persistFields(map[string]any{
				"refreshed":  true,
				"token_type": out.TokenType,
				"expires_in": out.ExpiresIn,
				"scope":      out.Scope,
			}))
		},
	}
	cmd.Flags().DurationVar(&ifExpiring, "if-expiring", 0, "Only refresh when the access token expires within this window")
	return cmd
}

func newVerifyCallbackCommand() *cobra.Command {
	var bodyFile string
	var signature string
	var keyFile string

	cmd := &cobra.Command{
		Use:   "verify-callback",
		Short: "Check the signature of a callback body",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd.InOrStdin(), bodyFile)
			if err != nil {
				return err
			}
			verifier, err := loadVerifier(keyFile)
			if err != nil {
				return err
			}
			if err := verifier.Check(body, signature); err != nil {
				return fmt.Errorf("callback signature rejected: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&bodyFile, "body-file", "-", "File holding the raw callback body, - for stdin")
	cmd.Flags().StringVar(&signature, "signature", "", "Value of the CB-SIGNATURE header")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "PEM public key of the callback signer")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func newTimeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "time",
		Short: "Print the API server time",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			out, err := session.Client.GetTime(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newSpotPriceCommand() *cobra.Command {
	var pair string
	var date string

	cmd := &cobra.Command{
		Use:   "spot-price",
		Short: "Print the spot price of a currency pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			out, err := session.Client.GetSpotPrice(cmd.Context(), commerce.PriceParams{CurrencyPair: pair, Date: date})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&pair, "pair", "BTC-USD", "Currency pair, for example BTC-EUR")
	cmd.Flags().StringVar(&date, "date", "", "Historic date in YYYY-MM-DD")
	return cmd
}

func newAccountsCommand() *cobra.Command {
	var limit int
	var all bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts of the authorized user",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			page, err := session.Client.GetAccounts(cmd.Context(), commerce.ListOptions{Limit: limit})
			if err != nil {
				return err
			}
			if !all {
				return printJSON(cmd.OutOrStdout(), page.Data)
			}
			accounts, err := commerce.CollectAll(cmd.Context(), page, 0)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), accounts)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "Page size")
	cmd.Flags().BoolVar(&all, "all", false, "Follow pagination until the last page")
	return cmd
}

func readBody(stdin io.Reader, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func loadVerifier(path string) (*webhooks.CallbackVerifier, error) {
	if strings.TrimSpace(path) == "" {
		return webhooks.DefaultCallbackVerifier()
	}
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return webhooks.NewCallbackVerifier(pemBytes)
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

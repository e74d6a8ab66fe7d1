package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/jupiter"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
)

func runQuote(cmd *cobra.Command, args []string) error {
	baseURL, _ := cmd.Flags().GetString("jupiter-url")
	apiKey, _ := cmd.Flags().GetString("jupiter-api-key")
	slippage, _ := cmd.Flags().GetUint16("slippage-bps")
	dexes, _ := cmd.Flags().GetStringSlice("dexes")

	for _, m := range args[:2] {
		if _, err := solana.PublicKeyFromBase58(m); err != nil {
			return fmt.Errorf("invalid mint %q: %w", m, err)
		}
	}
	if _, err := strconv.ParseUint(args[2], 10, 64); err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[2], err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client := jupiter.NewClient(baseURL, apiKey)
	out, err := client.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   args[0],
		OutputMint:  args[1],
		Amount:      args[2],
		SlippageBps: &slippage,
		Dexes:       dexes,
	})
	if err != nil {
		return err
	}

	b, err := sonnet.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

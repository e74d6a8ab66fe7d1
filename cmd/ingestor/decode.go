package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/decoder"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/pricing"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
)

// runDecode decodes one payload, taken from the argument or from stdin, and
// prints it as a pool update.
func runDecode(cmd *cobra.Command, args []string) error {
	layoutName, _ := cmd.Flags().GetString("layout")
	encoding, _ := cmd.Flags().GetString("encoding")
	decA, _ := cmd.Flags().GetUint8("decimals-a")
	decB, _ := cmd.Flags().GetUint8("decimals-b")

	layout, err := decoder.ParseLayout(layoutName)
	if err != nil {
		return err
	}

	var payload string
	if len(args) == 1 {
		payload = args[0]
	} else {
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			return fmt.Errorf("payload is required")
		}
		payload = sc.Text()
	}

	snap, err := decoder.For(layout)(strings.TrimSpace(payload), encoding)
	if err != nil {
		return err
	}

	st := models.TieredState{PoolState: models.NewPoolState(models.NullAddress, snap)}
	var price string
	if decA > 0 || decB > 0 {
		price = pricing.SqrtPriceToPrice(&st.SqrtPrice, decA, decB).Round(12).String()
	}
	out := models.NewPoolUpdate(&st, "", price)
	out.Tier, out.Pool = "", ""

	b, err := sonnet.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-quote-engine/internal/app"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/apperror"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/config"
	"github.com/aman-zulfiqar/solana-quote-engine/internal/swapengine"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "quote", "quote | sign")
	from := flag.String("from", "SOL", "input token symbol (e.g. SOL)")
	to := flag.String("to", "USDC", "output token symbol (e.g. USDC)")
	amount := flag.String("amount", "", "amount in human units (e.g. 0.1)")
	balance := flag.String("balance", "", "optional balance cap in human units")
	slippage := flag.String("slippage", "", "slippage in percent (0.1 to 5)")
	asJSON := flag.Bool("json", false, "print the full result as JSON")
	verbose := flag.Bool("v", false, "log provider activity")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Load()
	cfg.TickerEnabled = false // one-shot: no stream to warm up
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}

	input := swapengine.QuoteInput{From: *from, To: *to, Amount: *amount}
	if *balance != "" {
		b, err := decimal.NewFromString(*balance)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -balance:", err)
			os.Exit(2)
		}
		input.Balance = &b
	}
	if *slippage != "" {
		s, err := decimal.NewFromString(*slippage)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -slippage:", err)
			os.Exit(2)
		}
		input.SlippagePct = &s
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init quote service:", err)
		os.Exit(1)
	}
	defer svc.Close()

	session := svc.Sessions.Get("cli")
	out, err := session.RequestQuote(ctx, input)
	if err != nil {
		exitWith(err)
	}

	switch *mode {
	case "quote":
		if *asJSON {
			printJSON(out)
			return
		}
		fmt.Printf("%s -> %s in=%s out=%s min=%s impact=%s%% source=%s route=%s\n",
			out.Quote.InputToken, out.Quote.OutputToken, *amount, out.EstimatedOutput,
			out.MinimumReceived, out.PriceImpact.String(), out.Quote.Source, out.Quote.SourceLabel)
		for _, f := range out.Failures {
			fmt.Printf("  skipped %s\n", f.String())
		}
	case "sign":
		signed, err := svc.Engine.SignSwap(ctx, session, svc.Wallet)
		if err != nil {
			exitWith(err)
		}
		if *asJSON {
			printJSON(signed)
			return
		}
		fmt.Printf("owner=%s min=%s valid_until_block=%d\n%s\n",
			signed.Owner, out.MinimumReceived, signed.LastValidBlockHeight, signed.SignedTransaction)
	default:
		fmt.Fprintln(os.Stderr, "invalid -mode (use quote|sign)")
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func exitWith(err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", apperror.GetCode(err), err)
	if apperror.StatusCode(err) < 500 {
		os.Exit(2)
	}
	os.Exit(1)
}

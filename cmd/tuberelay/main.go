// Command tuberelay: YouTube relay backend for a constrained console client.
//
//	run     Serve the relay API (default when no subcommand is given)
//	probe   One-shot diagnostics: yt-dlp version, cookie bundle, PoT sidecar liveness
//	update  Upgrade yt-dlp + PoT provider plugin via pip and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/darktube/tuberelay/internal/config"
	"github.com/darktube/tuberelay/internal/cookies"
	"github.com/darktube/tuberelay/internal/pot"
	"github.com/darktube/tuberelay/internal/relay"
	"github.com/darktube/tuberelay/internal/ytdlp"
)

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[tuberelay] ")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runAddr := runCmd.String("addr", "", "Listen address (default: :PORT from env)")

	probeCmd := flag.NewFlagSet("probe", flag.ExitOnError)
	probeTimeout := probeCmd.Duration("timeout", 10*time.Second, "Overall probe timeout")

	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)

	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "run", "probe", "update":
			cmd = args[0]
			args = args[1:]
		case "-h", "-help", "--help":
			fmt.Fprintf(os.Stderr, "Usage: %s [run|probe|update] [flags]\n", os.Args[0])
			fmt.Fprintf(os.Stderr, "  run     Serve the relay API (default)\n")
			fmt.Fprintf(os.Stderr, "  probe   Report yt-dlp version, cookie status, PoT provider liveness\n")
			fmt.Fprintf(os.Stderr, "  update  Upgrade yt-dlp and exit\n")
			os.Exit(1)
		}
	}

	cfg := config.Load()

	switch cmd {
	case "run":
		_ = runCmd.Parse(args)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := relay.New(cfg)
		if *runAddr != "" {
			srv.Addr = *runAddr
		}
		startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		log.Printf("%s v%s starting on %s", relay.ServiceName, relay.ServiceVersion, srv.Addr)
		log.Printf("yt-dlp version: %s", srv.Runner.Version(startCtx))
		log.Printf("PO Token provider: %s", cfg.PotProviderURL)
		cs := srv.Cookies.Status()
		if cs.Loaded {
			log.Printf("Cookies: loaded (%d entries, %s)", cs.Entries, cs.Reason)
		} else {
			log.Printf("Cookies: %s", cs.Reason)
		}
		cancel()

		if err := srv.Run(ctx); err != nil {
			log.Printf("Serve failed: %v", err)
			os.Exit(1)
		}

	case "probe":
		_ = probeCmd.Parse(args)
		ctx, cancel := context.WithTimeout(context.Background(), *probeTimeout)
		defer cancel()
		runner := &ytdlp.Runner{Path: cfg.YtDlpPath}
		log.Printf("yt-dlp: %s (%s)", runner.Version(ctx), cfg.YtDlpPath)
		store := &cookies.Store{Path: cfg.CookiesPath}
		cs := store.Status()
		log.Printf("cookies: loaded=%t valid=%t entries=%d reason=%q (%s)",
			cs.Loaded, cs.Valid, cs.Entries, cs.Reason, cfg.CookiesPath)
		potc := &pot.Client{BaseURL: cfg.PotProviderURL, Timeout: cfg.PotTimeout}
		ps := potc.Probe(ctx)
		log.Printf("pot provider: available=%t url=%s", ps.Available, ps.URL)
		if !ps.Available || !cs.Loaded {
			os.Exit(1)
		}

	case "update":
		_ = updateCmd.Parse(args)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		runner := &ytdlp.Runner{Path: cfg.YtDlpPath}
		before := runner.Version(ctx)
		out, err := runner.Update(ctx)
		if err != nil {
			log.Printf("Update failed: %v\n%s", err, out)
			os.Exit(1)
		}
		log.Printf("yt-dlp: %s -> %s", before, runner.Version(ctx))

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", cmd)
		os.Exit(1)
	}
}

// Command vcf is a device-local client for contact gathering sessions.
//
// Usage:
//
//	vcf [-token TOKEN] <command> [flags] [args]
//
// The creator identity comes from -token or VCF_TOKEN; without one the client acts
// anonymously. Submission records are kept in DEVICE_DIR.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vcfgather/server/internal/app"
	"github.com/vcfgather/server/internal/auth"
	"github.com/vcfgather/server/internal/config"
	"github.com/vcfgather/server/internal/logger"
	"github.com/vcfgather/server/internal/quota"
	"github.com/vcfgather/server/internal/session"
)

func usage() {
	fmt.Fprint(os.Stderr, `usage: vcf [-token TOKEN] <command> [flags] [args]

commands:
  token     [-creator ID]                      issue a creator token
  create    -name NAME -link URL [-minutes N]  create a session
  sessions                                     creator dashboard
  show      SESSION                            session, view and quota state
  join      SESSION -name NAME -dial +CC -number N
  list      SESSION [-q QUERY]                 list or search contacts
  edit      SESSION PARTICIPANT -name NAME -dial +CC -number N
  delete    SESSION PARTICIPANT
  import    SESSION [-file PATH]               "name,phone" lines, stdin by default
  download  SESSION [-dir DIR]                 write the .vcf file
  watch     SESSION                            follow a session live
`)
}

func main() {
	_ = godotenv.Load(".env")

	global := flag.NewFlagSet("vcf", flag.ExitOnError)
	global.Usage = usage
	token := global.String("token", os.Getenv("VCF_TOKEN"), "creator bearer token")
	_ = global.Parse(os.Args[1:])
	if global.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(*token, global.Arg(0), global.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "vcf:", err)
		os.Exit(1)
	}
}

func run(token, command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// keep the terminal for command output
	log := logger.SetupDefault(os.Stderr, cfg.LogLevel)
	jwtService := auth.NewJWTService(cfg.JWTSecret)

	if command == "token" {
		return cmdToken(jwtService, args)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := quota.OpenBadgerStore(cfg.DeviceDir)
	if err != nil {
		return err
	}
	defer records.Close()

	deviceID, err := records.DeviceID()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, log, app.Options{Records: records})
	if err != nil {
		return err
	}
	defer a.Close()

	c := &cli{app: a, log: log}
	if token != "" {
		c.callerID, err = jwtService.VerifyCreatorToken(token)
		if err != nil {
			return fmt.Errorf("invalid token: %w", err)
		}
	}
	c.client = a.Engine.For(session.Caller{ID: c.callerID, DeviceID: deviceID})

	cmd, ok := c.commands()[command]
	if !ok {
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
	err = cmd(ctx, args)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}


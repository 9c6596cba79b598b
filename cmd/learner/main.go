// Command learner is the terminal client for the IELTS listening backend.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/ieltslisten/learner/internal/app"
	"github.com/ieltslisten/learner/internal/config"
)

type env struct {
	app  *app.App
	out  io.Writer
	in   *bufio.Reader
	json bool
}

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"login":     {"login -email E [-password P]", cmdLogin},
	"register":  {"register -email E -name N [-password P]", cmdRegister},
	"logout":    {"logout", cmdLogout},
	"me":        {"me", cmdMe},
	"profile":   {"profile [-display-name N] [-phone P] [-dob YYYY-MM-DD] [-bio B]", cmdProfile},
	"password":  {"password", cmdPassword},
	"prefs":     {"prefs [-lang vi|en] [-theme light|dark] [-toggle-theme]", cmdPrefs},
	"books":     {"books [-search S] [-ordering O] [-page N]", cmdBooks},
	"book":      {"book SLUG", cmdBook},
	"units":     {"units SLUG", cmdUnits},
	"unit":      {"unit ID", cmdUnit},
	"asset":     {"asset [-type audio|pdf|subtitle] UNIT", cmdAsset},
	"quiz":      {"quiz UNIT", cmdQuiz},
	"attempts":  {"attempts [-unit ID]", cmdAttempts},
	"attempt":   {"attempt ID", cmdAttempt},
	"best":      {"best UNIT", cmdBest},
	"stats":     {"stats UNIT", cmdStats},
	"progress":  {"progress [-book SLUG]", cmdProgress},
	"analytics": {"analytics", cmdAnalytics},
	"tick":      {"tick [-completed] UNIT SECONDS", cmdTick},
	"position":  {"position [-set SECONDS] [-clear] UNIT", cmdPosition},
	"buy":       {"buy [-provider vnpay|momo] BOOK_ID", cmdBuy},
	"orders":    {"orders", cmdOrders},
	"order":     {"order [-wait] ID", cmdOrder},
	"journal":   {"journal [-type T] [-n N]", cmdJournal},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: learner [-env FILE] [-json] COMMAND [ARGS]")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", commands[n].usage)
	}
}

func main() {
	log.SetFlags(0)
	fs := flag.NewFlagSet("learner", flag.ContinueOnError)
	envFile := fs.String("env", ".env", "optional dotenv file")
	asJSON := fs.Bool("json", false, "print raw JSON")
	fs.Usage = func() { usage(os.Stderr) }
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if fs.NArg() == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		log.Printf("unknown command %q", fs.Arg(0))
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Load(*envFile)
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	a, err := app.New(openCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("learner: %v", err)
	}

	e := &env{app: a, out: os.Stdout, in: bufio.NewReader(os.Stdin), json: *asJSON}
	err = cmd.run(ctx, e, fs.Args()[1:])
	if cerr := a.Close(); cerr != nil {
		log.Printf("learner: close: %v", cerr)
	}
	if err != nil {
		log.Printf("learner: %v", err)
		os.Exit(1)
	}
}

func (e *env) printJSON(v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, string(buf))
	return err
}

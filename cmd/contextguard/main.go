// Command contextguard is a transparent stdio security gateway for MCP
// servers: it spawns the real server as a child process and interposes
// on both directions of its newline-delimited JSON-RPC 2.0 stream
// (spec.md §1, §6).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/contextguard/contextguard/internal/config"
	"github.com/contextguard/contextguard/internal/eventlog"
	"github.com/contextguard/contextguard/internal/gateway"
	"github.com/contextguard/contextguard/internal/interceptor"
	"github.com/contextguard/contextguard/internal/jsonrpc"
	"github.com/contextguard/contextguard/internal/policy"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	serverFlag := flag.String("server", "", "the child MCP server invocation, split on whitespace (required)")
	configFlag := flag.String("config", "", "path to a JSON PolicyConfig file (optional)")
	keyPathFlag := flag.String("key-path", ".contextguard_key", "path to the Ed25519 signing key for the event log chain")
	helpFlag := flag.Bool("help", false, "show usage and exit")
	flag.Parse()

	if *helpFlag {
		printUsage()
		os.Exit(0)
	}

	if *serverFlag == "" {
		fmt.Fprintln(os.Stderr, "error: --server is required")
		os.Exit(1)
	}

	argv := strings.Fields(*serverFlag)
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "error: --server must name at least one program")
		os.Exit(1)
	}

	var localCfg policy.Config
	if *configFlag != "" {
		cfg, err := config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		localCfg = cfg
	}

	agentID := os.Getenv("AGENT_ID")
	if agentID == "" {
		agentID = "default-agent"
	}

	session, err := gateway.Build(argv, localCfg, agentID, *keyPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	exitCode := run(session)
	session.Shutdown(exitCode)
	os.Exit(exitCode)
}

// run starts both interceptor pipelines and blocks until the child
// process exits, returning its exit code (spec.md §4.D, §4.E step 5).
func run(session *gateway.SessionState) int {
	// Both pipelines may write to the client's stdout (forwarded server
	// responses and synthetic errors); the child's stdin has a single
	// writer today but is wrapped for symmetry and future-proofing.
	toClient := interceptor.NewSyncWriter(os.Stdout)
	toChild := interceptor.NewSyncWriter(session.Child.Stdin)

	c2s := &interceptor.ClientToServer{
		Session:  session,
		ToChild:  toChild,
		ToClient: toClient,
	}
	s2c := &interceptor.ServerToClient{
		Session:  session,
		ToClient: toClient,
	}

	go pump(session.Log, os.Stdin, c2s.Handle, func() { _ = session.Child.CloseStdin() })
	go pump(session.Log, session.Child.Stdout, s2c.Handle, nil)

	return session.Child.Wait()
}

// pump feeds r through a Framer and dispatches each resulting frame to
// handle. onEOF, if non-nil, runs once the source is exhausted —
// normal shutdown is end-of-input on client stdin (spec.md §5,
// "Cancellation"). A framer error (stream corruption or the overflow
// guard tripping) is both logged as SERVER_ERROR and printed to stderr,
// per spec.md §4.D/§7.
func pump(log *eventlog.Log, r interface{ Read([]byte) (int, error) }, handle func(string) error, onEOF func()) {
	framer := jsonrpc.NewFramer()
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			frames, ferr := framer.Feed(buf[:n])
			for _, frame := range frames {
				if herr := handle(frame); herr != nil {
					fmt.Fprintf(os.Stderr, "[WARN] write failed: %v\n", herr)
				}
			}
			if ferr != nil {
				log.Log(eventlog.TypeServerError, eventlog.SeverityHigh, map[string]interface{}{
					"error": ferr.Error(),
				})
				fmt.Fprintf(os.Stderr, "[ERROR] %v\n", ferr)
				break
			}
		}
		if err != nil {
			break
		}
	}
	if onEOF != nil {
		onEOF()
	}
}

func printUsage() {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	fmt.Fprintln(w, "contextguard - transparent security gateway for MCP stdio servers")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, `  contextguard --server "<command and args>" [--config <path>] [--help]`)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  --server   required: the child MCP server invocation, split on whitespace")
	fmt.Fprintln(w, "  --config   optional: path to a JSON PolicyConfig file")
	fmt.Fprintln(w, "  --key-path optional: Ed25519 signing key for the event log chain (default .contextguard_key)")
	fmt.Fprintln(w, "  --help     show this message and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment (optional remote sink):")
	fmt.Fprintln(w, "  SUPABASE_URL, SUPABASE_SERVICE_KEY, AGENT_ID")
}

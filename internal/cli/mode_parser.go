package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeStorefront = "storefront"
	ModeTrack      = "tracking-service"
	ModeNotify     = "notifier"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeStorefront, "store", "front":
		return ModeStorefront, true
	case ModeTrack, "tracking", "track":
		return ModeTrack, true
	case ModeNotify, "notify":
		return ModeNotify, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `storefront --port=3001`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "--mode=") {
			mode = strings.TrimPrefix(arg, "--mode=")
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, nil
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // switch the color to cyan

	fmt.Fprintln(w, `Usage:
  ./bazaar --mode=<service> [flags]

Services (modes):
  storefront          HTTP API for orders, inboxes, and chat
  tracking-service    HTTP API for order progress/history/timer views
  notifier            RabbitMQ subscriber that prints status updates

Examples:
  ./bazaar --mode=storefront --port=3000 --max-concurrent=50
  ./bazaar --mode=tracking-service --port=3002
  ./bazaar --mode=notifier`)

	fmt.Fprint(w, "\033[0m") // switch back to normal
}

func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./bazaar --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}

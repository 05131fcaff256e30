package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/ferry"
	"github.com/aretw0/ferry/internal/presentation/tui"
	"github.com/aretw0/ferry/pkg/domain"
)

const browseHelp = `Commands:
  get <url> [json]            visit with data in the query string
  post|put|patch <url> [json] submit json data
  delete <url>                visit with DELETE
  reload [prop,...]           reload the page, optionally only some props
  back | forward | go <n>     traverse history
  remember <key> <json>       store local state on the current entry
  recall <key>                print local state of the current entry
  history                     list the tab's history entries
  show                        print the current page
  quit                        leave`

// Browse runs an interactive visit loop over in until quit, EOF or ctx ends.
// Failed commands are reported and the loop continues.
func Browse(ctx context.Context, engine *ferry.Engine, in io.Reader, p *Printer, prompt io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt != nil {
			fmt.Fprint(prompt, "> ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			closing(prompt, engine)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := runCommand(ctx, engine, p, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Status(statusFor(err), "%v", err)
		}
		if quit {
			closing(prompt, engine)
			return nil
		}
	}
}

func closing(prompt io.Writer, engine *ferry.Engine) {
	if prompt != nil {
		printSystemMessage(prompt, "Session closed. Resume with --scope %s", engine.Scope())
	}
}

func runCommand(ctx context.Context, engine *ferry.Engine, p *Printer, line string) (quit bool, err error) {
	name, rest, _ := strings.Cut(line, " ")
	target, payload, _ := strings.Cut(strings.TrimSpace(rest), " ")
	payload = strings.TrimSpace(payload)

	var page *domain.Page
	switch strings.ToLower(name) {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(p.out, browseHelp)
		return false, nil

	case "get", "post", "put", "patch", "delete":
		if target == "" {
			return false, fmt.Errorf("usage: %s <url> [json]", name)
		}
		method, err := domain.ParseMethod(name)
		if err != nil {
			return false, err
		}
		data, err := parseData(payload)
		if err != nil {
			return false, err
		}
		page, err = engine.Visit(ctx, domain.VisitRequest{URL: target, Method: method, Data: data})
		if err != nil {
			return false, err
		}

	case "reload":
		var opts ferry.ReloadOptions
		if target != "" {
			opts.Only = strings.Split(target, ",")
		}
		page, err = engine.Reload(ctx, opts)
		if err != nil {
			return false, err
		}

	case "back":
		page, err = engine.Back(ctx)
	case "forward":
		page, err = engine.Forward(ctx)
	case "go":
		delta, convErr := strconv.Atoi(target)
		if convErr != nil {
			return false, fmt.Errorf("usage: go <n>")
		}
		page, err = engine.Go(ctx, delta)

	case "remember":
		if target == "" || payload == "" {
			return false, fmt.Errorf("usage: remember <key> <json>")
		}
		if !json.Valid([]byte(payload)) {
			return false, fmt.Errorf("remembered value must be JSON")
		}
		if _, err := engine.Remember(ctx, target, json.RawMessage(payload)); err != nil {
			return false, err
		}
		p.Status(tui.StatusOK, "remembered %s", target)
		return false, nil

	case "recall":
		var v json.RawMessage
		ok, err := engine.Restored(ctx, target, &v)
		if err != nil {
			return false, err
		}
		if !ok {
			p.Status(tui.StatusInfo, "nothing remembered under %s", target)
			return false, nil
		}
		fmt.Fprintln(p.out, string(v))
		return false, nil

	case "history":
		entries, err := engine.Entries(ctx)
		if err != nil {
			return false, err
		}
		return false, p.Entries(entries, engine.Browser().StateKey())

	case "show":
		page = engine.Page()
		if page == nil {
			return false, domain.ErrNotBooted
		}

	default:
		return false, fmt.Errorf("unknown command %q (try help)", name)
	}
	if err != nil {
		return false, err
	}

	p.Status(tui.StatusOK, "%s %s", page.Component(), page.URL())
	return false, p.Page(page)
}

func parseData(payload string) (any, error) {
	if payload == "" {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("data must be a JSON object: %w", err)
	}
	return data, nil
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrVersionMismatch):
		return tui.StatusWarn
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, domain.ErrVisitPrevented):
		return tui.StatusInfo
	}
	return tui.StatusFailure
}

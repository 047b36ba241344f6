package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sfaret/stipslite/internal/client"
	"github.com/sfaret/stipslite/internal/flows"
	"github.com/sfaret/stipslite/internal/llm"
)

var (
	searchServer string
	searchJSON   bool
)

// searcher runs the AI flows, either in-process or against a server.
// *client.Client satisfies it directly.
type searcher interface {
	InternetSearch(ctx context.Context, query string) (*flows.InternetSearchOutput, error)
	PrintLocationSearch(ctx context.Context, query string) (*flows.SearchOutput, error)
	TaskSearch(ctx context.Context, query string) (*flows.SearchOutput, error)
}

type localSearcher struct {
	runner *flows.Runner
}

func (l localSearcher) InternetSearch(ctx context.Context, query string) (*flows.InternetSearchOutput, error) {
	return l.runner.InternetSearch(ctx, flows.InternetSearchInput{Query: query})
}

func (l localSearcher) PrintLocationSearch(ctx context.Context, query string) (*flows.SearchOutput, error) {
	return l.runner.PrintLocationSearch(ctx, flows.SearchInput{Query: query})
}

func (l localSearcher) TaskSearch(ctx context.Context, query string) (*flows.SearchOutput, error) {
	return l.runner.TaskSearch(ctx, flows.SearchInput{Query: query})
}

// newRunner builds a flow runner from the loaded config. A missing or broken
// model configuration is logged and yields a runner without a model.
func newRunner(opts ...flows.Option) *flows.Runner {
	model, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Warn().Err(err).Msg("LLM not configured, AI search disabled")
		model = nil
	} else {
		log.Info().Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.Model).Msg("llm configured")
	}
	return flows.New(model, append([]flows.Option{flows.WithTimeout(cfg.LLM.Timeout)}, opts...)...)
}

func newSearcher() searcher {
	if searchServer != "" {
		return client.New(searchServer)
	}
	return localSearcher{runner: newRunner()}
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with the internet search flow",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), newSearcher(), strings.Join(args, " "), cmd.OutOrStdout())
	},
}

var findPrintCmd = &cobra.Command{
	Use:   "find-print [query]",
	Short: "Find print locations with the print-location search flow",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSearcher()
		return runResults(cmd.Context(), s.PrintLocationSearch, strings.Join(args, " "), cmd.OutOrStdout())
	},
}

var findTasksCmd = &cobra.Command{
	Use:   "find-tasks [query]",
	Short: "Find virtual-assistant tasks with the task search flow",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSearcher()
		return runResults(cmd.Context(), s.TaskSearch, strings.Join(args, " "), cmd.OutOrStdout())
	},
}

func init() {
	for _, c := range []*cobra.Command{askCmd, findPrintCmd, findTasksCmd} {
		c.Flags().StringVar(&searchServer, "server", "", "Run against a portal at this URL instead of in-process")
		c.Flags().BoolVar(&searchJSON, "json", false, "Print the raw flow output as JSON")
	}
}

func runAsk(ctx context.Context, s searcher, query string, w io.Writer) error {
	out, err := s.InternetSearch(ctx, query)
	if err != nil {
		return err
	}
	if searchJSON {
		return printJSON(w, out)
	}
	fmt.Fprintln(w, out.Answer)
	return nil
}

func runResults(ctx context.Context, search func(context.Context, string) (*flows.SearchOutput, error), query string, w io.Writer) error {
	out, err := search(ctx, query)
	if err != nil {
		return err
	}
	if searchJSON {
		return printJSON(w, out)
	}
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	for i, r := range out.Results {
		fmt.Fprintf(w, "%d. %s\n", i+1, r)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

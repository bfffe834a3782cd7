package cli

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/withgalaxy/lazyload/pkg/dom"
	"github.com/withgalaxy/lazyload/pkg/dom/domtest"
	"github.com/withgalaxy/lazyload/pkg/loader"
	"github.com/withgalaxy/lazyload/pkg/scripttag"
)

var (
	simulatePage     string
	simulateKey      string
	simulateTimeout  int
	simulateAll      bool
	simulatePriority string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <url>...",
	Short: "Load scripts through the runtime against an in-memory document",
	Long: `Drive the script loader against an in-memory document. Every attached script
is fetched over HTTP; a 2xx response fires load, anything else fires error.
With --all the urls are loaded as one external dependency set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simulatePage, "page", "http://localhost/", "page url the document pretends to be at")
	simulateCmd.Flags().StringVar(&simulateKey, "key", "", "key passed with every load")
	simulateCmd.Flags().IntVar(&simulateTimeout, "timeout", 0, "chunk load timeout in ms (default from config)")
	simulateCmd.Flags().BoolVar(&simulateAll, "all", false, "load the urls as one external dependency set")
	simulateCmd.Flags().StringVar(&simulatePriority, "fetch-priority", "", "high, low or auto")
}

// fetchScripts answers every attached script with load or error depending on
// the HTTP status of its src.
func fetchScripts(ctx context.Context, doc *domtest.Document, hc *http.Client, log zerolog.Logger) {
	doc.OnAppend(func(el *domtest.Element) {
		src, ok := el.Attr(scripttag.AttrSrc)
		if !ok {
			return
		}
		go func() {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
			if err != nil {
				el.Fire(dom.EventError, err.Error())
				return
			}
			resp, err := hc.Do(req)
			if err != nil {
				log.Debug().Err(err).Str("src", src).Msg("fetch failed")
				el.Fire(dom.EventError, err.Error())
				return
			}
			resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				el.Fire(dom.EventError, resp.Status)
				return
			}
			el.Fire(dom.EventLoad, "")
		}()
	})
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if simulateTimeout > 0 {
		cfg.Output.ChunkLoadTimeout = simulateTimeout
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	doc := domtest.NewDocument(simulatePage)
	fetchScripts(ctx, doc, &http.Client{Timeout: cfg.Output.LoadTimeout() + time.Second}, logger)
	rt := loader.New(cfg, doc, loader.WithLogger(logger))

	var opts []loader.LoadOption
	if simulateKey != "" {
		opts = append(opts, loader.WithKey(simulateKey))
	}
	if simulatePriority != "" {
		p := scripttag.FetchPriority(simulatePriority)
		if !p.Valid() {
			return fmt.Errorf("invalid fetch priority %q", simulatePriority)
		}
		opts = append(opts, loader.WithFetchPriority(p))
	}

	out := cmd.OutOrStdout()
	if simulateAll {
		err := rt.LoadExternalDependencies(ctx, args, func() {
			fmt.Fprintln(out, "✓ all dependencies loaded")
		})
		printRegistry(cmd, rt.LoadedScripts())
		return err
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0
	for _, u := range args {
		wg.Add(1)
		rt.Load(u, func(ev dom.Event) {
			defer wg.Done()
			if ev.Failed() {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}, opts...)
	}
	wg.Wait()

	printRegistry(cmd, rt.LoadedScripts())
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(args))
	}
	return nil
}

func printRegistry(cmd *cobra.Command, reg *loader.Registry) {
	snapshot := reg.Snapshot()
	urls := make([]string, 0, len(snapshot))
	for u := range snapshot {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	out := cmd.OutOrStdout()
	for _, u := range urls {
		st := snapshot[u]
		mark := "✓"
		if st.Status != loader.StatusLoaded {
			mark = "✗"
		}
		fmt.Fprintf(out, "%s %-10s %s\n", mark, st.Status, u)
	}
}

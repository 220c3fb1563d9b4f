package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pagesift/pagesift/internal/batch"
	"github.com/pagesift/pagesift/internal/clean"
	"github.com/pagesift/pagesift/internal/fetch"
	"github.com/pagesift/pagesift/internal/pipeline"
)

var (
	flagURLFile string
	flagOutput  string
	flagNATSURL string
	flagRobots  bool
)

var runCmd = &cobra.Command{
	Use:   "run [url ...]",
	Short: "Ingest one or more URLs as a batch",
	Long: `Run the full pipeline over the given URLs (or a file of URLs, one
per line) and store the cleaned records in the configured sink.

Examples:
  pagesift run https://example.com/doc.pdf
  pagesift run --urls urls.txt --output records.jsonl
  pagesift run --nats nats://localhost:4222 https://example.com`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&flagURLFile, "urls", "", "File with one URL per line")
	runCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Append records as JSON lines to this file")
	runCmd.Flags().StringVar(&flagNATSURL, "nats", "", "Publish records to this NATS server")
	runCmd.Flags().BoolVar(&flagRobots, "robots", false, "Honor robots.txt for HTTP fetches")
}

func runBatch(cmd *cobra.Command, args []string) error {
	urls := append([]string{}, args...)
	if flagURLFile != "" {
		fromFile, err := readURLFile(flagURLFile)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given: pass them as arguments or via --urls")
	}

	sink, closeSink, err := buildSink()
	if err != nil {
		return err
	}
	defer closeSink()

	p, err := pipeline.New(clean.NewMemoryStore(), sink)
	if err != nil {
		return err
	}
	p.FetchOptions = cfg.FetchOptions()
	p.ProcessOptions = cfg.ProcessOptions()
	var robots *fetch.RobotsPolicy
	if cfg.Fetch.CacheDir != "" || cfg.Fetch.RespectRobots || flagRobots {
		httpFetcher := fetch.NewHTTPFetcher()
		if dir := cfg.Fetch.CacheDir; dir != "" {
			httpFetcher.Cache = &fetch.HTTPCache{Dir: dir}
			if maxAge := cfg.Fetch.CacheMaxAge.D(); maxAge > 0 {
				if removed, err := httpFetcher.Cache.PurgeByAge(maxAge); err != nil {
					log.Warn().Err(err).Msg("cache purge failed")
				} else if removed > 0 {
					log.Debug().Int("removed", removed).Msg("purged stale cache entries")
				}
			}
		}
		if cfg.Fetch.RespectRobots || flagRobots {
			ua := p.FetchOptions.UserAgent
			if ua == "" {
				ua = fetch.DefaultUserAgent
			}
			httpFetcher.Robots = fetch.NewRobotsPolicy(ua, httpFetcher.Cache)
			robots = httpFetcher.Robots
		}
		reg := fetch.NewRegistry(fetch.DefaultRetryPolicy())
		reg.Add(httpFetcher)
		reg.Add(fetch.NewFileFetcher())
		p.Fetchers = reg
	}

	configs := make([]batch.URLConfig, 0, len(urls))
	for _, u := range urls {
		configs = append(configs, batch.URLConfig{URL: u})
	}

	opts := cfg.BatchOptions()
	if robots != nil {
		// A host's crawl-delay raises the dispatch spacing for its domain.
		opts.DomainIntervalFloor = robots.CrawlDelay
	}
	res, err := batch.New(p.Runner()).ProcessBatch(cmd.Context(), configs, opts)
	if res != nil {
		log.Info().
			Int("total", res.Summary.Total).
			Int("succeeded", res.Summary.Succeeded).
			Int("failed", res.Summary.FailedCount).
			Dur("elapsed", res.Summary.TotalDuration).
			Dur("rateLimitWait", res.Summary.RateLimitWait).
			Msg("batch finished")
		for _, f := range res.Failed {
			log.Warn().Str("url", f.URL).Int("attempts", f.Attempts).Err(f.Err).Msg("resource failed")
		}
	}
	return err
}

func buildSink() (pipeline.Sink, func(), error) {
	natsURL := flagNATSURL
	if natsURL == "" {
		natsURL = cfg.Sink.NATSURL
	}
	if natsURL != "" {
		sink, err := pipeline.NewNATSSink(natsURL, cfg.Sink.SubjectPrefix)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() { _ = sink.Close() }, nil
	}

	output := flagOutput
	if output == "" {
		output = cfg.Sink.OutputPath
	}
	if output == "" {
		output = "records.jsonl"
	}
	sink, err := pipeline.NewFileSink(output)
	if err != nil {
		return nil, nil, err
	}
	return sink, func() { _ = sink.Close() }, nil
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

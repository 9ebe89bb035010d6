package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"adstudio/internal/adsapi"
	"adstudio/internal/domain"
	"adstudio/internal/infra"
	"adstudio/internal/staticads"
)

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var (
		originFlag   string
		avatarFlag   string
		languageFlag string
		tokenFlag    string
		productFlag  string
		archiveFlag  string
		watchFlag    bool
		imagesFlag   bool
		angles       listFlag
		references   listFlag
		flagsFlag    listFlag
	)
	flag.StringVar(&originFlag, "origin", "", "origin entity the ads belong to")
	flag.StringVar(&avatarFlag, "avatar", "", "target customer description")
	flag.StringVar(&languageFlag, "language", "", "ad copy language (defaults to the server locale)")
	flag.StringVar(&tokenFlag, "token", "", "bearer token (overrides STATIC_ADS_TOKEN)")
	flag.StringVar(&productFlag, "product", "", "path to a product image to feature")
	flag.StringVar(&archiveFlag, "archive", "", "write a zip of all origin results to this path and exit")
	flag.BoolVar(&watchFlag, "watch", false, "only resume and follow the latest active job")
	flag.BoolVar(&imagesFlag, "images", false, "list the reference image library and exit")
	flag.Var(&angles, "angle", "marketing angle \"Title: description\" (repeatable)")
	flag.Var(&references, "ref", "reference image id (repeatable)")
	flag.Var(&flagsFlag, "flag", "generation flag such as story or no_text (repeatable)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadClientConfig()
	if err != nil {
		exitWithError(err)
	}
	if t := strings.TrimSpace(tokenFlag); t != "" {
		cfg.Token = t
	}
	logger := infra.NewLoggerTo(os.Stderr, cfg.AppEnv).With().Str("cmd", "staticads").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := adsapi.NewClient(adsapi.Options{
		BaseURL:     cfg.APIBaseURL,
		Credentials: staticads.StaticToken(cfg.Token),
		Timeout:     cfg.RequestTimeout,
		Logger:      &logger,
	})

	if imagesFlag {
		images, err := client.ListImages(ctx)
		if err != nil {
			exitWithError(err)
		}
		for _, img := range images {
			fmt.Printf("%s\t%s\n", img.ID, img.URL)
		}
		return
	}

	origin := strings.TrimSpace(originFlag)
	if origin == "" {
		exitWithError(errors.New("-origin is required"))
	}

	if archiveFlag != "" {
		data, err := client.DownloadArchive(ctx, origin)
		if err != nil {
			exitWithError(err)
		}
		if err := os.WriteFile(archiveFlag, data, 0o644); err != nil {
			exitWithError(err)
		}
		fmt.Printf("archive written to %s (%d bytes)\n", archiveFlag, len(data))
		return
	}

	// Terminal job ids. A resumed job can finish while a new one is being
	// submitted, so the wait below matches on id.
	finished := make(chan string, 16)
	session, err := staticads.NewSession(staticads.Options{
		OriginID:      origin,
		Backend:       client,
		Credentials:   staticads.StaticToken(cfg.Token),
		Logger:        &logger,
		UsageCategory: cfg.UsageCategory,
		QuotaPerAngle: cfg.QuotaPerAngle,
		PollInterval:  cfg.PollInterval,
		UsageDebounce: cfg.UsageDebounce,
		Notifier: staticads.NotifierFunc(func(e staticads.Event) {
			logEvent(logger, e)
			switch e.Kind {
			case staticads.EventJobCompleted, staticads.EventJobFailed:
				select {
				case finished <- e.JobID:
				default:
				}
			}
		}),
	})
	if err != nil {
		exitWithError(err)
	}
	defer session.Close()

	if err := session.Load(ctx); err != nil {
		exitWithError(err)
	}

	var waitFor string
	if !watchFlag {
		req := staticads.SubmitRequest{
			Avatar:            avatarFlag,
			Angles:            angles,
			ReferenceImageIDs: references,
			Language:          languageFlag,
			Flags:             map[string]bool{},
		}
		for _, f := range flagsFlag {
			req.Flags[strings.TrimSpace(f)] = true
		}
		if productFlag != "" {
			asset, err := readProduct(productFlag)
			if err != nil {
				exitWithError(err)
			}
			req.Product = asset
		}
		job, err := session.Submit(ctx, req)
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("job %s queued\n", job.ID)
		waitFor = job.ID
	} else {
		st := session.State()
		if !st.Job.Active() {
			fmt.Println("no active job for origin")
			printResults(st)
			return
		}
		waitFor = st.Job.ID
	}

	waitForJob(ctx, finished, waitFor)
	st := session.State()
	printResults(st)
	if st.Job.Status == domain.JobStatusFailed {
		os.Exit(1)
	}
}

// waitForJob blocks until jobID reaches a terminal state or ctx ends.
func waitForJob(ctx context.Context, finished <-chan string, jobID string) {
	for {
		select {
		case id := <-finished:
			if id == jobID {
				return
			}
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "interrupted")
			return
		}
	}
}

func readProduct(path string) (*domain.ProductAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read product image: %w", err)
	}
	return &domain.ProductAsset{
		Filename: filepath.Base(path),
		MIME:     http.DetectContentType(data),
		Data:     data,
	}, nil
}

func logEvent(logger infra.Logger, e staticads.Event) {
	ev := logger.Info()
	if e.Err != nil {
		ev = logger.Warn().Err(e.Err)
	}
	ev = ev.Str("event", string(e.Kind))
	if e.JobID != "" {
		ev = ev.Str("job_id", e.JobID)
	}
	if len(e.Angles) > 0 {
		ev = ev.Strs("angles", e.Angles)
	}
	if len(e.Results) > 0 {
		ev = ev.Int("results", len(e.Results))
	}
	ev.Msg("staticads")
}

func printResults(st staticads.State) {
	if st.Job.ID != "" {
		fmt.Printf("job %s %s progress=%d\n", st.Job.ID, st.Job.Status, st.Job.Progress)
	}
	if st.Job.Error != "" {
		fmt.Printf("error: %s\n", st.Job.Error)
	}
	for _, r := range st.Results {
		fmt.Printf("angle=%d variation=%d %s\n", r.AngleIndex, r.VariationNumber, r.ImageURL)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

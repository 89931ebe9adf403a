package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raine/turnover/config"
	"github.com/raine/turnover/internal/api"
	"github.com/raine/turnover/internal/llm"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(a.analyzer, a.keyring).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type analyzeLine struct {
	File   string              `json:"file"`
	Result *llm.AnalysisResult `json:"result,omitempty"`
	Error  *analyzeLineError   `json:"error,omitempty"`
}

type analyzeLineError struct {
	Kind    string     `json:"kind"`
	Message string     `json:"message"`
	Action  llm.Action `json:"action"`
}

func runAnalyze(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	useMock := fs.Bool("mock", false, "use the canned mock analysis instead of a provider")
	concurrency := fs.Int("concurrency", cfg.Concurrency, "images analyzed at the same time")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files := fs.Args()
	if len(files) == 0 {
		return errors.New("analyze needs at least one image file")
	}

	images := make([][]byte, len(files))
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		images[i] = data
	}

	if *useMock {
		cfg.Provider = config.ProviderMock
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	results := llm.AnalyzeBatch(ctx, a.analyzer, images, *concurrency)
	failed := writeAnalyzeLines(os.Stdout, files, results)
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

// writeAnalyzeLines prints one JSON object per result and returns the number
// of failures.
func writeAnalyzeLines(w io.Writer, files []string, results []llm.BatchResult) int {
	enc := json.NewEncoder(w)
	failed := 0
	for _, r := range results {
		line := analyzeLine{File: files[r.Index], Result: r.Result}
		if r.Err != nil {
			failed++
			kind := llm.KindOf(r.Err)
			line.Result = nil
			line.Error = &analyzeLineError{
				Kind:    kind.String(),
				Message: llm.Message(r.Err),
				Action:  kind.Action(),
			}
		}
		if err := enc.Encode(line); err != nil {
			log.Error().Err(err).Msg("failed to write result")
		}
	}
	return failed
}

func runSetCredential(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New(`set-credential takes exactly one argument, the credential or "-" to read it from stdin`)
	}
	if cfg.Provider == config.ProviderMock {
		return errors.New("the mock provider does not use a credential")
	}

	value := args[0]
	if value == "-" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read credential: %w", err)
		}
		value = line
	}
	value = strings.TrimSpace(value)

	// The seed credential from the environment would otherwise overwrite
	// the value being set.
	cfg.SeedCredential = ""
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.keyring.Save(value); err != nil {
		return err
	}
	if value == "" {
		fmt.Println("Credential removed.")
	} else {
		fmt.Println("Credential saved.")
	}
	return nil
}

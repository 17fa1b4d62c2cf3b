package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/netgenealogy-backend/internal/app"
	"github.com/yungbote/netgenealogy-backend/internal/modules/genealogy"
	"github.com/yungbote/netgenealogy-backend/internal/platform/dbctx"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var networks, artifacts idList
	var dryRun bool
	var concurrency int
	flag.Var(&networks, "network", "chain network id to load (repeatable)")
	flag.Var(&artifacts, "artifact", "restrict to this artifact id (repeatable)")
	flag.BoolVar(&dryRun, "dry-run", false, "print the planned edges without persisting")
	flag.IntVar(&concurrency, "concurrency", 4, "network ids processed in parallel")
	flag.Parse()

	if len(networks) == 0 {
		fmt.Println("no -network values provided")
		os.Exit(2)
	}
	artifactIDs := make([]uuid.UUID, 0, len(artifacts))
	for _, s := range artifacts {
		id, err := uuid.Parse(s)
		if err != nil {
			fmt.Printf("invalid -artifact %q: %v\n", s, err)
			os.Exit(2)
		}
		artifactIDs = append(artifactIDs, id)
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	svc := application.Services.Genealogy
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	ctx := context.Background()
	g.SetLimit(max(concurrency, 1))
	for _, networkID := range networks {
		g.Go(func() error {
			dbc := dbctx.Context{Ctx: ctx}
			var (
				res genealogy.LoadResult
				err error
			)
			if dryRun {
				res, err = svc.PlanForNetwork(dbc, networkID, artifactIDs)
			} else {
				res, err = svc.LoadForNetwork(dbc, networkID, artifactIDs)
			}
			mu.Lock()
			defer mu.Unlock()
			printResult(res, dryRun)
			if err != nil {
				errs = append(errs, fmt.Errorf("network %s: %w", networkID, err))
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		fmt.Printf("genealogy load failed: %v\n", err)
		application.Close()
		os.Exit(1)
	}
}

func printResult(res genealogy.LoadResult, dryRun bool) {
	mode := "loaded"
	if dryRun {
		mode = "planned"
	}
	fmt.Printf("network=%s %s edges=%d stored=%d remote_skipped=%v\n", res.NetworkID, mode, len(res.Edges), len(res.EdgeIDs), res.RemoteSkipped)
	for _, e := range res.Edges {
		if e.Ancestor == nil || e.Descendant == nil {
			continue
		}
		fmt.Printf("  %d (%s) -> %d (%s)\n", e.Ancestor.Height, e.Ancestor.ID, e.Descendant.Height, e.Descendant.ID)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/JonMunkholm/tablerag/internal/backend"
	"github.com/JonMunkholm/tablerag/internal/core"
	"github.com/JonMunkholm/tablerag/internal/tabular"
	"github.com/JonMunkholm/tablerag/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string, nargs int) error {
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if fs.NArg() != nargs {
		return usageError{fmt.Sprintf("expected %d argument(s), got %d", nargs, fs.NArg())}
	}
	return nil
}

func runTables(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlags("tables"), args, 0); err != nil {
		return err
	}
	tables, err := a.service.ListTables(ctx)
	if err != nil {
		return err
	}
	fmt.Print(ui.RenderTables(tables))
	return nil
}

func runUpload(ctx context.Context, a *app, args []string) error {
	fs := newFlags("upload")
	name := fs.String("name", "", "Display name (single file only; defaults to the file name)")
	plain := fs.Bool("plain", false, "Print progress lines instead of the interactive view")
	if err := parse(fs, args, 1); err != nil {
		return err
	}

	files, err := tabular.Discover(fs.Arg(0))
	if err != nil {
		return core.NewError(core.KindInvalid, "upload", err.Error(), err)
	}
	if *name != "" && len(files) > 1 {
		return usageError{"-name applies to a single file"}
	}

	var failed int
	for _, path := range files {
		if err := uploadOne(ctx, a, path, *name, *plain || !isTerminal()); err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed++
			fmt.Fprintf(os.Stderr, "%s: %s\n", path, core.UserErrorWithCode(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(files))
	}
	return nil
}

func uploadOne(ctx context.Context, a *app, path, name string, plain bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	prepared, err := tabular.Prepare(path, data)
	if err != nil {
		return core.NewError(core.KindInvalid, "prepare upload", err.Error(), err)
	}
	form := &core.UploadForm{File: &core.UploadFile{Name: prepared.Name, Data: prepared.Data}, Name: name}
	orch := a.service.Orchestrator()

	var outcome *core.UploadOutcome
	if plain {
		fmt.Printf("Uploading %s (%d rows)\n", path, prepared.Rows)
		outcome, err = orch.Upload(ctx, form, printProgress)
	} else {
		m := ui.NewUploadModel(ctx, orch, form)
		if _, err := tea.NewProgram(m).Run(); err != nil {
			return err
		}
		outcome, err = m.Result()
	}
	if err != nil {
		return err
	}

	if plain {
		fmt.Printf("Uploaded %s as table %s\n", path, outcome.TableID)
	}
	fmt.Print(ui.RenderSlice(outcome.Preview))
	return nil
}

func printProgress(obs core.Observation) {
	fmt.Printf("  %s %d%%\n", obs.State, obs.Progress)
}

func runSlice(ctx context.Context, a *app, args []string) error {
	fs := newFlags("slice")
	from := fs.Int("from", 0, "First row")
	to := fs.Int("to", -1, "Row after the last one (default: from + PREVIEW_ROWS)")
	cols := fs.String("cols", "", "Comma-separated columns")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	if *to < 0 {
		*to = *from + a.cfg.Viewer.PreviewRows
	}

	var columns []string
	for _, c := range strings.Split(*cols, ",") {
		if c = strings.TrimSpace(c); c != "" {
			columns = append(columns, c)
		}
	}

	slice, err := a.service.FetchSlice(ctx, fs.Arg(0), *from, *to, columns...)
	if err != nil {
		return err
	}
	fmt.Print(ui.RenderSlice(slice))
	return nil
}

func runHighlight(ctx context.Context, a *app, args []string) error {
	fs := newFlags("highlight")
	file := fs.String("file", "", "Read the highlight from a saved JSON file instead of the backend")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}

	var (
		proj *core.Projection
		err  error
	)
	switch {
	case *file != "" && fs.NArg() == 0:
		data, rerr := os.ReadFile(*file)
		if rerr != nil {
			return fmt.Errorf("read %s: %w", *file, rerr)
		}
		cit, perr := backend.ParseCitation(data)
		if perr != nil {
			return perr
		}
		proj, err = a.service.Project(ctx, *cit)
	case *file == "" && fs.NArg() == 1:
		proj, err = a.service.ProjectHighlight(ctx, fs.Arg(0))
	default:
		return usageError{"give a highlight id or -file"}
	}
	if err != nil {
		return err
	}
	fmt.Print(ui.RenderProjection(proj))
	return nil
}

func runRename(ctx context.Context, a *app, args []string) error {
	fs := newFlags("rename")
	if err := parse(fs, args, 2); err != nil {
		return err
	}
	table, err := a.service.RenameTable(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Printf("Renamed %s to %q\n", table.ID, table.Name)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlags("delete")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	if err := a.service.DeleteTable(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", fs.Arg(0))
	return nil
}

func runReindex(ctx context.Context, a *app, args []string) error {
	fs := newFlags("reindex")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	tableID := fs.Arg(0)

	jobID, err := a.client.ReindexTable(ctx, tableID)
	if err != nil {
		return err
	}
	fmt.Printf("Reindexing %s (job %s)\n", tableID, jobID)
	outcome, err := a.service.Orchestrator().Follow(ctx, jobID, printProgress)
	if err != nil {
		return err
	}
	fmt.Printf("Reindexed %s in %s\n", outcome.TableID, outcome.Duration.Round(time.Millisecond))
	return nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/sibilleb/hatstart/internal/manifest"
	"github.com/sibilleb/hatstart/internal/plan"
)

// simulateBatches renders `hatstart plan --dry-run`'s batch execution
// preview: one progress bar per batch, each completing as a unit since
// batch members never have a dependency path between them and are
// independently installable. The bars are simulation only — hatstart
// never executes an installer.
func simulateBatches(w io.Writer, order *plan.Order) {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if !isTTY || len(order.Batches) == 0 {
		printBatchesPlain(w, order.Batches)
		return
	}

	// termenv reports the terminal's color capability; a profile of
	// Ascii means the host cannot render mpb's default fill
	// characters reliably, so fall back to the plain renderer.
	if termenv.ColorProfile() == termenv.Ascii {
		printBatchesPlain(w, order.Batches)
		return
	}

	perBatch := time.Duration(0)
	if n := len(order.Batches); n > 0 && order.EstimatedTimeSeconds > 0 {
		perBatch = time.Duration(order.EstimatedTimeSeconds/float64(n)*float64(time.Second)) / 4
	}
	if perBatch <= 0 {
		perBatch = 150 * time.Millisecond
	}

	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
	for i, batch := range order.Batches {
		bar := p.AddBar(int64(len(batch)),
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("batch %d ", i+1), decor.WC{W: 12, C: decor.DindentRight}),
				decor.Name(fmt.Sprintf("%v", batch), decor.WC{W: 40}),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("%d / %d"),
				decor.OnComplete(decor.Name(""), " done"),
			),
		)
		for range batch {
			time.Sleep(perBatch)
			bar.Increment()
		}
	}
	p.Wait()
}

func printBatchesPlain(w io.Writer, batches [][]manifest.ToolID) {
	for i, batch := range batches {
		fmt.Fprintf(w, "batch %d: %v\n", i+1, batch)
	}
}

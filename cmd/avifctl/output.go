package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"avif-everywhere/internal/batch"
	"avif-everywhere/internal/database"
	"avif-everywhere/internal/variant"

	"golang.org/x/term"
)

// printer renders results as an aligned table for people and JSON for scripts.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(f *os.File, forceJSON bool) *printer {
	return &printer{
		w:    f,
		json: forceJSON || !term.IsTerminal(int(f.Fd())),
	}
}

func (p *printer) writeJSON(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
}

func (p *printer) Capabilities(caps variant.Capabilities, vipsVersion string) error {
	if p.json {
		return p.writeJSON(struct {
			variant.Capabilities
			VipsVersion string `json:"vipsVersion"`
		}{caps, vipsVersion})
	}
	tw := p.table()
	fmt.Fprintf(tw, "libvips\t%s\n", orDash(vipsVersion))
	fmt.Fprintf(tw, "avifenc\t%s\n", yesNo(caps.CLIAvailable))
	fmt.Fprintf(tw, "AVIF (libvips)\t%s\n", yesNo(caps.AVIFSupported))
	fmt.Fprintf(tw, "WebP (libvips)\t%s\n", yesNo(caps.WebPSupported))
	return tw.Flush()
}

func (p *printer) Missing(missing []database.MissingAsset) error {
	if p.json {
		if missing == nil {
			missing = []database.MissingAsset{}
		}
		return p.writeJSON(missing)
	}
	if len(missing) == 0 {
		_, err := fmt.Fprintln(p.w, "Every asset has both variants.")
		return err
	}
	tw := p.table()
	fmt.Fprintln(tw, "ID\tFILE\tAVIF\tWEBP")
	for _, m := range missing {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.ID, m.Filename, yesNo(m.HasAVIF), yesNo(m.HasWebP))
	}
	fmt.Fprintf(tw, "\n%d asset(s) missing a variant\n", len(missing))
	return tw.Flush()
}

func (p *printer) Summary(summary *batch.Summary) error {
	if p.json {
		return p.writeJSON(summary)
	}
	tw := p.table()
	if len(summary.Success) > 0 {
		fmt.Fprintln(tw, "ID\tFILE\tSIZE\tQUALITY\tRESIZE\tSAVED\tWEBP\tNOTE")
		for _, it := range summary.Success {
			fmt.Fprintf(tw, "%d\t%s\t%d KB\t%s\t%s\t%s\t%s\t%s\n",
				it.ID, it.Filename, it.SizeKB, orDash(it.Quality), orDash(it.ResizeMax),
				savings(it.Savings), orDash(it.WebP), it.Note)
		}
		fmt.Fprintln(tw)
	}
	for _, f := range summary.Failed {
		fmt.Fprintf(tw, "FAILED\t%d\t%s\t%s\n", f.ID, orDash(f.Filename), f.Reason)
	}
	fmt.Fprintf(tw, "%d converted, %d failed in %s\n",
		len(summary.Success), len(summary.Failed), summary.Duration.Round(time.Millisecond))
	return tw.Flush()
}

func (p *printer) Report(report *variant.Report) error {
	if p.json {
		return p.writeJSON(report)
	}
	tw := p.table()
	fmt.Fprintf(tw, "Asset\t%d (%s)\n", report.AssetID, report.Filename)
	fmt.Fprintf(tw, "Baseline\t%d bytes (%s)\n", report.Baseline.Bytes, report.Baseline.Origin)
	for _, format := range variant.Formats {
		rec := report.AVIF
		if format == variant.FormatWebP {
			rec = report.WebP
		}
		switch {
		case rec != nil:
			fmt.Fprintf(tw, "%s\t%d bytes, quality %s, resize %s, saved %s\n",
				format, rec.Bytes, rec.Quality, rec.Resize, savings(rec.SavingsPercent))
		case report.Skipped[format] != "":
			fmt.Fprintf(tw, "%s\tskipped: %s\n", format, report.Skipped[format])
		default:
			fmt.Fprintf(tw, "%s\t-\n", format)
		}
	}
	fmt.Fprintf(tw, "Took\t%s\n", report.Duration.Round(time.Millisecond))
	return tw.Flush()
}

func (p *printer) Purged(assetID int64, removed int) error {
	if p.json {
		return p.writeJSON(map[string]interface{}{"assetId": assetID, "removed": removed})
	}
	_, err := fmt.Fprintf(p.w, "Removed %d variant(s) of asset %d\n", removed, assetID)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func savings(pct *int) string {
	if pct == nil {
		return "-"
	}
	return strconv.Itoa(*pct) + "%"
}

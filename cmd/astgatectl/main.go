package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"example.com/astgate/internal/asterix"
	"example.com/astgate/internal/common"
	"example.com/astgate/internal/ingest"
	"example.com/astgate/internal/render"
	"example.com/astgate/internal/report"
	"example.com/astgate/internal/schema"
	"example.com/astgate/internal/store"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "decode":
		decodeCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	case "query":
		queryCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`astgatectl %s (built %s) <command> [options]

Commands:
  decode   --in <file> --schemas <dir> [--mode line|text|json|json-human|json-verbose] [--out <file>] [--max-records <n>] [--store <db>] [--metrics]
  inspect  --schemas <dir> [--cat <n>]
  query    --store <db> [--cat <n>] [--status <complete|truncated>] [--limit <n>]
  report   --store <db> [--source <label>] [--json <summary.json>] [--pdf <report.pdf>]
`, version, buildDate)
}

func decodeCmd(args []string) {
	fs := newFlagSet("decode")
	in := fs.String("in", "", "input file (raw ASTERIX or pcap)")
	schemaDir := fs.String("schemas", "schemas", "category definition directory")
	modeFlag := fs.String("mode", "line", "output mode")
	outPath := fs.String("out", "", "output file (default stdout)")
	maxRecords := fs.Int("max-records", 0, "stop after this many records (0 = all)")
	storePath := fs.String("store", "", "also persist records into this SQLite database")
	metricsFlag := fs.Bool("metrics", false, "print decode throughput metrics")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	mode, err := render.ParseMode(*modeFlag)
	if err != nil {
		fmt.Println("mode:", err)
		os.Exit(1)
	}

	reg, loadErrs, err := schema.LoadDir(*schemaDir)
	if err != nil {
		fmt.Println("load schemas:", err)
		os.Exit(1)
	}
	for _, le := range loadErrs {
		fmt.Fprintln(os.Stderr, "schema:", le)
	}
	if len(reg.Categories()) == 0 {
		fmt.Printf("no usable category definitions in %s\n", *schemaDir)
		os.Exit(1)
	}

	captures, err := loadCaptures(*in)
	if err != nil {
		fmt.Println("read input:", err)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Println("open output:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	var db *store.DB
	if *storePath != "" {
		db, err = store.Open(*storePath)
		if err != nil {
			fmt.Println("open store:", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	metrics := common.NewMetrics()
	metrics.Start()
	decoder := asterix.NewDecoder(reg)
	decoder.SetMetrics(metrics)
	renderer := render.New(reg)
	ndjson := render.NewNDJSONWriter(out)

	decoded := 0
	for _, capture := range captures {
		offset := 0
		for offset < len(capture.Data) {
			remaining := 0
			if *maxRecords > 0 {
				remaining = *maxRecords - decoded
				if remaining <= 0 {
					break
				}
			}
			msg, consumed := decoder.DecodeNext(capture.Data, offset, remaining, capture.Timestamp)
			if consumed == 0 {
				break
			}
			offset += consumed
			if err := writeMessage(msg, renderer, mode, out, ndjson, db, &decoded); err != nil {
				fmt.Println("write:", err)
				os.Exit(1)
			}
		}
		if *maxRecords > 0 && decoded >= *maxRecords {
			break
		}
	}
	metrics.Stop()
	if *metricsFlag {
		fmt.Fprintln(os.Stderr, metrics.Snapshot().Summary())
	}
}

// loadCaptures reads the input file, treating it as a pcap capture when it
// starts with the pcap magic and as a raw ASTERIX stream otherwise.
func loadCaptures(path string) ([]ingest.Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var magic [4]byte
	_, rerr := io.ReadFull(f, magic[:])
	f.Close()
	if rerr == nil {
		m := binary.BigEndian.Uint32(magic[:])
		if m == 0xA1B2C3D4 || m == 0xD4C3B2A1 {
			return ingest.ReadPCAP(path)
		}
	}
	capture, err := ingest.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []ingest.Capture{capture}, nil
}

func writeMessage(msg *asterix.Message, renderer *render.Renderer, mode render.Mode,
	out io.Writer, ndjson *render.NDJSONWriter, db *store.DB, decoded *int) error {
	for _, blk := range msg.Blocks {
		if blk.Status == asterix.StatusSkipped {
			if mode == render.ModeLine || mode == render.ModeText {
				fmt.Fprintf(out, "CAT%03d skipped (no schema loaded, %d bytes)\n",
					blk.Category, blk.Length)
			}
			continue
		}
		for _, rec := range blk.Records {
			*decoded++
			switch mode {
			case render.ModeLine:
				if _, err := io.WriteString(out, renderer.RecordLine(rec)+"\n"); err != nil {
					return err
				}
			case render.ModeText:
				tmp := &asterix.Message{Blocks: []*asterix.Block{{
					Category: blk.Category, Records: []*asterix.Record{rec},
				}}}
				if err := renderer.Write(out, tmp, mode); err != nil {
					return err
				}
			default:
				if err := ndjson.WriteObject(renderer.RecordObject(rec, mode)); err != nil {
					return err
				}
			}
			if db != nil {
				if err := insertRecord(db, rec, renderer.RecordObject(rec, render.ModeJSON)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func insertRecord(db *store.DB, rec *asterix.Record, obj map[string]any) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	_, err = db.Insert(rec, string(payload))
	return err
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func inspectCmd(args []string) {
	fs := newFlagSet("inspect")
	schemaDir := fs.String("schemas", "schemas", "category definition directory")
	cat := fs.Int("cat", 0, "show fields of one category")
	fs.Parse(args)

	reg, loadErrs, err := schema.LoadDir(*schemaDir)
	if err != nil {
		fmt.Println("load schemas:", err)
		os.Exit(1)
	}
	for _, le := range loadErrs {
		fmt.Fprintln(os.Stderr, "schema:", le)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if *cat == 0 {
		fmt.Fprintln(w, "CATEGORY\tNAME\tFIELDS\tPROFILES")
		for _, id := range reg.Categories() {
			c, _ := reg.Category(id)
			fmt.Fprintf(w, "CAT%03d\t%s\t%d\t%d\n", c.ID, c.Name, len(c.Fields), len(c.Profiles))
		}
		return
	}

	c, ok := reg.Category(*cat)
	if !ok {
		fmt.Printf("category %d not loaded\n", *cat)
		os.Exit(1)
	}
	fmt.Fprintf(w, "CAT%03d\t%s\n\n", c.ID, c.Name)
	fmt.Fprintln(w, "ITEM\tFORMAT\tNAME")
	for _, f := range c.Fields {
		fmt.Fprintf(w, "I%s\t%s\t%s\n", f.ID, f.Format.Kind, f.Name)
	}
	fmt.Fprintln(w)
	for _, p := range c.Profiles {
		kind := "default"
		if p.Conditional() {
			if p.SelectBit != 0 {
				kind = fmt.Sprintf("bit %d set", p.SelectBit)
			} else {
				kind = fmt.Sprintf("byte %d == 0x%02X", p.SelectByte, p.SelectValue)
			}
		}
		fmt.Fprintf(w, "PROFILE\t%s\t%s\t%d items\n", p.Name, kind, len(p.Items))
	}
}

func queryCmd(args []string) {
	fs := newFlagSet("query")
	storePath := fs.String("store", "", "SQLite database")
	cat := fs.Int("cat", 0, "filter by category")
	status := fs.String("status", "", "filter by record status")
	limit := fs.Int("limit", 20, "maximum rows")
	fs.Parse(args)

	if *storePath == "" {
		fmt.Println("required: --store")
		os.Exit(1)
	}
	db, err := store.Open(*storePath)
	if err != nil {
		fmt.Println("open store:", err)
		os.Exit(1)
	}
	defer db.Close()

	records, err := db.Query(store.QueryParams{
		Category: *cat,
		Status:   *status,
		Limit:    *limit,
	})
	if err != nil {
		fmt.Println("query:", err)
		os.Exit(1)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tTS\tCATEGORY\tLEN\tSTATUS\tITEMS")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%.3f\tCAT%03d\t%d\t%s\t%s\n",
			r.ID, r.Timestamp, r.Category, r.Length, r.Status, r.ItemsJSON)
	}
}

func reportCmd(args []string) {
	fs := newFlagSet("report")
	storePath := fs.String("store", "", "SQLite database")
	source := fs.String("source", "", "source label for the summary")
	jsonOut := fs.String("json", "", "write summary JSON to this path")
	pdfOut := fs.String("pdf", "", "write summary PDF to this path")
	fs.Parse(args)

	if *storePath == "" {
		fmt.Println("required: --store")
		os.Exit(1)
	}
	if *jsonOut == "" && *pdfOut == "" {
		fmt.Println("required: --json and/or --pdf")
		os.Exit(1)
	}

	db, err := store.Open(*storePath)
	if err != nil {
		fmt.Println("open store:", err)
		os.Exit(1)
	}
	defer db.Close()

	stats, err := db.GetStats()
	if err != nil {
		fmt.Println("stats:", err)
		os.Exit(1)
	}
	label := *source
	if label == "" {
		label = *storePath
	}
	sum := report.FromStats(stats, label)

	if *jsonOut != "" {
		if err := report.SaveJSON(sum, *jsonOut); err != nil {
			fmt.Println("write summary json:", err)
			os.Exit(1)
		}
		fmt.Printf("summary written to %s\n", *jsonOut)
	}
	if *pdfOut != "" {
		if err := report.SavePDF(sum, *pdfOut); err != nil {
			fmt.Println("write summary pdf:", err)
			os.Exit(1)
		}
		fmt.Printf("report written to %s\n", *pdfOut)
	}
}

// Package export writes gpio_log samples as CSV.
//
// # Format
//
// The header row is the column names in schema order:
//
//	id,timestamp,pin_state,led_state
//
// followed by one row per sample in id order. The same encoder backs the
// viewer's download endpoint and the bridge's export_to_csv operation.
//
// # Usage
//
//	exporter := export.NewExporter(store)
//	result, err := exporter.ExportToCSV(ctx, w)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Exported %d samples\n", result.SamplesExported)
//
// Downloads are named with Filename, e.g. gpio_log_20251119_120000.csv.
package export

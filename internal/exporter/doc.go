// Package exporter writes the artifacts of a pipeline run.
//
// CSVWriter writes CSV files, including the padded long table, which reads
// back through the ingest package. BundleWriter writes each tensor of the
// train, val and test bundles as a raw little-endian float32 file and
// records names, files and shapes in a JSON manifest, next to a sample
// index CSV naming the target group of every sample. Summary holds sample
// counts and traffic statistics per split and is written as JSON and as an
// Excel workbook.
//
// Exporter ties the three together:
//
//	exp := exporter.New(paths, cfg.Pipeline.SeasonalityColumns, logger)
//	out, err := exp.Export(ctx, runID, result, stats)
package exporter

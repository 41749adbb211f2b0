// Package pipeline runs the per-seed processing steps.
//
// A Pipeline executes Steps in order against one model.SiteReport:
//
//	crawl -> analyze -> persist -> history
//
// Each step reads what the previous ones left in the report. NewSitemapPipeline
// assembles the steps a Config asks for. BatchProcessor runs one pipeline per
// seed with bounded concurrency.
package pipeline

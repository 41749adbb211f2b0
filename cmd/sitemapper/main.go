// Package main provides the entry point for the sitemapper CLI.
//
// sitemapper crawls a website from one or more seed URLs, records which
// pages link to which, and analyzes the content it finds.
//
// Usage:
//
//	sitemapper crawl <url>
//	sitemapper compare <url>
//
// See --help for all available options.
package main

// main is the entry point for sitemapper.
func main() {
	Execute()
}

// Package tor routes crawl traffic through a SOCKS5 proxy.
//
// A Dialer connects through any SOCKS5 endpoint given as "host:port" or
// "socks5://[user:pass@]host:port"; its DialContext plugs into
// fetch.Config.DialContext. EmbeddedTor starts a private Tor daemon with
// tornago and hands out a Dialer bound to that daemon's SOCKS port, so a
// crawl can run over Tor without a system-wide installation.
//
// Both are opt-in; by default sitemapper connects directly.
package tor

// Package useragent names the identity this engine presents to archive
// hosts. Unlike a general-purpose scraper, this engine has no reason to
// rotate or disguise its identity: RouteViews and RIPE RIS publish their
// archives for bulk indexing and expect to see real clients in their logs.
package useragent

// Identity is the single User-Agent string sent with every request.
const Identity = "bgpkit-broker-updater/1.0 (+https://bgpkit.com; archive catalog ingestion bot)"

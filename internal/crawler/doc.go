// Package crawler implements the breadth-first, same-site frontier used to
// gather pages from manifest seed sites, together with the fetcher, robots and
// page-cache contracts it depends on.
//
// A crawl visits at most Seed.Limit pages. Links are only followed inside the
// seed's registrable domain and the pending queue never grows past three times
// the limit. Failed fetches are not retried: the URL is marked visited and the
// crawl moves on.
package crawler

// Package papers pages scholarly metadata from CrossRef, resolves open-access
// copies through Unpaywall, and turns abstracts and full texts into labeled
// sentences for one search query at a time.
package papers

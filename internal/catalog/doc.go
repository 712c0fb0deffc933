// Package catalog lists recent items from the external content catalog and
// normalizes their metadata into pipeline items.
//
// The Scanner treats the whole catalog as available-or-not for a run: any
// listing failure is surfaced as a single unavailable condition so the driver
// can fall back to items queued by earlier runs. The concrete Lister talks to
// the YouTube Data API; tests substitute their own.
package catalog

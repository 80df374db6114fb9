// Package torrents builds per-format torrent descriptors and hands them
// to a seeding client. Clients are an enumerated set; the config names
// which one a destination uses.
package torrents

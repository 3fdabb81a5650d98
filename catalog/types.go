package catalog

// Record is one catalog entry as returned by the /api/get and /api/search
// endpoints. The catalog is untrusted: optional fields may be absent and
// durations may be zero.
type Record struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// HasSyncedLyrics reports whether the record carries a timestamped
// lyrics document.
func (r *Record) HasSyncedLyrics() bool {
	return r != nil && r.SyncedLyrics != ""
}

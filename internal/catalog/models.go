package catalog

// Media is one fetchable unit in the catalog. Rows are created by the
// external metadata tool's own write to the database; this pipeline reads
// them and mutates Path, Webpath, and Error.
type Media struct {
	ID          int64
	PlaylistID  int64
	// Path starts as an http(s) URL and becomes a filesystem location once
	// the item has been downloaded.
	Path         string
	Webpath      string
	ExtractorID  string
	Title        string
	Uploader     string
	Duration     float64
	ViewCount    int64
	TimeUploaded int64
	LiveStatus   string
	Error        string
}

// Caption is a timestamped transcript fragment owned by a media row.
// Composite identity is (MediaID, Time); fragments are immutable here.
type Caption struct {
	MediaID int64
	Time    float64
	Text    string
}

// Playlist groups media rows fetched from one channel or playlist URL.
type Playlist struct {
	ID                  int64
	ExtractorPlaylistID string
	Title               string
	Path                string
}

// Candidate is a media row eligible for download consideration after
// metadata extraction, before ranking and capping.
type Candidate struct {
	Path        string
	Duration    float64
	LiveStatus  string
	ViewsPerDay float64
}

// Live status values reported by the external tool.
const (
	LiveStatusIsLive     = "is_live"
	LiveStatusWasLive    = "was_live"
	LiveStatusIsUpcoming = "is_upcoming"
)

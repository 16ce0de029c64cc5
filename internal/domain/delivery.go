package domain

// VideoUpload is an inline video send.
type VideoUpload struct {
	Path              string
	Caption           string
	SupportsStreaming bool
	Duration          int // seconds, 0 if unknown
}

// AlbumItem is one image of an outbound album.
type AlbumItem struct {
	Path    string
	Caption string
}

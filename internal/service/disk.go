package service

// DiskStats describes a filesystem's capacity.
type DiskStats struct {
	Path       string  `json:"path"`
	TotalBytes int64   `json:"total_bytes"`
	FreeBytes  int64   `json:"free_bytes"`
	UsedBytes  int64   `json:"used_bytes"`
	UsedPct    float64 `json:"used_pct"`
}

// withUsage fills the derived fields.
func (d DiskStats) withUsage() DiskStats {
	d.UsedBytes = d.TotalBytes - d.FreeBytes
	if d.TotalBytes > 0 {
		d.UsedPct = float64(d.UsedBytes) / float64(d.TotalBytes) * 100
	}
	return d
}

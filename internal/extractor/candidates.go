package extractor

import "sort"

// Height bounds for offered resolutions. Below 144p nothing is watchable;
// above 1080p nothing fits the upload ceiling anyway.
const (
	minHeight = 144
	maxHeight = 1080
)

// rawFormat matches one entry of the extractor tool's formats dump.
type rawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	Height         int      `json:"height"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
	TBR            *float64 `json:"tbr"`
	ABR            *float64 `json:"abr"`
	Acodec         string   `json:"acodec"`
	Vcodec         string   `json:"vcodec"`
}

func (f *rawFormat) hasVideo() bool { return f.Vcodec != "" && f.Vcodec != "none" }
func (f *rawFormat) hasAudio() bool { return f.Acodec != "" && f.Acodec != "none" }

// sizeEstimate returns the stream size in bytes: the reported size when
// present, otherwise bitrate * duration.
func (f *rawFormat) sizeEstimate(duration float64) int64 {
	if f.Filesize != nil && *f.Filesize > 0 {
		return *f.Filesize
	}
	if f.FilesizeApprox != nil && *f.FilesizeApprox > 0 {
		return *f.FilesizeApprox
	}
	if f.TBR != nil && *f.TBR > 0 && duration > 0 {
		return int64(*f.TBR * 1000 / 8 * duration)
	}
	return 0
}

// buildCandidates turns the raw formats dump into the deduplicated,
// size-filtered, descending-by-height candidate list. Video-only formats
// get the best audio track's size added since they must be muxed.
func buildCandidates(formats []rawFormat, duration float64, maxBytes int64) []ResolutionCandidate {
	// Best audio track = highest bitrate among audio-only formats
	var bestAudioSize int64
	var bestABR float64
	for i := range formats {
		f := &formats[i]
		if f.hasVideo() || !f.hasAudio() {
			continue
		}
		abr := 0.0
		if f.ABR != nil {
			abr = *f.ABR
		}
		if size := f.sizeEstimate(duration); size > 0 && (bestAudioSize == 0 || abr > bestABR) {
			bestAudioSize = size
			bestABR = abr
		}
	}

	// Per height keep the candidate with the smallest total size
	byHeight := make(map[int]ResolutionCandidate)
	for i := range formats {
		f := &formats[i]
		if !f.hasVideo() || f.Height < minHeight || f.Height > maxHeight {
			continue
		}
		size := f.sizeEstimate(duration)
		if size <= 0 {
			continue
		}

		total := size
		if !f.hasAudio() {
			total += bestAudioSize
		}

		cur, seen := byHeight[f.Height]
		if !seen || total < cur.TotalSize {
			byHeight[f.Height] = ResolutionCandidate{
				Height:    f.Height,
				FormatID:  f.FormatID,
				HasAudio:  f.hasAudio(),
				FileSize:  size,
				TotalSize: total,
			}
		}
	}

	candidates := make([]ResolutionCandidate, 0, len(byHeight))
	for _, c := range byHeight {
		if maxBytes > 0 && c.TotalSize > maxBytes {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Height > candidates[j].Height
	})
	return candidates
}

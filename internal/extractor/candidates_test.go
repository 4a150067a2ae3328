package extractor

import "testing"

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func TestBuildCandidatesFiltersAndSorts(t *testing.T) {
	formats := []rawFormat{
		// best audio track: 4 MB
		{FormatID: "140", Acodec: "mp4a", Vcodec: "none", ABR: f64(128), Filesize: i64(4 << 20)},
		// 1080p video-only, 100 MB
		{FormatID: "137", Acodec: "none", Vcodec: "avc1", Height: 1080, Filesize: i64(100 << 20)},
		// 720p video-only, 50 MB
		{FormatID: "136", Acodec: "none", Vcodec: "avc1", Height: 720, Filesize: i64(50 << 20)},
		// 720p muxed, 80 MB — larger total than the video-only one, dropped
		{FormatID: "22", Acodec: "mp4a", Vcodec: "avc1", Height: 720, Filesize: i64(80 << 20)},
		// 360p muxed, 20 MB
		{FormatID: "18", Acodec: "mp4a", Vcodec: "avc1", Height: 360, Filesize: i64(20 << 20)},
		// 2160p is out of offered range
		{FormatID: "313", Acodec: "none", Vcodec: "vp9", Height: 2160, Filesize: i64(900 << 20)},
		// 72p is below the floor
		{FormatID: "tiny", Acodec: "mp4a", Vcodec: "avc1", Height: 72, Filesize: i64(1 << 20)},
	}

	got := buildCandidates(formats, 120, 0)

	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(got), got)
	}
	heights := []int{got[0].Height, got[1].Height, got[2].Height}
	if heights[0] != 1080 || heights[1] != 720 || heights[2] != 360 {
		t.Errorf("candidates should be sorted descending by height, got %v", heights)
	}

	// 720p should be the smaller of the two options: 50 MB video + 4 MB audio
	if got[1].FormatID != "136" {
		t.Errorf("720p should keep the smallest total, got format %s", got[1].FormatID)
	}
	if got[1].TotalSize != 54<<20 {
		t.Errorf("video-only total should include best audio: got %d", got[1].TotalSize)
	}
	if got[1].HasAudio {
		t.Error("format 136 is video-only")
	}
	if !got[2].HasAudio {
		t.Error("format 18 is muxed")
	}
}

func TestBuildCandidatesSizeCeiling(t *testing.T) {
	formats := []rawFormat{
		{FormatID: "big", Acodec: "mp4a", Vcodec: "avc1", Height: 1080, Filesize: i64(3 << 30)},
		{FormatID: "mid", Acodec: "mp4a", Vcodec: "avc1", Height: 720, Filesize: i64(100 << 20)},
		{FormatID: "small", Acodec: "mp4a", Vcodec: "avc1", Height: 360, Filesize: i64(10 << 20)},
	}

	got := buildCandidates(formats, 60, 1<<30)

	if len(got) != 2 {
		t.Fatalf("oversized candidate should be excluded, got %d candidates", len(got))
	}
	for _, c := range got {
		if c.FormatID == "big" {
			t.Error("candidate above the ceiling must not be offered")
		}
	}
}

func TestBuildCandidatesEstimatesFromBitrate(t *testing.T) {
	// 2000 kbit/s over 100 s ≈ 25 MB
	formats := []rawFormat{
		{FormatID: "est", Acodec: "mp4a", Vcodec: "avc1", Height: 480, TBR: f64(2000)},
	}

	got := buildCandidates(formats, 100, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	want := int64(2000 * 1000 / 8 * 100)
	if got[0].FileSize != want {
		t.Errorf("bitrate estimate = %d, want %d", got[0].FileSize, want)
	}
}

func TestBuildCandidatesEmptyInput(t *testing.T) {
	if got := buildCandidates(nil, 0, 0); len(got) != 0 {
		t.Errorf("no formats should yield no candidates, got %d", len(got))
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"download:  42.3%", 42.3, true},
		{"download:100.0%", 100.0, true},
		{"download: 0.0%", 0, true},
		{"download:   N/A", 0, false},
		{"[youtube] extracting", 0, false},
		{"", 0, false},
		{"download: 150.0%", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseProgressLine(tt.line)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseProgressLine(%q) = (%v, %v), want (%v, %v)", tt.line, got, ok, tt.want, tt.ok)
			}
		})
	}
}

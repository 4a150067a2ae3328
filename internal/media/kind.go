// Package media wraps the external probe/transcode tools and classifies
// downloaded artifacts by kind.
package media

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// Kind is the delivery category of a downloaded artifact.
type Kind int

const (
	KindUnknown Kind = iota
	KindPhoto
	KindVideo
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

var extKinds = map[string]Kind{
	".jpg":  KindPhoto,
	".jpeg": KindPhoto,
	".png":  KindPhoto,
	".webp": KindPhoto,
	".mp4":  KindVideo,
	".mkv":  KindVideo,
	".webm": KindVideo,
	".mov":  KindVideo,
	".mp3":  KindAudio,
	".m4a":  KindAudio,
	".ogg":  KindAudio,
	".opus": KindAudio,
	".flac": KindAudio,
	".wav":  KindAudio,
}

// ClassifyPath returns the artifact kind. The extension decides in the
// common case; unknown extensions fall back to magic-byte sniffing.
func ClassifyPath(path string) Kind {
	if kind, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return sniffKind(path)
}

func sniffKind(path string) Kind {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := f.Read(head)
	if err != nil || n == 0 {
		return KindUnknown
	}

	t, err := filetype.Match(head[:n])
	if err != nil {
		return KindUnknown
	}
	switch t.MIME.Type {
	case "image":
		return KindPhoto
	case "video":
		return KindVideo
	case "audio":
		return KindAudio
	}
	if t == matchers.TypeMp4 {
		return KindVideo
	}
	return KindUnknown
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyAttachment(t *testing.T) {
	cases := map[string]ContentClass{
		"screenshot.png":  ContentClassImage,
		"photo.JPG":       ContentClassImage,
		"photo.jpeg":      ContentClassImage,
		"animation.gif":   ContentClassImage,
		"clip.mp4":        ContentClassVideo,
		"capture.MOV":     ContentClassVideo,
		"recording.webm":  ContentClassVideo,
		"notes.txt":       ContentClassOther,
		"archive.tar.gz":  ContentClassOther,
		"no_extension":    ContentClassOther,
		"trailing.dot.":   ContentClassOther,
		"dir/report.pdf":  ContentClassOther,
		"dir/preview.png": ContentClassImage,
	}
	for filename, want := range cases {
		require.Equal(t, want, ClassifyAttachment(filename), "filename %q", filename)
	}
}

func TestContentClassString(t *testing.T) {
	require.Equal(t, "image", ContentClassImage.String())
	require.Equal(t, "video", ContentClassVideo.String())
	require.Equal(t, "other", ContentClassOther.String())
}

func TestValidRating(t *testing.T) {
	for rating := 1; rating <= 5; rating++ {
		require.True(t, ValidRating(rating))
	}
	require.False(t, ValidRating(0))
	require.False(t, ValidRating(6))
	require.False(t, ValidRating(-3))
}

package spectral

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// comparePixels counts pixels that differ between two decoded images. A
// dimension change is an error, not a count.
func comparePixels(a, b image.Image) (int, error) {
	boundsA, boundsB := a.Bounds(), b.Bounds()
	if boundsA.Dx() != boundsB.Dx() || boundsA.Dy() != boundsB.Dy() {
		return 0, fmt.Errorf("dimensions changed from %dx%d to %dx%d",
			boundsA.Dx(), boundsA.Dy(), boundsB.Dx(), boundsB.Dy())
	}

	var diff int
	for y := 0; y < boundsA.Dy(); y++ {
		for x := 0; x < boundsA.Dx(); x++ {
			ar, ag, ab, aa := a.At(boundsA.Min.X+x, boundsA.Min.Y+y).RGBA()
			br, bg, bb, ba := b.At(boundsB.Min.X+x, boundsB.Min.Y+y).RGBA()
			if ar != br || ag != bg || ab != bb || aa != ba {
				diff++
			}
		}
	}
	return diff, nil
}
